/*
 * Copyright 2024 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ipc turns a result Frame into a restartable sequence of Arrow
// IPC stream messages, one arrow/ipc.Writer call's worth of bytes per
// Next(), so a caller can forward each chunk across a wire boundary
// (gRPC stream, websocket frame, …) as soon as it's produced instead of
// buffering the whole serialized frame in memory first.
package ipc

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

// Stream is a restartable iterator over one Frame's worth of Arrow IPC
// stream messages. The first Next() call emits the schema message
// (bundled with a zero-row bootstrap batch, the one way arrow/ipc.Writer's
// public API exposes a schema flush), one call per subsequent batch
// emits that batch's message, and a final call emits the stream's EOS
// marker before Next reports end of stream. Concatenating every chunk
// Next() returns, in order, reproduces one valid Arrow IPC stream.
//
// Not safe for concurrent Next() calls — callers serialize externally
// per §5's "borrow, don't lock" resource model.
type Stream struct {
	schema schema.Schema
	mem    memory.Allocator

	buf    *bytes.Buffer
	writer *ipc.Writer

	batches        [][]arrow.Record
	partitionIndex int
	batchIndex     int

	flushedSchema bool
	closed        bool
	done          bool
}

// NewStream builds a Stream over f's partitions using mem for any
// intermediate array allocation (the zero-row bootstrap batch).
func NewStream(mem memory.Allocator, f *frame.Frame) *Stream {
	buf := &bytes.Buffer{}
	w := ipc.NewWriter(buf, ipc.WithAllocator(mem), ipc.WithSchema(f.Schema.ToArrow()))
	return &Stream{
		schema:  f.Schema,
		mem:     mem,
		buf:     buf,
		writer:  w,
		batches: f.Partitions,
	}
}

// Next returns the next IPC message chunk, or ok=false once the stream
// (including its EOS marker) has been fully emitted.
func (s *Stream) Next(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.done {
		return nil, false, nil
	}

	if !s.flushedSchema {
		s.flushedSchema = true
		rb, err := frame.NewRecordBuilder(s.mem, s.schema)
		if err != nil {
			return nil, false, err
		}
		rec, err := rb.NewRecord()
		rb.Release()
		if err != nil {
			return nil, false, err
		}
		defer rec.Release()
		if err := s.writer.Write(rec); err != nil {
			return nil, false, err
		}
		return s.drain(), true, nil
	}

	for s.partitionIndex < len(s.batches) {
		part := s.batches[s.partitionIndex]
		if s.batchIndex >= len(part) {
			s.partitionIndex++
			s.batchIndex = 0
			continue
		}
		rec := part[s.batchIndex]
		s.batchIndex++
		if err := s.writer.Write(rec); err != nil {
			return nil, false, err
		}
		return s.drain(), true, nil
	}

	if !s.closed {
		s.closed = true
		if err := s.writer.Close(); err != nil {
			return nil, false, err
		}
		chunk := s.drain()
		if len(chunk) == 0 {
			s.done = true
			return nil, false, nil
		}
		return chunk, true, nil
	}

	s.done = true
	return nil, false, nil
}

// drain copies out and resets the writer's underlying buffer, so each
// Next() call returns only the bytes that write produced.
func (s *Stream) drain() []byte {
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	s.buf.Reset()
	return out
}
