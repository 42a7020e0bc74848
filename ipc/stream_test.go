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

package ipc

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

func oneColFrame(t *testing.T, mem memory.Allocator, vals []int64) *frame.Frame {
	t.Helper()
	s, err := schema.New(schema.Field{Name: "id", Type: schema.Int(64)})
	require.NoError(t, err)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	for _, v := range vals {
		require.NoError(t, rb.Column(0).Append(scalar.Int64(schema.Int(64), v)))
	}
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	return frame.NewSinglePartition(s, []arrow.Record{rec})
}

func TestStreamEmitsSchemaThenBatchThenEOS(t *testing.T) {
	mem := memory.NewGoAllocator()
	f := oneColFrame(t, mem, []int64{1, 2, 3})
	defer f.Release()

	s := NewStream(mem, f)
	var chunks [][]byte
	for {
		chunk, ok, err := s.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
	}
	require.GreaterOrEqual(t, len(chunks), 2, "expect at least a schema message and one batch message")

	var full []byte
	for _, c := range chunks {
		full = append(full, c...)
	}

	reader, err := ipc.NewReader(bytes.NewReader(full), ipc.WithAllocator(mem))
	require.NoError(t, err)
	defer reader.Release()

	var total int64
	for reader.Next() {
		total += reader.Record().NumRows()
	}
	assert.Equal(t, int64(3), total)
}

func TestStreamOnEmptyFrameStillEmitsSchema(t *testing.T) {
	mem := memory.NewGoAllocator()
	f := oneColFrame(t, mem, nil)
	defer f.Release()

	s := NewStream(mem, f)
	chunk, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, chunk)
}

func TestStreamRespectsCancellation(t *testing.T) {
	mem := memory.NewGoAllocator()
	f := oneColFrame(t, mem, []int64{1})
	defer f.Release()

	s := NewStream(mem, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Next(ctx)
	require.Error(t, err)
}
