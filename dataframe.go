/*
 * Copyright 2025 The RuleGo Authors.
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

package dataframe

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/frame"
	ipcstream "github.com/rulego/dataframe/ipc"
	"github.com/rulego/dataframe/logger"
	"github.com/rulego/dataframe/operator"
	"github.com/rulego/dataframe/plan"
)

// Engine compiles a DataFrameTransform plan against one input Frame and
// drives the resulting operator tree to completion.
//
// An Engine is stateless beyond the Frame it was built with and the
// options configured at construction time; it holds no global state, and
// a single Engine is safe to reuse across Transform calls but not across
// concurrent ones (operators borrow memory.Allocator per call rather than
// serializing internally — see the Scan/Execute contract in operator).
//
// Example:
//
//	eng := dataframe.New(input, dataframe.WithDefaultBinCount(20))
//	out, err := eng.Transform(ctx, plan)
type Engine struct {
	input *frame.Frame
	mem    memory.Allocator
	decoder plan.Decoder

	defaultBinCount uint32
}

// New builds an Engine over input, applying any supplied options.
func New(input *frame.Frame, opts ...Option) *Engine {
	e := &Engine{
		input:           input,
		mem:             memory.NewGoAllocator(),
		defaultBinCount: 10,
	}
	e.decoder = plan.NewJSONDecoder(e.mem)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scan builds the leaf Scan operator over the engine's input frame. Every
// compiled plan is rooted here.
func (e *Engine) scan() operator.Operator {
	return &operator.Scan{InputSchema: e.input.Schema, Partitions: e.input.Partitions}
}

// Transform compiles t and runs it to completion, with no statistics
// frame available (any stage that requires one — a binning stage or a
// binned group-by key, pre-binned or not — fails with a MissingStats
// PlanError).
func (e *Engine) Transform(ctx context.Context, t *plan.DataFrameTransform) (*frame.Frame, error) {
	return e.run(ctx, t, nil)
}

// TransformWithStats compiles t against stats (the one-row min/max
// statistics frame §4.5's binning derivation reads from) and runs it to
// completion.
func (e *Engine) TransformWithStats(ctx context.Context, t *plan.DataFrameTransform, stats *frame.Frame) (*frame.Frame, error) {
	return e.run(ctx, t, stats)
}

func (e *Engine) run(ctx context.Context, t *plan.DataFrameTransform, stats *frame.Frame) (*frame.Frame, error) {
	t = e.withDefaultBinCounts(t)
	op, err := plan.Compile(t, e.scan(), stats)
	if err != nil {
		return nil, err
	}
	logger.Debug("compiled transform into operator tree rooted at %T", op)
	return operator.RunToFrame(ctx, e.mem, op)
}

// withDefaultBinCounts returns a shallow copy of t with every BinCount left
// at its zero value replaced by the engine's configured default, so callers
// don't have to repeat a fleet-wide bin count on every plan.
func (e *Engine) withDefaultBinCounts(t *plan.DataFrameTransform) *plan.DataFrameTransform {
	if t == nil {
		return t
	}
	needsDefault := false
	for _, bt := range t.Binning {
		if bt.BinCount == 0 {
			needsDefault = true
			break
		}
	}
	if !needsDefault && t.GroupBy != nil {
		for _, k := range t.GroupBy.Keys {
			if k.Binning != nil && k.Binning.BinCount == 0 {
				needsDefault = true
				break
			}
		}
	}
	if !needsDefault {
		return t
	}

	out := *t
	if len(t.Binning) > 0 {
		out.Binning = make([]plan.BinningTransform, len(t.Binning))
		copy(out.Binning, t.Binning)
		for i := range out.Binning {
			if out.Binning[i].BinCount == 0 {
				out.Binning[i].BinCount = e.defaultBinCount
			}
		}
	}
	if t.GroupBy != nil {
		gb := *t.GroupBy
		gb.Keys = make([]plan.GroupByKey, len(t.GroupBy.Keys))
		copy(gb.Keys, t.GroupBy.Keys)
		for i := range gb.Keys {
			if gb.Keys[i].Binning != nil && gb.Keys[i].Binning.BinCount == 0 {
				b := *gb.Keys[i].Binning
				b.BinCount = e.defaultBinCount
				gb.Keys[i].Binning = &b
			}
		}
		out.GroupBy = &gb
	}
	return &out
}

// TransformBytes decodes planBytes with the engine's configured Decoder
// (plan.JSONDecoder by default) before compiling and running it.
func (e *Engine) TransformBytes(ctx context.Context, planBytes []byte) (*frame.Frame, error) {
	t, err := e.decoder.Decode(planBytes)
	if err != nil {
		return nil, err
	}
	return e.Transform(ctx, t)
}

// TransformBytesWithStats decodes both planBytes and statsBytes before
// compiling and running the transform.
func (e *Engine) TransformBytesWithStats(ctx context.Context, planBytes, statsBytes []byte) (*frame.Frame, error) {
	t, err := e.decoder.Decode(planBytes)
	if err != nil {
		return nil, err
	}
	stats, err := e.decoder.DecodeStats(statsBytes)
	if err != nil {
		return nil, err
	}
	return e.TransformWithStats(ctx, t, stats)
}

// CreateIpcStream wraps f in a restartable Arrow IPC stream encoder using
// the engine's allocator.
func (e *Engine) CreateIpcStream(f *frame.Frame) *ipcstream.Stream {
	return ipcstream.NewStream(e.mem, f)
}
