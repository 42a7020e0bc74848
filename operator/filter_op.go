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

package operator

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

// Filter drops rows whose Predicate evaluates to false or null, preserving
// partitioning and the schema of Input. Evaluation is batch-at-a-time, so
// Filter never forces materialization of the whole frame.
type Filter struct {
	Input     Operator
	Predicate dfexpr.Expr
}

func (o *Filter) Schema() schema.Schema { return o.Input.Schema() }

func (o *Filter) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
	iters, err := o.Input.Execute(ctx, mem)
	if err != nil {
		return nil, err
	}
	inSchema := o.Input.Schema()
	out := make([]frame.PartitionIter, len(iters))
	for i, it := range iters {
		out[i] = &filterIter{upstream: it, predicate: o.Predicate, input: inSchema, mem: mem}
	}
	return out, nil
}

type filterIter struct {
	upstream  frame.PartitionIter
	predicate dfexpr.Expr
	input     schema.Schema
	mem       memory.Allocator
}

func (it *filterIter) Next(ctx context.Context) (arrow.Record, bool, error) {
	for {
		rec, ok, err := it.upstream.Next(ctx)
		if err != nil || !ok {
			return nil, ok, err
		}
		filtered, err := filterRecord(ctx, it.mem, it.predicate, rec, it.input)
		rec.Release()
		if err != nil {
			return nil, false, err
		}
		if filtered.NumRows() == 0 {
			filtered.Release()
			continue
		}
		return filtered, true, nil
	}
}

// filterRecord evaluates predicate over rec and rebuilds a new record
// containing only the rows that evaluated to a non-null, non-zero result.
func filterRecord(ctx context.Context, mem memory.Allocator, predicate dfexpr.Expr, rec arrow.Record, input schema.Schema) (arrow.Record, error) {
	preds, _, err := dfexpr.EvalValues(ctx, mem, predicate, rec, input)
	if err != nil {
		return nil, err
	}
	rb, err := frame.NewRecordBuilder(mem, input)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(rec.NumRows()); i++ {
		if preds[i].IsNull() || preds[i].AsInt64() == 0 {
			continue
		}
		for c := 0; c < len(input.Fields); c++ {
			v, err := frame.ReadValue(rec.Column(c), i, input.Fields[c].Type)
			if err != nil {
				rb.Release()
				return nil, err
			}
			if err := rb.Column(c).Append(v); err != nil {
				rb.Release()
				return nil, err
			}
		}
	}
	out, err := rb.NewRecord()
	rb.Release()
	return out, err
}
