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

// Package operator implements the physical operators of spec §4.3: scan,
// filter, sort-with-fetch, projection, row-number and dense-rank windows,
// single-mode hash group-by, and the bin-completion left join. Each
// operator owns its input operator directly and is constructed
// bottom-up, the design note of spec §9 ("cyclic handles become arena +
// index references" maps onto plain exclusive ownership here, since
// nothing in this tree needs back-references). Every operator speaks the
// same lazy frame.PartitionIter protocol, one file per operator,
// following the layout of the teacher's operator/*.go package.
package operator

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

// Operator is one node of the compiled physical plan.
type Operator interface {
	// Schema is this operator's output schema.
	Schema() schema.Schema
	// Execute returns the operator's output, one PartitionIter per output
	// partition. Operators that collapse to a single partition (Sort,
	// HashGroupBy, BinCompletionJoin) always return a single iterator.
	Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error)
}

// RunToFrame drives op to completion and collects every partition into a
// new Frame, the shared tail of both transform and transformWithStats
// (spec §4.6).
func RunToFrame(ctx context.Context, mem memory.Allocator, op Operator) (*frame.Frame, error) {
	iters, err := op.Execute(ctx, mem)
	if err != nil {
		return nil, err
	}
	partitions := make([][]arrow.Record, len(iters))
	for i, it := range iters {
		batches, err := frame.Collect(ctx, it)
		if err != nil {
			return nil, err
		}
		partitions[i] = batches
	}
	return frame.New(op.Schema(), partitions), nil
}

// materialize drains every partition of op into one flat batch slice,
// discarding partition boundaries. The sort, grouping and bin-completion
// operators need a single global view of the rows and so sit on top of
// this rather than the lazy PartitionIter protocol lower operators use.
func materialize(ctx context.Context, mem memory.Allocator, op Operator) ([]arrow.Record, error) {
	iters, err := op.Execute(ctx, mem)
	if err != nil {
		return nil, err
	}
	var out []arrow.Record
	for _, it := range iters {
		batches, err := frame.Collect(ctx, it)
		if err != nil {
			return nil, err
		}
		out = append(out, batches...)
	}
	return out, nil
}

// materializeByPartition drains every partition of op into its own batch
// slice, preserving partition boundaries and their order. Window
// operators (RowNumber, DenseRank) need a single global view of the rows
// to compute their window value but, unlike the grouping operators that
// sit on materialize, must still emit one output partition per input
// partition (spec §4.1), so they sit on this instead.
func materializeByPartition(ctx context.Context, mem memory.Allocator, op Operator) ([][]arrow.Record, error) {
	iters, err := op.Execute(ctx, mem)
	if err != nil {
		return nil, err
	}
	out := make([][]arrow.Record, len(iters))
	for i, it := range iters {
		batches, err := frame.Collect(ctx, it)
		if err != nil {
			return nil, err
		}
		out[i] = batches
	}
	return out, nil
}
