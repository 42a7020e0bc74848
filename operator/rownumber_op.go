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

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// RowNumber appends a UInt64 column, named Alias, holding 1..N in the
// order rows arrive from Input — no partitioning or ordering is implied by
// this operator itself, matching the unconstrained window frame the
// original engine uses for its row-number window expression. The sequence
// is global across every input partition, but Input's partitioning is
// preserved: RowNumber emits exactly one output partition per input
// partition, numbered by walking the partitions in order (spec §4.1).
type RowNumber struct {
	Input Operator
	Alias string

	outSchema schema.Schema
}

// NewRowNumber builds a RowNumber operator, appending Alias (UInt64, not
// nullable) to Input's schema.
func NewRowNumber(input Operator, alias string) (*RowNumber, error) {
	s, err := input.Schema().Append(schema.Field{Name: alias, Type: schema.UInt(64), Nullable: false})
	if err != nil {
		return nil, err
	}
	return &RowNumber{Input: input, Alias: alias, outSchema: s}, nil
}

func (o *RowNumber) Schema() schema.Schema { return o.outSchema }

func (o *RowNumber) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
	partitions, err := materializeByPartition(ctx, mem, o.Input)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, p := range partitions {
			for _, b := range p {
				b.Release()
			}
		}
	}()
	inSchema := o.Input.Schema()

	iters := make([]frame.PartitionIter, len(partitions))
	var n uint64
	for pi, batches := range partitions {
		rb, err := frame.NewRecordBuilder(mem, o.outSchema)
		if err != nil {
			return nil, err
		}
		for _, b := range batches {
			for r := 0; r < int(b.NumRows()); r++ {
				n++
				for c := 0; c < len(inSchema.Fields); c++ {
					v, err := frame.ReadValue(b.Column(c), r, inSchema.Fields[c].Type)
					if err != nil {
						rb.Release()
						return nil, err
					}
					if err := rb.Column(c).Append(v); err != nil {
						rb.Release()
						return nil, err
					}
				}
				if err := rb.Column(len(inSchema.Fields)).Append(scalar.Uint64(schema.UInt(64), n)); err != nil {
					rb.Release()
					return nil, err
				}
			}
		}
		out, err := rb.NewRecord()
		rb.Release()
		if err != nil {
			return nil, err
		}
		var outBatches []arrow.Record
		if out.NumRows() > 0 {
			outBatches = []arrow.Record{out}
		} else {
			out.Release()
		}
		iters[pi] = frame.NewSliceIter(outBatches)
	}
	return iters, nil
}
