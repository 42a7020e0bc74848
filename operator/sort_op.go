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
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// SortConstraint is one ORDER BY key: the expression to sort by, its
// direction, and where nulls land relative to non-null values.
type SortConstraint struct {
	Expr       dfexpr.Expr
	Ascending  bool
	NullsFirst bool
}

// Sort materializes Input, orders its rows by Constraints (stable, lexical
// over the constraint list), optionally truncates to Fetch rows, and
// collapses the result to a single partition holding a single batch.
type Sort struct {
	Input       Operator
	Constraints []SortConstraint
	Fetch       *int
}

func (o *Sort) Schema() schema.Schema { return o.Input.Schema() }

func (o *Sort) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
	batches, err := materialize(ctx, mem, o.Input)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	inSchema := o.Input.Schema()

	type rowRef struct {
		batch, row int
	}
	var rows []rowRef
	keyVals := make([][]scalar.Value, len(o.Constraints))
	for ki, c := range o.Constraints {
		for bi, b := range batches {
			vals, _, err := dfexpr.EvalValues(ctx, mem, c.Expr, b, inSchema)
			if err != nil {
				return nil, err
			}
			keyVals[ki] = append(keyVals[ki], vals...)
			if ki == 0 {
				for r := 0; r < int(b.NumRows()); r++ {
					rows = append(rows, rowRef{batch: bi, row: r})
				}
			}
		}
	}
	if len(o.Constraints) == 0 {
		for bi, b := range batches {
			for r := 0; r < int(b.NumRows()); r++ {
				rows = append(rows, rowRef{batch: bi, row: r})
			}
		}
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, bIdx int) bool {
		ia, ib := idx[a], idx[bIdx]
		for ki, c := range o.Constraints {
			va, vb := keyVals[ki][ia], keyVals[ki][ib]
			if va.IsNull() || vb.IsNull() {
				if va.IsNull() == vb.IsNull() {
					continue
				}
				if c.NullsFirst {
					return va.IsNull()
				}
				return vb.IsNull()
			}
			cmp, ok := va.Compare(vb)
			if !ok || cmp == 0 {
				continue
			}
			if !c.Ascending {
				cmp = -cmp
			}
			return cmp < 0
		}
		return false
	})

	if o.Fetch != nil && *o.Fetch < len(idx) {
		idx = idx[:*o.Fetch]
	}

	rb, err := frame.NewRecordBuilder(mem, inSchema)
	if err != nil {
		return nil, err
	}
	for _, i := range idx {
		ref := rows[i]
		b := batches[ref.batch]
		for c := 0; c < len(inSchema.Fields); c++ {
			v, err := frame.ReadValue(b.Column(c), ref.row, inSchema.Fields[c].Type)
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
	if err != nil {
		return nil, err
	}
	var outBatches []arrow.Record
	if out.NumRows() > 0 {
		outBatches = []arrow.Record{out}
	} else {
		out.Release()
	}
	return []frame.PartitionIter{frame.NewSliceIter(outBatches)}, nil
}
