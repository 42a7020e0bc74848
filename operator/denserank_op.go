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

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// DenseRank realizes one entry of a value_identifiers stage (§4.4 step 2):
// it ranks Field by sorting a global, ascending, nulls-last view of Input
// (the "upstream sort" §4.3 describes) and appends a UInt32 Alias column
// holding the dense rank each row's Field value falls into (rows with
// equal Field values share a rank; the next distinct value's rank is
// exactly one higher; all nulls share the single highest rank). The sort
// is used only to derive ranks — rows are emitted back in Input's
// original order and partitioning (spec §4.1, and the row-order example
// in §8 S3), so a chain of DenseRank stages never reorders the frame a
// later stage sees.
type DenseRank struct {
	Input Operator
	Field string
	Alias string

	outSchema schema.Schema
}

// NewDenseRank builds a DenseRank operator appending Alias (UInt32, not
// nullable) to Input's schema.
func NewDenseRank(input Operator, field, alias string) (*DenseRank, error) {
	if _, ok := input.Schema().Lookup(field); !ok {
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "value_identifiers", field, "unknown column")
	}
	s, err := input.Schema().Append(schema.Field{Name: alias, Type: schema.UInt(32), Nullable: false})
	if err != nil {
		return nil, err
	}
	return &DenseRank{Input: input, Field: field, Alias: alias, outSchema: s}, nil
}

func (o *DenseRank) Schema() schema.Schema { return o.outSchema }

func (o *DenseRank) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
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
	fieldIdx, _ := inSchema.IndexOf(o.Field)
	fieldType := inSchema.Fields[fieldIdx].Type

	type rowLoc struct {
		partition, batch, row int
	}
	type rowRef struct {
		loc rowLoc
		val scalar.Value
	}
	var rows []rowRef
	for pi, batches := range partitions {
		for bi, b := range batches {
			for r := 0; r < int(b.NumRows()); r++ {
				v, err := frame.ReadValue(b.Column(fieldIdx), r, fieldType)
				if err != nil {
					return nil, err
				}
				rows = append(rows, rowRef{loc: rowLoc{partition: pi, batch: bi, row: r}, val: v})
			}
		}
	}

	sorted := make([]rowRef, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, b int) bool {
		va, vb := sorted[a].val, sorted[b].val
		if va.IsNull() || vb.IsNull() {
			if va.IsNull() == vb.IsNull() {
				return false
			}
			return vb.IsNull()
		}
		cmp, ok := va.Compare(vb)
		if !ok {
			return false
		}
		return cmp < 0
	})

	rankOf := make(map[rowLoc]uint32, len(sorted))
	var rank uint32
	for i := range sorted {
		if i == 0 {
			rank = 1
		} else {
			prev, cur := sorted[i-1].val, sorted[i].val
			same := false
			if prev.IsNull() && cur.IsNull() {
				same = true
			} else if !prev.IsNull() && !cur.IsNull() {
				if cmp, ok := prev.Compare(cur); ok && cmp == 0 {
					same = true
				}
			}
			if !same {
				rank++
			}
		}
		rankOf[sorted[i].loc] = rank
	}

	iters := make([]frame.PartitionIter, len(partitions))
	for pi, batches := range partitions {
		rb, err := frame.NewRecordBuilder(mem, o.outSchema)
		if err != nil {
			return nil, err
		}
		for bi, b := range batches {
			for r := 0; r < int(b.NumRows()); r++ {
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
				rnk := rankOf[rowLoc{partition: pi, batch: bi, row: r}]
				if err := rb.Column(len(inSchema.Fields)).Append(scalar.Uint64(schema.UInt(32), uint64(rnk))); err != nil {
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
