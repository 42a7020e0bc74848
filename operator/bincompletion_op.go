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

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// BinCompletionJoin is the fixed-shape left join used to fill gaps in a
// binned group-by: it synthesizes UInt32 keys [0, BinCount), left-joins
// them against Input keyed on BinField, and emits the synthetic key
// followed by every other Input column, NULL where no group matched that
// bin. Grounded on the original engine's create_missing_bins helper, which
// builds a throwaway in-memory scan of 0..bin_count and hash-joins it
// against the grouped output.
type BinCompletionJoin struct {
	Input    Operator
	BinField string
	BinCount uint32

	outSchema schema.Schema
	keyIdx    int
}

// NewBinCompletionJoin builds a BinCompletionJoin, verifying BinField is
// present and UInt32-typed (the only type operator.HashGroupBy's binned
// keys ever produce).
func NewBinCompletionJoin(input Operator, binField string, binCount uint32) (*BinCompletionJoin, error) {
	inSchema := input.Schema()
	idx, ok := inSchema.IndexOf(binField)
	if !ok {
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "group_by", binField, "unknown bin key field")
	}
	if inSchema.Fields[idx].Type.Logical != schema.Uint32 {
		return nil, dferrors.NewPlanError(dferrors.WrongPreBinnedType, "group_by", binField, "bin key field must be UInt32")
	}
	fields := make([]schema.Field, 0, len(inSchema.Fields))
	fields = append(fields, schema.Field{Name: binField, Type: schema.UInt(32), Nullable: false})
	for i, f := range inSchema.Fields {
		if i == idx {
			continue
		}
		fields = append(fields, schema.Field{Name: f.Name, Type: f.Type, Nullable: true})
	}
	s, err := schema.New(fields...)
	if err != nil {
		return nil, err
	}
	return &BinCompletionJoin{Input: input, BinField: binField, BinCount: binCount, outSchema: s, keyIdx: idx}, nil
}

func (o *BinCompletionJoin) Schema() schema.Schema { return o.outSchema }

func (o *BinCompletionJoin) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
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
	byBin := make(map[uint32]rowRef, o.BinCount)
	for bi, b := range batches {
		for r := 0; r < int(b.NumRows()); r++ {
			v, err := frame.ReadValue(b.Column(o.keyIdx), r, schema.UInt(32))
			if err != nil {
				return nil, err
			}
			if v.IsNull() {
				continue
			}
			byBin[uint32(v.AsUint64())] = rowRef{batch: bi, row: r}
		}
	}

	rb, err := frame.NewRecordBuilder(mem, o.outSchema)
	if err != nil {
		return nil, err
	}
	for bin := uint32(0); bin < o.BinCount; bin++ {
		if err := rb.Column(0).Append(scalar.Uint64(schema.UInt(32), uint64(bin))); err != nil {
			rb.Release()
			return nil, err
		}
		ref, ok := byBin[bin]
		outCol := 1
		for i, f := range inSchema.Fields {
			if i == o.keyIdx {
				continue
			}
			if ok {
				b := batches[ref.batch]
				v, err := frame.ReadValue(b.Column(i), ref.row, f.Type)
				if err != nil {
					rb.Release()
					return nil, err
				}
				if err := rb.Column(outCol).Append(v); err != nil {
					rb.Release()
					return nil, err
				}
			} else {
				rb.Column(outCol).AppendNull()
			}
			outCol++
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
