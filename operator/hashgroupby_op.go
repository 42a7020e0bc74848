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
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// AggregateFunction enumerates the aggregation functions §4.3 supports.
type AggregateFunction int

const (
	Min AggregateFunction = iota
	Max
	Avg
	Count
	CountStar
)

// GroupKey is one grouping column: an expression (a plain column reference,
// or a binning key expression for the one binned key a group-by may carry)
// and the alias it is emitted under.
type GroupKey struct {
	Expr  dfexpr.Expr
	Alias string
}

// Aggregate is one output aggregate column. Field is the input column Func
// aggregates over; it is ignored for CountStar. Distinct only applies to
// Count (Min/Max/Avg reject it during plan validation, §4.3).
type Aggregate struct {
	Field    string
	Func     AggregateFunction
	Distinct bool
	Alias    string
}

// HashGroupBy performs a single-mode hash group-by: every distinct
// combination of key values becomes exactly one output row, emitted in
// first-seen order, keys first then aggregates, both in declared order.
// Grouping keys values are rendered to a string for hashing (generalizing
// the teacher's map[string]interface{}-by-joined-string grouping from rows
// to Arrow columns); grouping itself always materializes Input first since
// it requires a global view of every row.
type HashGroupBy struct {
	Input      Operator
	Keys       []GroupKey
	Aggregates []Aggregate

	outSchema schema.Schema
}

// NewHashGroupBy builds a HashGroupBy, resolving the output schema (keys
// then aggregates) up front.
func NewHashGroupBy(input Operator, keys []GroupKey, aggregates []Aggregate) (*HashGroupBy, error) {
	inSchema := input.Schema()
	var fields []schema.Field
	for _, k := range keys {
		ft, err := k.Expr.OutputType(inSchema)
		if err != nil {
			return nil, err
		}
		fields = append(fields, schema.Field{Name: k.Alias, Type: ft.Type, Nullable: ft.Nullable})
	}
	for _, a := range aggregates {
		var ft schema.Type
		switch a.Func {
		case Avg:
			ft = schema.Float(64)
		case Count, CountStar:
			ft = schema.UInt(64)
		default:
			f, ok := inSchema.Lookup(a.Field)
			if !ok {
				return nil, dferrors.NewPlanError(dferrors.UnknownField, "group_by", a.Field, "unknown aggregate field")
			}
			ft = f.Type
		}
		fields = append(fields, schema.Field{Name: a.Alias, Type: ft, Nullable: true})
	}
	s, err := schema.New(fields...)
	if err != nil {
		return nil, err
	}
	return &HashGroupBy{Input: input, Keys: keys, Aggregates: aggregates, outSchema: s}, nil
}

func (o *HashGroupBy) Schema() schema.Schema { return o.outSchema }

func (o *HashGroupBy) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
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

	type groupState struct {
		keyVals  []scalar.Value
		min, max []scalar.Value
		sum      []float64
		nonNull  []int64
		distinct []map[string]struct{}
		count    int64
	}

	var order []string
	groups := make(map[string]*groupState)

	aggFieldIdx := make([]int, len(o.Aggregates))
	aggFieldType := make([]schema.Type, len(o.Aggregates))
	for i, a := range o.Aggregates {
		if a.Func == CountStar {
			continue
		}
		idx, ok := inSchema.IndexOf(a.Field)
		if !ok {
			return nil, dferrors.NewPlanError(dferrors.UnknownField, "group_by", a.Field, "unknown aggregate field")
		}
		aggFieldIdx[i] = idx
		aggFieldType[i] = inSchema.Fields[idx].Type
	}

	for _, b := range batches {
		keyColVals := make([][]scalar.Value, len(o.Keys))
		for ki, k := range o.Keys {
			vals, _, err := dfexpr.EvalValues(ctx, mem, k.Expr, b, inSchema)
			if err != nil {
				return nil, err
			}
			keyColVals[ki] = vals
		}
		for r := 0; r < int(b.NumRows()); r++ {
			keyVals := make([]scalar.Value, len(o.Keys))
			keyStr := ""
			for ki := range o.Keys {
				v := keyColVals[ki][r]
				keyVals[ki] = v
				keyStr += "\x1f" + renderKey(v)
			}
			g, ok := groups[keyStr]
			if !ok {
				g = &groupState{
					keyVals:  keyVals,
					min:      make([]scalar.Value, len(o.Aggregates)),
					max:      make([]scalar.Value, len(o.Aggregates)),
					sum:      make([]float64, len(o.Aggregates)),
					nonNull:  make([]int64, len(o.Aggregates)),
					distinct: make([]map[string]struct{}, len(o.Aggregates)),
				}
				for i, a := range o.Aggregates {
					if a.Func == Count && a.Distinct {
						g.distinct[i] = make(map[string]struct{})
					}
				}
				groups[keyStr] = g
				order = append(order, keyStr)
			}
			g.count++
			for i, a := range o.Aggregates {
				if a.Func == CountStar {
					continue
				}
				v, err := frame.ReadValue(b.Column(aggFieldIdx[i]), r, aggFieldType[i])
				if err != nil {
					return nil, err
				}
				if v.IsNull() {
					continue
				}
				g.nonNull[i]++
				switch a.Func {
				case Min:
					if g.min[i].Type.Logical == schema.Invalid {
						g.min[i] = v
					} else if cmp, ok := v.Compare(g.min[i]); ok && cmp < 0 {
						g.min[i] = v
					}
				case Max:
					if g.max[i].Type.Logical == schema.Invalid {
						g.max[i] = v
					} else if cmp, ok := v.Compare(g.max[i]); ok && cmp > 0 {
						g.max[i] = v
					}
				case Avg:
					f, err := v.Cast(schema.Float(64))
					if err != nil {
						return nil, err
					}
					g.sum[i] += f.AsFloat64()
				case Count:
					if a.Distinct {
						g.distinct[i][renderKey(v)] = struct{}{}
					}
				}
			}
		}
	}

	rb, err := frame.NewRecordBuilder(mem, o.outSchema)
	if err != nil {
		return nil, err
	}
	for _, keyStr := range order {
		g := groups[keyStr]
		for ki := range o.Keys {
			if err := rb.Column(ki).Append(g.keyVals[ki]); err != nil {
				rb.Release()
				return nil, err
			}
		}
		for i, a := range o.Aggregates {
			col := rb.Column(len(o.Keys) + i)
			switch a.Func {
			case Min:
				if g.nonNull[i] == 0 {
					col.AppendNull()
				} else if err := col.Append(g.min[i]); err != nil {
					rb.Release()
					return nil, err
				}
			case Max:
				if g.nonNull[i] == 0 {
					col.AppendNull()
				} else if err := col.Append(g.max[i]); err != nil {
					rb.Release()
					return nil, err
				}
			case Avg:
				if g.nonNull[i] == 0 {
					col.AppendNull()
				} else if err := col.Append(scalar.Float64Val(schema.Float(64), g.sum[i]/float64(g.nonNull[i]))); err != nil {
					rb.Release()
					return nil, err
				}
			case Count:
				n := g.nonNull[i]
				if a.Distinct {
					n = int64(len(g.distinct[i]))
				}
				if err := col.Append(scalar.Uint64(schema.UInt(64), uint64(n))); err != nil {
					rb.Release()
					return nil, err
				}
			case CountStar:
				if err := col.Append(scalar.Uint64(schema.UInt(64), uint64(g.count))); err != nil {
					rb.Release()
					return nil, err
				}
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

// renderKey renders a scalar.Value into a string usable as a hash-map key,
// distinguishing null from every non-null rendering.
func renderKey(v scalar.Value) string {
	if v.IsNull() {
		return "\x00null"
	}
	switch {
	case v.Type.Logical.IsFloat():
		return fmt.Sprintf("f:%v", v.AsFloat64())
	case v.Type.Logical.IsUnsignedInteger():
		return fmt.Sprintf("u:%v", v.AsUint64())
	case v.Type.Logical.IsDecimal():
		return fmt.Sprintf("d:%v", v.AsDecimal().String())
	case v.Type.Logical == schema.Utf8:
		return fmt.Sprintf("s:%v", v.AsString())
	default:
		return fmt.Sprintf("i:%v", v.AsInt64())
	}
}
