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
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

// ProjectField is one output column of a Project: the alias it is written
// under and the expression computing it. A pass-through column is simply
// dfexpr.Column{Name: field} with Alias equal to field.
type ProjectField struct {
	Alias string
	Expr  dfexpr.Expr
}

// Project evaluates a fixed list of expressions against Input, one column
// per ProjectField, preserving row count and partitioning. This realizes
// the bin_fields stage of the transform compiler: the field list is every
// input column passed through plus one fractional bin column appended per
// binning entry.
type Project struct {
	Input     Operator
	Fields    []ProjectField
	outSchema schema.Schema
}

// NewProject builds a Project, resolving each field's output type against
// Input's schema up front so Schema() never needs to evaluate anything.
func NewProject(input Operator, fields []ProjectField) (*Project, error) {
	out := make([]schema.Field, len(fields))
	inSchema := input.Schema()
	for i, f := range fields {
		ft, err := f.Expr.OutputType(inSchema)
		if err != nil {
			return nil, err
		}
		out[i] = schema.Field{Name: f.Alias, Type: ft.Type, Nullable: ft.Nullable}
	}
	s, err := schema.New(out...)
	if err != nil {
		return nil, err
	}
	return &Project{Input: input, Fields: fields, outSchema: s}, nil
}

func (o *Project) Schema() schema.Schema { return o.outSchema }

func (o *Project) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
	iters, err := o.Input.Execute(ctx, mem)
	if err != nil {
		return nil, err
	}
	inSchema := o.Input.Schema()
	out := make([]frame.PartitionIter, len(iters))
	for i, it := range iters {
		out[i] = &projectIter{upstream: it, fields: o.Fields, outSchema: o.outSchema, input: inSchema, mem: mem}
	}
	return out, nil
}

type projectIter struct {
	upstream  frame.PartitionIter
	fields    []ProjectField
	outSchema schema.Schema
	input     schema.Schema
	mem       memory.Allocator
}

func (it *projectIter) Next(ctx context.Context) (arrow.Record, bool, error) {
	rec, ok, err := it.upstream.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	defer rec.Release()
	cols := make([]arrow.Array, len(it.fields))
	var nrows int64
	for i, f := range it.fields {
		arr, err := f.Expr.Eval(ctx, it.mem, rec, it.input)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, false, err
		}
		cols[i] = arr
		nrows = int64(arr.Len())
	}
	return array.NewRecord(it.outSchema.ToArrow(), cols, nrows), true, nil
}
