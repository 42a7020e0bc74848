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

package dfexpr

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

func testInputSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "a", Type: schema.Float(64)},
		schema.Field{Name: "b", Type: schema.Float(64)},
	)
	require.NoError(t, err)
	return s
}

func TestColumnEval(t *testing.T) {
	s := testInputSchema(t)

	col := Column{Name: "a"}
	ft, err := col.OutputType(s)
	require.NoError(t, err)
	assert.Equal(t, schema.Float64, ft.Type.Logical)
}

func TestColumnUnknownField(t *testing.T) {
	s := testInputSchema(t)
	col := Column{Name: "missing"}
	_, err := col.OutputType(s)
	require.Error(t, err)
}

func TestBinaryAddSameDomain(t *testing.T) {
	s := testInputSchema(t)
	b := Binary{Op: Add, Left: Column{Name: "a"}, Right: Column{Name: "b"}}
	ft, err := b.OutputType(s)
	require.NoError(t, err)
	assert.Equal(t, schema.Float64, ft.Type.Logical)
}

func TestBinaryTypeMismatch(t *testing.T) {
	s, err := schema.New(
		schema.Field{Name: "a", Type: schema.Float(64)},
		schema.Field{Name: "b", Type: schema.Int(64)},
	)
	require.NoError(t, err)
	b := Binary{Op: Add, Left: Column{Name: "a"}, Right: Column{Name: "b"}}
	_, err = b.OutputType(s)
	require.Error(t, err)
}

func TestBinaryEvaluatesRowwise(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testInputSchema(t)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Float64Val(schema.Float(64), 2)))
	require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), 3)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	b := Binary{Op: Mul, Left: Column{Name: "a"}, Right: Column{Name: "b"}}
	vals, outType, err := EvalValues(context.Background(), mem, b, rec, s)
	require.NoError(t, err)
	assert.Equal(t, schema.Float64, outType.Logical)
	require.Len(t, vals, 1)
	assert.Equal(t, 6.0, vals[0].AsFloat64())
}

func TestComparisonEval(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testInputSchema(t)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Float64Val(schema.Float(64), 1)))
	require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), 2)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	c := Comparison{Op: Lt, Left: Column{Name: "a"}, Right: Column{Name: "b"}}
	vals, outType, err := EvalValues(context.Background(), mem, c, rec, s)
	require.NoError(t, err)
	assert.Equal(t, BoolType, outType)
	require.Len(t, vals, 1)
	assert.Equal(t, int64(1), vals[0].AsInt64())
}

func TestCastEval(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testInputSchema(t)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Float64Val(schema.Float(64), 3.7)))
	require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), 0)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	c := Cast{To: schema.Int(64), Input: Column{Name: "a"}}
	vals, _, err := EvalValues(context.Background(), mem, c, rec, s)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, int64(3), vals[0].AsInt64())
}

func TestFloorEval(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testInputSchema(t)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Float64Val(schema.Float(64), -1.5)))
	require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), 0)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	fl := Floor{Input: Column{Name: "a"}}
	vals, _, err := EvalValues(context.Background(), mem, fl, rec, s)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, -2.0, vals[0].AsFloat64())
}

func TestCaseEval(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testInputSchema(t)
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Float64Val(schema.Float(64), 1)))
	require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), 2)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	c := Case{
		When: Comparison{Op: Lt, Left: Column{Name: "a"}, Right: Column{Name: "b"}},
		Then: Literal{Value: scalar.Float64Val(schema.Float(64), 100)},
		Else: Literal{Value: scalar.Float64Val(schema.Float(64), -100)},
	}
	vals, outType, err := EvalValues(context.Background(), mem, c, rec, s)
	require.NoError(t, err)
	assert.Equal(t, schema.Float64, outType.Logical)
	require.Len(t, vals, 1)
	assert.Equal(t, 100.0, vals[0].AsFloat64())
}

func TestCaseArmTypeMismatch(t *testing.T) {
	s := testInputSchema(t)
	c := Case{
		When: Comparison{Op: Lt, Left: Column{Name: "a"}, Right: Column{Name: "b"}},
		Then: Literal{Value: scalar.Float64Val(schema.Float(64), 1)},
		Else: Literal{Value: scalar.Int64(schema.Int(64), 1)},
	}
	_, err := c.OutputType(s)
	require.Error(t, err)
}
