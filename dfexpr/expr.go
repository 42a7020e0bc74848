// Package dfexpr implements the closed expression layer of spec §4.2:
// column references, literals, binary arithmetic, comparisons, cast, the
// scalar function floor, and a two-arm case. Every node reports its
// output type statically from an input schema (used by plan validation,
// §7) and evaluates over one batch at a time, row by row, through
// frame.ReadValue/ColumnBuilder — this engine favors clarity over
// vectorized kernels, matching the teacher's row-oriented evaluation
// style (expr/evaluator.go) generalized onto typed Arrow columns instead
// of map[string]interface{} rows.
package dfexpr

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// Expr is one node of the expression tree.
type Expr interface {
	// OutputType reports the field this expression produces given an
	// input schema, without evaluating anything.
	OutputType(input schema.Schema) (schema.Field, error)
	// Eval evaluates the expression over every row of rec, returning a
	// new array of the same length.
	Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error)
}

// evalToValues runs a row-wise Expr and decodes the result array back
// into scalar.Value, used by callers (binning, group-by) that need the
// scalar rather than the array.
func evalToValues(ctx context.Context, mem memory.Allocator, e Expr, rec arrow.Record, input schema.Schema) ([]scalar.Value, schema.Type, error) {
	f, err := e.OutputType(input)
	if err != nil {
		return nil, schema.Type{}, err
	}
	arr, err := e.Eval(ctx, mem, rec, input)
	if err != nil {
		return nil, schema.Type{}, err
	}
	defer arr.Release()
	out := make([]scalar.Value, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		v, err := frame.ReadValue(arr, i, f.Type)
		if err != nil {
			return nil, schema.Type{}, err
		}
		out[i] = v
	}
	return out, f.Type, nil
}

// EvalValues is the exported form of evalToValues, used by the operator
// and binning packages.
func EvalValues(ctx context.Context, mem memory.Allocator, e Expr, rec arrow.Record, input schema.Schema) ([]scalar.Value, schema.Type, error) {
	return evalToValues(ctx, mem, e, rec, input)
}

// buildFrom appends a []scalar.Value as a new Arrow array of type t.
func buildFrom(mem memory.Allocator, t schema.Type, values []scalar.Value) (arrow.Array, error) {
	b, err := frame.NewColumnBuilder(mem, t)
	if err != nil {
		return nil, err
	}
	defer b.Release()
	for _, v := range values {
		if err := b.Append(v); err != nil {
			return nil, err
		}
	}
	return b.NewArray()
}

// ---- Column --------------------------------------------------------------

// Column binds a name to a field index; its output type is the field's
// type.
type Column struct {
	Name string
}

func (c Column) OutputType(input schema.Schema) (schema.Field, error) {
	f, ok := input.Lookup(c.Name)
	if !ok {
		return schema.Field{}, dferrors.NewPlanError(dferrors.UnknownField, "expr", c.Name, "unknown column")
	}
	return f, nil
}

func (c Column) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	idx, ok := input.IndexOf(c.Name)
	if !ok {
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "expr", c.Name, "unknown column")
	}
	col := rec.Column(idx)
	col.Retain()
	return col, nil
}

// ---- Literal ---------------------------------------------------------

// Literal is a constant scalar; its output type is its own type.
type Literal struct {
	Value scalar.Value
}

func (l Literal) OutputType(schema.Schema) (schema.Field, error) {
	return schema.Field{Name: "literal", Type: l.Value.Type, Nullable: true}, nil
}

func (l Literal) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	n := int(rec.NumRows())
	values := make([]scalar.Value, n)
	for i := range values {
		values[i] = l.Value
	}
	return buildFrom(mem, l.Value.Type, values)
}

// ---- Binary arithmetic -------------------------------------------------

// BinaryOp enumerates the four arithmetic operators.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
)

// Binary is +, -, *, / over two expressions of the same domain, plus the
// special-cased (Timestamp - Timestamp) -> Int64 ms-count rule of §4.2.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

func (b Binary) OutputType(input schema.Schema) (schema.Field, error) {
	lf, err := b.Left.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	rf, err := b.Right.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	if lf.Type.Logical == schema.Timestamp && rf.Type.Logical == schema.Timestamp && b.Op == Sub {
		return schema.Field{Name: "binary", Type: schema.Int(64), Nullable: true}, nil
	}
	if !lf.Type.Equal(rf.Type) {
		return schema.Field{}, dferrors.NewPlanError(dferrors.TypeMismatch, "expr", "", fmt.Sprintf("binary operand type mismatch: %s vs %s", lf.Type, rf.Type))
	}
	return schema.Field{Name: "binary", Type: lf.Type, Nullable: true}, nil
}

func (b Binary) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	lVals, lt, err := evalToValues(ctx, mem, b.Left, rec, input)
	if err != nil {
		return nil, err
	}
	rVals, _, err := evalToValues(ctx, mem, b.Right, rec, input)
	if err != nil {
		return nil, err
	}
	outType := lt
	tsMinus := lt.Logical == schema.Timestamp && b.Op == Sub
	if tsMinus {
		outType = schema.Int(64)
	}
	out := make([]scalar.Value, len(lVals))
	for i := range lVals {
		var (
			v   scalar.Value
			err error
		)
		l, r := lVals[i], rVals[i]
		if tsMinus {
			if l.IsNull() || r.IsNull() {
				out[i] = scalar.Null(outType)
				continue
			}
			out[i] = scalar.Int64(outType, l.AsInt64()-r.AsInt64())
			continue
		}
		switch b.Op {
		case Add:
			v, err = l.Add(r)
		case Sub:
			v, err = l.Sub(r)
		case Mul:
			v, err = l.Mul(r)
		case Div:
			v, err = l.Div(r)
		}
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return buildFrom(mem, outType, out)
}

// ---- Comparison --------------------------------------------------------

// CompareOp enumerates the six comparison operators.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Comparison evaluates to a boolean (carried as Int8 0/1, see note below)
// across two expressions of the same domain. For Decimal both operands
// must share (p,s) after any cast the caller already applied.
type Comparison struct {
	Op          CompareOp
	Left, Right Expr
}

// BoolType is the logical type Comparison and Filter use for boolean
// results: Arrow has no first-class bool in this engine's type catalogue
// (spec §3 doesn't list one), so comparisons use Int8 0/1/null, matching
// how the original Rust implementation treats predicate columns.
var BoolType = schema.Type{Logical: schema.Int8}

func (c Comparison) OutputType(input schema.Schema) (schema.Field, error) {
	lf, err := c.Left.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	rf, err := c.Right.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	if !lf.Type.Equal(rf.Type) {
		return schema.Field{}, dferrors.NewPlanError(dferrors.TypeMismatch, "expr", "", fmt.Sprintf("comparison operand type mismatch: %s vs %s", lf.Type, rf.Type))
	}
	return schema.Field{Name: "cmp", Type: BoolType, Nullable: true}, nil
}

func (c Comparison) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	lVals, _, err := evalToValues(ctx, mem, c.Left, rec, input)
	if err != nil {
		return nil, err
	}
	rVals, _, err := evalToValues(ctx, mem, c.Right, rec, input)
	if err != nil {
		return nil, err
	}
	out := make([]scalar.Value, len(lVals))
	for i := range lVals {
		cmp, ok := lVals[i].Compare(rVals[i])
		if !ok {
			out[i] = scalar.Null(BoolType)
			continue
		}
		var result bool
		switch c.Op {
		case Eq:
			result = cmp == 0
		case Ne:
			result = cmp != 0
		case Lt:
			result = cmp < 0
		case Le:
			result = cmp <= 0
		case Gt:
			result = cmp > 0
		case Ge:
			result = cmp >= 0
		}
		if result {
			out[i] = scalar.Int64(BoolType, 1)
		} else {
			out[i] = scalar.Int64(BoolType, 0)
		}
	}
	return buildFrom(mem, BoolType, out)
}

// ---- Cast --------------------------------------------------------------

// Cast explicitly converts Input's output to To, following scalar.Value's
// cast table.
type Cast struct {
	To    schema.Type
	Input Expr
}

func (c Cast) OutputType(input schema.Schema) (schema.Field, error) {
	return schema.Field{Name: "cast", Type: c.To, Nullable: true}, nil
}

func (c Cast) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	vals, _, err := evalToValues(ctx, mem, c.Input, rec, input)
	if err != nil {
		return nil, err
	}
	out := make([]scalar.Value, len(vals))
	for i, v := range vals {
		casted, err := v.Cast(c.To)
		if err != nil {
			return nil, err
		}
		out[i] = casted
	}
	return buildFrom(mem, c.To, out)
}

// ---- floor(f64) -> f64 --------------------------------------------------

// Floor is the one scalar function spec §4.2 requires.
type Floor struct {
	Input Expr
}

func (fl Floor) OutputType(input schema.Schema) (schema.Field, error) {
	return schema.Field{Name: "floor", Type: schema.Float(64), Nullable: true}, nil
}

func (fl Floor) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	vals, _, err := evalToValues(ctx, mem, fl.Input, rec, input)
	if err != nil {
		return nil, err
	}
	out := make([]scalar.Value, len(vals))
	for i, v := range vals {
		if v.IsNull() {
			out[i] = scalar.Null(schema.Float(64))
			continue
		}
		out[i] = scalar.Float64Val(schema.Float(64), floorF64(v.AsFloat64()))
	}
	return buildFrom(mem, schema.Float(64), out)
}

func floorF64(f float64) float64 {
	i := int64(f)
	if f < 0 && float64(i) != f {
		return float64(i - 1)
	}
	return float64(i)
}

// ---- CASE WHEN p THEN a ELSE b END --------------------------------------

// Case is the two-arm case expression; type(a) must equal type(b).
type Case struct {
	When       Expr
	Then, Else Expr
}

func (c Case) OutputType(input schema.Schema) (schema.Field, error) {
	tf, err := c.Then.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	ef, err := c.Else.OutputType(input)
	if err != nil {
		return schema.Field{}, err
	}
	if !tf.Type.Equal(ef.Type) {
		return schema.Field{}, dferrors.NewPlanError(dferrors.TypeMismatch, "expr", "", fmt.Sprintf("case arms have different types: %s vs %s", tf.Type, ef.Type))
	}
	return schema.Field{Name: "case", Type: tf.Type, Nullable: true}, nil
}

func (c Case) Eval(ctx context.Context, mem memory.Allocator, rec arrow.Record, input schema.Schema) (arrow.Array, error) {
	preds, _, err := evalToValues(ctx, mem, c.When, rec, input)
	if err != nil {
		return nil, err
	}
	thenVals, outType, err := evalToValues(ctx, mem, c.Then, rec, input)
	if err != nil {
		return nil, err
	}
	elseVals, _, err := evalToValues(ctx, mem, c.Else, rec, input)
	if err != nil {
		return nil, err
	}
	out := make([]scalar.Value, len(preds))
	for i, p := range preds {
		if !p.IsNull() && p.AsInt64() != 0 {
			out[i] = thenVals[i]
		} else {
			out[i] = elseVals[i]
		}
	}
	return buildFrom(mem, outType, out)
}
