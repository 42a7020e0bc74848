package frame

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// ReadValue extracts the scalar at row i of arr, tagged with logical type
// t. Every physical operator and expression reads columns through this
// single entry point so the rest of the engine never touches an Arrow
// array directly.
func ReadValue(arr arrow.Array, row int, t schema.Type) (scalar.Value, error) {
	if arr.IsNull(row) {
		return scalar.Null(t), nil
	}
	switch a := arr.(type) {
	case *array.Int8:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Int16:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Int32:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Int64:
		return scalar.Int64(t, a.Value(row)), nil
	case *array.Uint8:
		return scalar.Uint64(t, uint64(a.Value(row))), nil
	case *array.Uint16:
		return scalar.Uint64(t, uint64(a.Value(row))), nil
	case *array.Uint32:
		return scalar.Uint64(t, uint64(a.Value(row))), nil
	case *array.Uint64:
		return scalar.Uint64(t, a.Value(row)), nil
	case *array.Float32:
		return scalar.Float64Val(t, float64(a.Value(row))), nil
	case *array.Float64:
		return scalar.Float64Val(t, a.Value(row)), nil
	case *array.String:
		return scalar.Str(a.Value(row)), nil
	case *array.Date32:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Date64:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Time32:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Time64:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Timestamp:
		return scalar.Int64(t, int64(a.Value(row))), nil
	case *array.Decimal128:
		return scalar.Decimal(t, a.Value(row).BigInt()), nil
	case *array.Decimal256:
		return scalar.Decimal(t, a.Value(row).BigInt()), nil
	default:
		return scalar.Value{}, fmt.Errorf("frame: unsupported array type %T", arr)
	}
}

// ColumnBuilder appends scalar.Value (or null) to a growing Arrow array.
type ColumnBuilder interface {
	Append(v scalar.Value) error
	AppendNull()
	NewArray() (arrow.Array, error)
	Release()
	Len() int
}

type typedBuilder struct {
	t   schema.Type
	b   array.Builder
	n   int
}

// NewColumnBuilder allocates a builder for the given logical type.
func NewColumnBuilder(mem memory.Allocator, t schema.Type) (ColumnBuilder, error) {
	b := array.NewBuilder(mem, t.ToArrow())
	if b == nil {
		return nil, fmt.Errorf("frame: no builder for type %s", t)
	}
	return &typedBuilder{t: t, b: b}, nil
}

func (c *typedBuilder) Len() int { return c.n }

func (c *typedBuilder) AppendNull() {
	c.b.AppendNull()
	c.n++
}

func (c *typedBuilder) Release() { c.b.Release() }

func (c *typedBuilder) NewArray() (arrow.Array, error) {
	return c.b.NewArray(), nil
}

func (c *typedBuilder) Append(v scalar.Value) error {
	c.n++
	if v.IsNull() {
		c.b.AppendNull()
		return nil
	}
	switch builder := c.b.(type) {
	case *array.Int8Builder:
		builder.Append(int8(v.AsInt64()))
	case *array.Int16Builder:
		builder.Append(int16(v.AsInt64()))
	case *array.Int32Builder:
		builder.Append(int32(v.AsInt64()))
	case *array.Int64Builder:
		builder.Append(v.AsInt64())
	case *array.Uint8Builder:
		builder.Append(uint8(v.AsUint64()))
	case *array.Uint16Builder:
		builder.Append(uint16(v.AsUint64()))
	case *array.Uint32Builder:
		builder.Append(uint32(v.AsUint64()))
	case *array.Uint64Builder:
		builder.Append(v.AsUint64())
	case *array.Float32Builder:
		builder.Append(float32(v.AsFloat64()))
	case *array.Float64Builder:
		builder.Append(v.AsFloat64())
	case *array.StringBuilder:
		builder.Append(v.AsString())
	case *array.Date32Builder:
		builder.Append(arrow.Date32(v.AsInt64()))
	case *array.Date64Builder:
		builder.Append(arrow.Date64(v.AsInt64()))
	case *array.Time32Builder:
		builder.Append(arrow.Time32(v.AsInt64()))
	case *array.Time64Builder:
		builder.Append(arrow.Time64(v.AsInt64()))
	case *array.TimestampBuilder:
		builder.Append(arrow.Timestamp(v.AsInt64()))
	case *array.Decimal128Builder:
		n, err := decimal128.FromBigInt(v.AsDecimal())
		if err != nil {
			return err
		}
		builder.Append(n)
	case *array.Decimal256Builder:
		n, err := decimal256.FromBigInt(v.AsDecimal())
		if err != nil {
			return err
		}
		builder.Append(n)
	default:
		return fmt.Errorf("frame: unsupported builder type %T", c.b)
	}
	return nil
}
