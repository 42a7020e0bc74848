// Package schema describes the logical type catalogue and field/schema
// model shared by every stage of the transform engine. It is a thin layer
// over Arrow's physical type system: logical types map 1:1 onto an
// arrow.DataType, but keep their own enum so the rest of the engine can
// switch on a closed set without reaching into Arrow internals everywhere.
package schema

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// LogicalType enumerates every column type the engine understands.
type LogicalType int

const (
	Invalid LogicalType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
	Decimal128
	Decimal256
	Date32
	Date64
	Time32
	Time64
	Timestamp
	Utf8
)

// TimeUnit mirrors Arrow's four supported time units.
type TimeUnit int

const (
	Second TimeUnit = iota
	Millisecond
	Microsecond
	Nanosecond
)

func (u TimeUnit) toArrow() arrow.TimeUnit {
	switch u {
	case Second:
		return arrow.Second
	case Millisecond:
		return arrow.Millisecond
	case Microsecond:
		return arrow.Microsecond
	case Nanosecond:
		return arrow.Nanosecond
	default:
		return arrow.Millisecond
	}
}

func fromArrowUnit(u arrow.TimeUnit) TimeUnit {
	switch u {
	case arrow.Second:
		return Second
	case arrow.Microsecond:
		return Microsecond
	case arrow.Nanosecond:
		return Nanosecond
	default:
		return Millisecond
	}
}

// String renders the logical type the way field-type mismatch errors want
// to report it.
func (t LogicalType) String() string {
	switch t {
	case Int8:
		return "Int8"
	case Int16:
		return "Int16"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Uint8:
		return "UInt8"
	case Uint16:
		return "UInt16"
	case Uint32:
		return "UInt32"
	case Uint64:
		return "UInt64"
	case Float16:
		return "Float16"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case Decimal128:
		return "Decimal128"
	case Decimal256:
		return "Decimal256"
	case Date32:
		return "Date32"
	case Date64:
		return "Date64"
	case Time32:
		return "Time32"
	case Time64:
		return "Time64"
	case Timestamp:
		return "Timestamp"
	case Utf8:
		return "Utf8"
	default:
		return "Invalid"
	}
}

// IsInteger reports whether t is one of the signed or unsigned integer
// domains (used by the binning engine's domain table).
func (t LogicalType) IsInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}

// IsSignedInteger reports whether t is Int8/16/32/64.
func (t LogicalType) IsSignedInteger() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsUnsignedInteger reports whether t is UInt8/16/32/64.
func (t LogicalType) IsUnsignedInteger() bool {
	switch t {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether t is Float16/32/64.
func (t LogicalType) IsFloat() bool {
	switch t {
	case Float16, Float32, Float64:
		return true
	default:
		return false
	}
}

// IsDecimal reports whether t is Decimal128 or Decimal256.
func (t LogicalType) IsDecimal() bool {
	return t == Decimal128 || t == Decimal256
}

// Type carries a logical type plus the parameters some of them need
// (decimal precision/scale, time unit, timestamp timezone).
type Type struct {
	Logical   LogicalType
	Precision int32  // Decimal128/Decimal256 only
	Scale     int32  // Decimal128/Decimal256 only
	Unit      TimeUnit
	TZ        string // Timestamp only, "" means no timezone
}

// IsInteger forwards to t.Logical.IsInteger.
func (t Type) IsInteger() bool { return t.Logical.IsInteger() }

// IsSignedInteger forwards to t.Logical.IsSignedInteger.
func (t Type) IsSignedInteger() bool { return t.Logical.IsSignedInteger() }

// IsUnsignedInteger forwards to t.Logical.IsUnsignedInteger.
func (t Type) IsUnsignedInteger() bool { return t.Logical.IsUnsignedInteger() }

// IsFloat forwards to t.Logical.IsFloat.
func (t Type) IsFloat() bool { return t.Logical.IsFloat() }

// IsDecimal forwards to t.Logical.IsDecimal.
func (t Type) IsDecimal() bool { return t.Logical.IsDecimal() }

// Int returns a plain Int{8,16,32,64} type.
func Int(bits int) Type {
	switch bits {
	case 8:
		return Type{Logical: Int8}
	case 16:
		return Type{Logical: Int16}
	case 32:
		return Type{Logical: Int32}
	default:
		return Type{Logical: Int64}
	}
}

// UInt returns a plain UInt{8,16,32,64} type.
func UInt(bits int) Type {
	switch bits {
	case 8:
		return Type{Logical: Uint8}
	case 16:
		return Type{Logical: Uint16}
	case 32:
		return Type{Logical: Uint32}
	default:
		return Type{Logical: Uint64}
	}
}

// Float returns a plain Float{16,32,64} type.
func Float(bits int) Type {
	switch bits {
	case 16:
		return Type{Logical: Float16}
	case 32:
		return Type{Logical: Float32}
	default:
		return Type{Logical: Float64}
	}
}

// DecimalType128 returns a Decimal128(p,s) type.
func DecimalType128(precision, scale int32) Type {
	return Type{Logical: Decimal128, Precision: precision, Scale: scale}
}

// DecimalType256 returns a Decimal256(p,s) type.
func DecimalType256(precision, scale int32) Type {
	return Type{Logical: Decimal256, Precision: precision, Scale: scale}
}

// TimestampType returns a Timestamp(unit, tz) type.
func TimestampType(unit TimeUnit, tz string) Type {
	return Type{Logical: Timestamp, Unit: unit, TZ: tz}
}

// Time32Type returns a Time32(unit) type. Unit must be Second or Millisecond.
func Time32Type(unit TimeUnit) Type {
	return Type{Logical: Time32, Unit: unit}
}

// Time64Type returns a Time64(unit) type. Unit must be Microsecond or Nanosecond.
func Time64Type(unit TimeUnit) Type {
	return Type{Logical: Time64, Unit: unit}
}

var (
	Date32Type    = Type{Logical: Date32}
	Date64Type    = Type{Logical: Date64}
	Utf8Type      = Type{Logical: Utf8}
	DurationMsType = Type{Logical: Int64} // width_display_type for timestamp/date bins, see binning package
)

// ToArrow converts a logical Type into its Arrow physical equivalent.
func (t Type) ToArrow() arrow.DataType {
	switch t.Logical {
	case Int8:
		return arrow.PrimitiveTypes.Int8
	case Int16:
		return arrow.PrimitiveTypes.Int16
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Uint8:
		return arrow.PrimitiveTypes.Uint8
	case Uint16:
		return arrow.PrimitiveTypes.Uint16
	case Uint32:
		return arrow.PrimitiveTypes.Uint32
	case Uint64:
		return arrow.PrimitiveTypes.Uint64
	case Float16:
		return arrow.FixedWidthTypes.Float16
	case Float32:
		return arrow.PrimitiveTypes.Float32
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Decimal128:
		return &arrow.Decimal128Type{Precision: t.Precision, Scale: t.Scale}
	case Decimal256:
		return &arrow.Decimal256Type{Precision: t.Precision, Scale: t.Scale}
	case Date32:
		return arrow.FixedWidthTypes.Date32
	case Date64:
		return arrow.FixedWidthTypes.Date64
	case Time32:
		return &arrow.Time32Type{Unit: t.Unit.toArrow()}
	case Time64:
		return &arrow.Time64Type{Unit: t.Unit.toArrow()}
	case Timestamp:
		return &arrow.TimestampType{Unit: t.Unit.toArrow(), TimeZone: t.TZ}
	case Utf8:
		return arrow.BinaryTypes.String
	default:
		return nil
	}
}

// TypeFromArrow derives a logical Type from an Arrow physical type.
func TypeFromArrow(dt arrow.DataType) (Type, error) {
	switch v := dt.(type) {
	case *arrow.Decimal128Type:
		return DecimalType128(v.Precision, v.Scale), nil
	case *arrow.Decimal256Type:
		return DecimalType256(v.Precision, v.Scale), nil
	case *arrow.Time32Type:
		return Time32Type(fromArrowUnit(v.Unit)), nil
	case *arrow.Time64Type:
		return Time64Type(fromArrowUnit(v.Unit)), nil
	case *arrow.TimestampType:
		return TimestampType(fromArrowUnit(v.Unit), v.TimeZone), nil
	}
	switch dt.ID() {
	case arrow.INT8:
		return Type{Logical: Int8}, nil
	case arrow.INT16:
		return Type{Logical: Int16}, nil
	case arrow.INT32:
		return Type{Logical: Int32}, nil
	case arrow.INT64:
		return Type{Logical: Int64}, nil
	case arrow.UINT8:
		return Type{Logical: Uint8}, nil
	case arrow.UINT16:
		return Type{Logical: Uint16}, nil
	case arrow.UINT32:
		return Type{Logical: Uint32}, nil
	case arrow.UINT64:
		return Type{Logical: Uint64}, nil
	case arrow.FLOAT16:
		return Type{Logical: Float16}, nil
	case arrow.FLOAT32:
		return Type{Logical: Float32}, nil
	case arrow.FLOAT64:
		return Type{Logical: Float64}, nil
	case arrow.DATE32:
		return Date32Type, nil
	case arrow.DATE64:
		return Date64Type, nil
	case arrow.STRING:
		return Utf8Type, nil
	default:
		return Type{}, fmt.Errorf("schema: unsupported arrow type %s", dt.Name())
	}
}

// Equal reports whether two logical types are identical, including
// decimal precision/scale and timestamp/time units.
func (t Type) Equal(o Type) bool {
	if t.Logical != o.Logical {
		return false
	}
	switch t.Logical {
	case Decimal128, Decimal256:
		return t.Precision == o.Precision && t.Scale == o.Scale
	case Timestamp:
		return t.Unit == o.Unit && t.TZ == o.TZ
	case Time32, Time64:
		return t.Unit == o.Unit
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Logical {
	case Decimal128:
		return fmt.Sprintf("Decimal128(%d,%d)", t.Precision, t.Scale)
	case Decimal256:
		return fmt.Sprintf("Decimal256(%d,%d)", t.Precision, t.Scale)
	case Timestamp:
		return fmt.Sprintf("Timestamp(%v, tz=%q)", t.Unit, t.TZ)
	case Time32:
		return fmt.Sprintf("Time32(%v)", t.Unit)
	case Time64:
		return fmt.Sprintf("Time64(%v)", t.Unit)
	default:
		return t.Logical.String()
	}
}

// Field is (name, logical type, nullable).
type Field struct {
	Name     string
	Type     Type
	Nullable bool
}

// ToArrow converts a Field into an arrow.Field.
func (f Field) ToArrow() arrow.Field {
	return arrow.Field{Name: f.Name, Type: f.Type.ToArrow(), Nullable: f.Nullable}
}

// Schema is an ordered, name-unique list of fields.
type Schema struct {
	Fields []Field
}

// New builds a Schema, rejecting duplicate (case-sensitive) field names.
func New(fields ...Field) (Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Name]; ok {
			return Schema{}, fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return Schema{Fields: fields}, nil
}

// IndexOf returns the position of a field by name.
func (s Schema) IndexOf(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Field returns the field at index i.
func (s Schema) Field(i int) Field { return s.Fields[i] }

// Lookup returns the field named name.
func (s Schema) Lookup(name string) (Field, bool) {
	if i, ok := s.IndexOf(name); ok {
		return s.Fields[i], true
	}
	return Field{}, false
}

// Append returns a new schema with f appended, rejecting a name collision.
func (s Schema) Append(f Field) (Schema, error) {
	if _, ok := s.IndexOf(f.Name); ok {
		return Schema{}, fmt.Errorf("schema: duplicate field name %q", f.Name)
	}
	out := make([]Field, len(s.Fields)+1)
	copy(out, s.Fields)
	out[len(s.Fields)] = f
	return Schema{Fields: out}, nil
}

// ToArrow converts the Schema into an *arrow.Schema.
func (s Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.ToArrow()
	}
	return arrow.NewSchema(fields, nil)
}

// FromArrow converts an *arrow.Schema into a Schema.
func FromArrow(as *arrow.Schema) (Schema, error) {
	fields := make([]Field, as.NumFields())
	for i := 0; i < as.NumFields(); i++ {
		af := as.Field(i)
		t, err := TypeFromArrow(af.Type)
		if err != nil {
			return Schema{}, err
		}
		fields[i] = Field{Name: af.Name, Type: t, Nullable: af.Nullable}
	}
	return Schema{Fields: fields}, nil
}
