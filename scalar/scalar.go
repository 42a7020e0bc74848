// Package scalar implements the typed scalar value model: a tagged union
// over every schema.LogicalType, width-preserving domain arithmetic, and
// the cast rules spec'd for the expression layer and the binning engine.
// Decimal values are carried as math/big.Int mantissas (scaled by
// 10^scale) and only converted to arrow-go's decimal128.Num/decimal256.Num
// at the array-construction boundary, so arithmetic never depends on
// Arrow decimal kernels that aren't part of the public Num API.
package scalar

import (
	"fmt"
	"math"
	"math/big"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/schema"
)

// Value is a typed scalar, or null, in one of schema's logical domains.
type Value struct {
	Type schema.Type
	Null bool

	i64 int64   // Int8/16/32/64, Time32 (via Int32 promotion stored in i64), Time64, Timestamp, Date32 (days), Date64 (ms)
	u64 uint64  // Uint8/16/32/64
	f64 float64 // Float16/32/64
	str string  // Utf8
	dec *big.Int // Decimal128/256 mantissa, scaled by 10^Scale
}

// Null returns a null scalar of the given type.
func Null(t schema.Type) Value { return Value{Type: t, Null: true} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Null }

// Int64 builds a non-null Int64 (or narrower Int*) scalar.
func Int64(t schema.Type, v int64) Value { return Value{Type: t, i64: v} }

// Uint64 builds a non-null UInt64 (or narrower UInt*) scalar.
func Uint64(t schema.Type, v uint64) Value { return Value{Type: t, u64: v} }

// Float64Val builds a non-null Float64 (or narrower Float*) scalar.
func Float64Val(t schema.Type, v float64) Value { return Value{Type: t, f64: v} }

// Str builds a non-null Utf8 scalar.
func Str(v string) Value { return Value{Type: schema.Utf8Type, str: v} }

// Decimal builds a non-null decimal scalar from a pre-scaled mantissa.
func Decimal(t schema.Type, mantissa *big.Int) Value {
	return Value{Type: t, dec: new(big.Int).Set(mantissa)}
}

// AsInt64 extracts the integer domain value (valid for Int*, Time32/64,
// Timestamp, Date32/64).
func (v Value) AsInt64() int64 { return v.i64 }

// AsUint64 extracts the unsigned-integer domain value.
func (v Value) AsUint64() uint64 { return v.u64 }

// AsFloat64 extracts the float domain value.
func (v Value) AsFloat64() float64 { return v.f64 }

// AsString extracts the Utf8 value.
func (v Value) AsString() string { return v.str }

// AsDecimal extracts the decimal mantissa (scaled by 10^Scale).
func (v Value) AsDecimal() *big.Int {
	if v.dec == nil {
		return big.NewInt(0)
	}
	return v.dec
}

// pow10 returns 10^n as a *big.Int, n >= 0.
func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ---- Cast --------------------------------------------------------------

// Cast converts v into the target logical type, following the rules of
// spec §4.2: integer<->float lossy allowed; Date32->Timestamp(ms) via
// day*86_400_000; Date64->Timestamp(ms) identity; Time32/Time64->Int32/
// Int64 identity; integer->Decimal scales the value by 10^Scale;
// Decimal256->Decimal128 allowed when the value fits (else EvalError);
// Decimal->Float64 allowed.
func (v Value) Cast(to schema.Type) (Value, error) {
	if v.Null {
		return Null(to), nil
	}
	from := v.Type.Logical
	if from == to.Logical && v.Type.Equal(to) {
		return v, nil
	}

	switch {
	case from.IsInteger() && to.IsInteger():
		if to.IsUnsignedInteger() {
			return Uint64(to, uint64(v.asSignedOrUnsignedInt())), nil
		}
		return Int64(to, v.asSignedOrUnsignedInt()), nil
	case from.IsInteger() && to.IsFloat():
		return Float64Val(to, v.intAsFloat()), nil
	case from.IsFloat() && to.IsInteger():
		if to.IsUnsignedInteger() {
			return Uint64(to, uint64(int64(v.f64))), nil
		}
		return Int64(to, int64(v.f64)), nil
	case from.IsFloat() && to.IsFloat():
		return Float64Val(to, v.f64), nil

	case from == schema.Date32 && to.Logical == schema.Timestamp:
		return Int64(to, v.i64*86_400_000), nil
	case from == schema.Date64 && to.Logical == schema.Timestamp:
		return Int64(to, v.i64), nil
	case from == schema.Time32 && to.Logical == schema.Int32:
		return Int64(to, v.i64), nil
	case from == schema.Time64 && to.Logical == schema.Int64:
		return Int64(to, v.i64), nil
	case from.IsInteger() && to.Logical == schema.Time32:
		return Int64(to, v.asSignedOrUnsignedInt()), nil
	case from.IsInteger() && to.Logical == schema.Time64:
		return Int64(to, v.asSignedOrUnsignedInt()), nil
	case from == schema.Timestamp && to.Logical == schema.Int64:
		return Int64(to, v.i64), nil
	case from.IsInteger() && to.Logical == schema.Timestamp:
		return Int64(to, v.asSignedOrUnsignedInt()), nil
	case from == schema.Timestamp && to.Logical == schema.Timestamp:
		return Int64(to, convertTimeUnit(v.i64, v.Type.Unit, to.Unit)), nil

	case from.IsInteger() && to.IsDecimal():
		return Decimal(to, new(big.Int).Mul(big.NewInt(v.asSignedOrUnsignedInt()), pow10(to.Scale))), nil
	case from == schema.Decimal256 && to.Logical == schema.Decimal128:
		return v.rescaleDecimal(to, true)
	case from == schema.Decimal128 && to.Logical == schema.Decimal256:
		return v.rescaleDecimal(to, false)
	case from.IsDecimal() && to.Logical == schema.Decimal128:
		return v.rescaleDecimal(to, true)
	case from.IsDecimal() && to.Logical == schema.Decimal256:
		return v.rescaleDecimal(to, false)
	case from.IsDecimal() && to.Logical == schema.Float64:
		// §9 Open Question: no direct Decimal256->Float64 conversion is
		// provided; decimals round-trip through Decimal128 first, matching
		// the original implementation's documented workaround.
		mid := v
		if from == schema.Decimal256 {
			narrowed, err := v.rescaleDecimal(schema.DecimalType128(v.Type.Precision, v.Type.Scale), true)
			if err != nil {
				return Value{}, err
			}
			mid = narrowed
		}
		f := new(big.Float).SetInt(mid.dec)
		f.Quo(f, new(big.Float).SetInt(pow10(mid.Type.Scale)))
		out, _ := f.Float64()
		return Float64Val(to, out), nil
	default:
		return Value{}, dferrors.NewEvalError("cast", fmt.Sprintf("unsupported cast %s -> %s", v.Type, to))
	}
}

func (v Value) asSignedOrUnsignedInt() int64 {
	if v.Type.IsUnsignedInteger() {
		return int64(v.u64)
	}
	return v.i64
}

func (v Value) intAsFloat() float64 {
	if v.Type.IsUnsignedInteger() {
		return float64(v.u64)
	}
	return float64(v.i64)
}

func convertTimeUnit(val int64, from, to schema.TimeUnit) int64 {
	scale := map[schema.TimeUnit]int64{
		schema.Second:      1_000_000_000,
		schema.Millisecond: 1_000_000,
		schema.Microsecond: 1_000,
		schema.Nanosecond:  1,
	}
	nanos := val * scale[from]
	return nanos / scale[to]
}

// rescaleDecimal converts between Decimal128 and Decimal256, adjusting the
// mantissa for a precision/scale change and checking that it still fits
// when narrowing to Decimal128.
func (v Value) rescaleDecimal(to schema.Type, narrowing bool) (Value, error) {
	mantissa := new(big.Int).Set(v.AsDecimal())
	if to.Scale != v.Type.Scale {
		if to.Scale > v.Type.Scale {
			mantissa.Mul(mantissa, pow10(to.Scale-v.Type.Scale))
		} else {
			mantissa.Quo(mantissa, pow10(v.Type.Scale-to.Scale))
		}
	}
	if narrowing {
		n, err := decimal128.FromBigInt(mantissa)
		if err != nil || !n.FitsInPrecision(to.Precision) {
			return Value{}, dferrors.NewEvalError("cast", fmt.Sprintf("decimal value %s does not fit Decimal128(%d,%d)", mantissa.String(), to.Precision, to.Scale))
		}
	}
	return Decimal(to, mantissa), nil
}

// ---- Arithmetic ---------------------------------------------------------

// opName is used in EvalError messages.
type opName string

const (
	opAdd opName = "+"
	opSub opName = "-"
	opMul opName = "*"
	opDiv opName = "/"
)

// Add adds two scalars of the same domain. See arith for the shared rules.
func (v Value) Add(o Value) (Value, error) { return v.arith(o, opAdd) }

// Sub subtracts two scalars of the same domain.
func (v Value) Sub(o Value) (Value, error) { return v.arith(o, opSub) }

// Mul multiplies two scalars of the same domain.
func (v Value) Mul(o Value) (Value, error) { return v.arith(o, opMul) }

// Div divides two scalars of the same domain. Division by a literal zero
// is only auto-replaced with 1 inside the binning engine's width
// derivation (spec §4.2); ordinary division by zero here is an EvalError.
func (v Value) Div(o Value) (Value, error) { return v.arith(o, opDiv) }

func (v Value) arith(o Value, op opName) (Value, error) {
	if v.Null || o.Null {
		return Null(v.Type), nil
	}
	if !v.Type.Equal(o.Type) {
		return Value{}, dferrors.NewEvalError(string(op), fmt.Sprintf("domain mismatch: %s vs %s", v.Type, o.Type))
	}
	switch {
	case v.Type.Logical.IsFloat():
		return floatArith(v.Type, v.f64, o.f64, op)
	case v.Type.Logical.IsSignedInteger() || v.Type.Logical == schema.Timestamp ||
		v.Type.Logical == schema.Time32 || v.Type.Logical == schema.Time64 ||
		v.Type.Logical == schema.Date32 || v.Type.Logical == schema.Date64:
		return signedArith(v.Type, v.i64, o.i64, op)
	case v.Type.Logical.IsUnsignedInteger():
		return unsignedArith(v.Type, v.u64, o.u64, op)
	case v.Type.Logical.IsDecimal():
		return decimalArith(v.Type, v.AsDecimal(), o.AsDecimal(), op)
	default:
		return Value{}, dferrors.NewEvalError(string(op), fmt.Sprintf("arithmetic is not defined over %s", v.Type))
	}
}

func floatArith(t schema.Type, a, b float64, op opName) (Value, error) {
	switch op {
	case opAdd:
		return Float64Val(t, a+b), nil
	case opSub:
		return Float64Val(t, a-b), nil
	case opMul:
		return Float64Val(t, a*b), nil
	case opDiv:
		if b == 0 {
			return Value{}, dferrors.NewEvalError(string(op), "division by zero")
		}
		return Float64Val(t, a/b), nil
	}
	return Value{}, dferrors.NewEvalError(string(op), "unreachable")
}

func signedArith(t schema.Type, a, b int64, op opName) (Value, error) {
	switch op {
	case opAdd:
		return Int64(t, a+b), nil
	case opSub:
		return Int64(t, a-b), nil
	case opMul:
		return Int64(t, a*b), nil
	case opDiv:
		if b == 0 {
			return Value{}, dferrors.NewEvalError(string(op), "division by zero")
		}
		return Int64(t, a/b), nil
	}
	return Value{}, dferrors.NewEvalError(string(op), "unreachable")
}

func unsignedArith(t schema.Type, a, b uint64, op opName) (Value, error) {
	switch op {
	case opAdd:
		return Uint64(t, a+b), nil
	case opSub:
		if b > a {
			return Value{}, dferrors.NewEvalError(string(op), "unsigned subtraction underflow")
		}
		return Uint64(t, a-b), nil
	case opMul:
		return Uint64(t, a*b), nil
	case opDiv:
		if b == 0 {
			return Value{}, dferrors.NewEvalError(string(op), "division by zero")
		}
		return Uint64(t, a/b), nil
	}
	return Value{}, dferrors.NewEvalError(string(op), "unreachable")
}

func decimalArith(t schema.Type, a, b *big.Int, op opName) (Value, error) {
	switch op {
	case opAdd:
		return Decimal(t, new(big.Int).Add(a, b)), nil
	case opSub:
		return Decimal(t, new(big.Int).Sub(a, b)), nil
	case opMul:
		// a, b are both scaled by 10^scale; the raw product is scaled by
		// 10^(2*scale) and must be rescaled back down.
		prod := new(big.Int).Mul(a, b)
		return Decimal(t, prod.Quo(prod, pow10(t.Scale))), nil
	case opDiv:
		if b.Sign() == 0 {
			return Value{}, dferrors.NewEvalError(string(op), "division by zero")
		}
		// (a * 10^scale) / b keeps the result scaled by 10^scale.
		num := new(big.Int).Mul(a, pow10(t.Scale))
		return Decimal(t, num.Quo(num, b)), nil
	}
	return Value{}, dferrors.NewEvalError(string(op), "unreachable")
}

// Abs returns the absolute value of v, used by the binning engine's
// sign-absolute width derivation.
func (v Value) Abs() Value {
	switch {
	case v.Type.Logical.IsFloat():
		return Float64Val(v.Type, math.Abs(v.f64))
	case v.Type.Logical.IsUnsignedInteger():
		return v
	case v.Type.Logical.IsDecimal():
		return Decimal(v.Type, new(big.Int).Abs(v.AsDecimal()))
	default:
		if v.i64 < 0 {
			return Int64(v.Type, -v.i64)
		}
		return v
	}
}

// IsZero reports whether v is the zero value of its domain (ignoring
// null), used by the binning width->1 substitution.
func (v Value) IsZero() bool {
	switch {
	case v.Type.Logical.IsFloat():
		return v.f64 == 0
	case v.Type.Logical.IsUnsignedInteger():
		return v.u64 == 0
	case v.Type.Logical.IsDecimal():
		return v.AsDecimal().Sign() == 0
	default:
		return v.i64 == 0
	}
}

// Compare orders two scalars of the same domain; ok is false when the
// domains differ or either operand is null (not comparable per spec §4.2).
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.Null || o.Null || !v.Type.Equal(o.Type) {
		return 0, false
	}
	switch {
	case v.Type.Logical.IsFloat():
		return cmpFloat(v.f64, o.f64), true
	case v.Type.Logical.IsUnsignedInteger():
		return cmpUint(v.u64, o.u64), true
	case v.Type.Logical.IsDecimal():
		return v.AsDecimal().Cmp(o.AsDecimal()), true
	case v.Type.Logical == schema.Utf8:
		switch {
		case v.str < o.str:
			return -1, true
		case v.str > o.str:
			return 1, true
		default:
			return 0, true
		}
	default:
		return cmpInt(v.i64, o.i64), true
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ToDecimal128 converts the mantissa into an Arrow decimal128.Num for
// array construction.
func (v Value) ToDecimal128() (decimal128.Num, error) {
	return decimal128.FromBigInt(v.AsDecimal())
}

// ToDecimal256 converts the mantissa into an Arrow decimal256.Num for
// array construction.
func (v Value) ToDecimal256() (decimal256.Num, error) {
	return decimal256.FromBigInt(v.AsDecimal())
}
