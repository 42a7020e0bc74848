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

// Package binning derives the per-field parameters a fractional bin
// assignment needs and turns them into the dfexpr trees the transform
// compiler wires into a plan: the fractional position of a value inside
// [min, max), the clamped integer bin key, and the bin_width/bin_lb/bin_ub
// metadata columns reported alongside a binned group. The per-type domain
// table (float/unsigned/signed/timestamp/time/date/decimal) is grounded on
// the reference engine's data_frame.rs bin_field dispatch; every width is
// derived the same way that file does it (span over binCount, absolute
// value, substituting 1 for a zero-width domain) and Date32/Date64 are
// bridged through Timestamp(ms) since this engine's scalar cast table has
// no direct arithmetic domain for calendar dates.
package binning

import (
	"math/big"

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// Metadata is the derived per-field binning parameters that FractionalExpr,
// IntegerKeyExpr and MetadataColumns are built from.
//
// MinValue is always cast into BoundsType's domain (identity for every
// field type except Date32/Date64, which are bridged through
// Timestamp(ms)). Width is always cast into WidthDisplayType's domain,
// which for Float/UInt/Int sub-widths is the full-width domain
// (Float64/UInt64/Int64) and for Time32/Time64/Timestamp/Date is Int32 or
// Int64, matching how the reference engine reports bin_width.
type Metadata struct {
	MinValue         scalar.Value
	Width            scalar.Value
	WidthDisplayType schema.Type
	BoundsType       schema.Type
}

// DeriveMetadata computes Metadata for one field being binned into
// binCount buckets, given the field's observed [min, max] range (typically
// read from a one-row statistics frame, see frame.Frame.AsStats). binCount
// is clamped to at least 1.
func DeriveMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	if binCount == 0 {
		binCount = 1
	}
	switch {
	case fieldType.Logical.IsFloat():
		return floatMetadata(fieldType, binCount, min, max)
	case fieldType.Logical.IsUnsignedInteger():
		return uintMetadata(fieldType, binCount, min, max)
	case fieldType.Logical.IsSignedInteger():
		return intMetadata(fieldType, binCount, min, max)
	case fieldType.Logical == schema.Timestamp:
		return timestampMetadata(fieldType, binCount, min, max)
	case fieldType.Logical == schema.Time32:
		return timeMetadata(fieldType, schema.Int(32), binCount, min, max)
	case fieldType.Logical == schema.Time64:
		return timeMetadata(fieldType, schema.Int(64), binCount, min, max)
	case fieldType.Logical == schema.Date32 || fieldType.Logical == schema.Date64:
		return dateMetadata(fieldType, binCount, min, max)
	case fieldType.Logical == schema.Decimal128 || fieldType.Logical == schema.Decimal256:
		return decimalMetadata(fieldType, binCount, min, max)
	default:
		return Metadata{}, dferrors.NewPlanError(dferrors.WrongPreBinnedType, "binning", "", "binning is not defined for type "+fieldType.String())
	}
}

func floatMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	widthDT := schema.Float(64)
	minF, err := minV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxF, err := maxV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxF.Sub(minF)
	if err != nil {
		return Metadata{}, err
	}
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: widthDT, BoundsType: fieldType}, nil
}

func uintMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	widthDT := schema.UInt(64)
	minU, err := minV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxU, err := maxV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxU.Sub(minU)
	if err != nil {
		return Metadata{}, err
	}
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: widthDT, BoundsType: fieldType}, nil
}

func intMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	widthDT := schema.Int(64)
	minI, err := minV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxI, err := maxV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxI.Sub(minI)
	if err != nil {
		return Metadata{}, err
	}
	span = span.Abs()
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: widthDT, BoundsType: fieldType}, nil
}

func timestampMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	widthDT := schema.Int(64)
	minI, err := minV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxI, err := maxV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxI.Sub(minI)
	if err != nil {
		return Metadata{}, err
	}
	span = span.Abs()
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: widthDT, BoundsType: fieldType}, nil
}

// timeMetadata handles Time32 (paired with Int32) and Time64 (paired with
// Int64), the two intraday clock domains.
func timeMetadata(fieldType, widthDT schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	minI, err := minV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxI, err := maxV.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxI.Sub(minI)
	if err != nil {
		return Metadata{}, err
	}
	span = span.Abs()
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: widthDT, BoundsType: fieldType}, nil
}

// dateMetadata bridges Date32/Date64 through Timestamp(ms): this engine's
// scalar domain has no native day-granularity arithmetic, so both the
// bounds and the width live in Timestamp(ms) rather than the original
// Date32/Date64 type. This is a deliberate simplification over the
// reference engine (which casts bin bounds back to the original date
// type); it is recorded as an open decision rather than silently
// mismatched, since scalar.Cast has no Timestamp->Date32/64 rule to invert
// it with.
func dateMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	tsType := schema.TimestampType(schema.Millisecond, "")
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	minTs, err := minV.Cast(tsType)
	if err != nil {
		return Metadata{}, err
	}
	maxTs, err := maxV.Cast(tsType)
	if err != nil {
		return Metadata{}, err
	}
	widthDT := schema.Int(64)
	minI, err := minTs.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	maxI, err := maxTs.Cast(widthDT)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxI.Sub(minI)
	if err != nil {
		return Metadata{}, err
	}
	span = span.Abs()
	width, err := divByCount(span, widthDT, binCount)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{MinValue: minTs, Width: width, WidthDisplayType: widthDT, BoundsType: tsType}, nil
}

func decimalMetadata(fieldType schema.Type, binCount uint32, min, max scalar.Value) (Metadata, error) {
	minV, err := min.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	maxV, err := max.Cast(fieldType)
	if err != nil {
		return Metadata{}, err
	}
	span, err := maxV.Sub(minV)
	if err != nil {
		return Metadata{}, err
	}
	span = span.Abs()
	divisorMantissa := new(big.Int).Mul(big.NewInt(int64(binCount)), pow10(fieldType.Scale))
	divisor := scalar.Decimal(fieldType, divisorMantissa)
	width, err := span.Div(divisor)
	if err != nil {
		return Metadata{}, err
	}
	if width.IsZero() {
		width = scalar.Decimal(fieldType, pow10(fieldType.Scale))
	}
	return Metadata{MinValue: minV, Width: width, WidthDisplayType: fieldType, BoundsType: fieldType}, nil
}

// divByCount divides span (already in t's domain) by binCount, taking the
// absolute value and substituting 1 when the result is zero — the
// reference engine's guard against a degenerate zero-width bin.
func divByCount(span scalar.Value, t schema.Type, binCount uint32) (scalar.Value, error) {
	divisor := numericLiteral(t, binCount)
	width, err := span.Div(divisor)
	if err != nil {
		return scalar.Value{}, err
	}
	width = width.Abs()
	if width.IsZero() {
		return numericLiteral(t, 1), nil
	}
	return width, nil
}

func numericLiteral(t schema.Type, n uint32) scalar.Value {
	switch {
	case t.Logical.IsFloat():
		return scalar.Float64Val(t, float64(n))
	case t.Logical.IsUnsignedInteger():
		return scalar.Uint64(t, uint64(n))
	default:
		return scalar.Int64(t, int64(n))
	}
}

// pow10 returns 10^n as a *big.Int, n >= 0. Duplicated from the scalar
// package (unexported there) since decimal literal construction for a bin
// divisor is purely a binning-engine concern.
func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
