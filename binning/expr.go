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

package binning

import (
	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/operator"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// FractionalExpr builds the expression computing a field's fractional
// position inside its binned range: ((cast<BoundsType>(field) -
// min) cast<WidthDisplayType> cast<Float64>) / cast<Float64>(width).
//
// Every field domain funnels through the same two casts before the
// subtraction result reaches Float64: for Timestamp fields the Binary
// Sub of two Timestamp operands already widens to Int64 (the ts-ts rule
// in dfexpr.Binary), so the WidthDisplayType cast that follows is a
// no-op; for Time32/Time64 it performs the actual narrowing the reference
// engine's bin_field does explicitly before subtracting. Float/UInt/Int
// sub-widths and Decimal never need the intermediate step since their
// span is already numeric and scalar.Cast goes straight to Float64.
func FractionalExpr(field string, meta Metadata) dfexpr.Expr {
	boundsCol := dfexpr.Cast{To: meta.BoundsType, Input: dfexpr.Column{Name: field}}
	delta := dfexpr.Binary{Op: dfexpr.Sub, Left: boundsCol, Right: dfexpr.Literal{Value: meta.MinValue}}
	deltaTyped := dfexpr.Cast{To: meta.WidthDisplayType, Input: delta}
	deltaF64 := dfexpr.Cast{To: schema.Float(64), Input: deltaTyped}
	widthF64 := dfexpr.Cast{To: schema.Float(64), Input: dfexpr.Literal{Value: meta.Width}}
	return dfexpr.Binary{Op: dfexpr.Div, Left: deltaF64, Right: widthF64}
}

// IntegerKeyExpr floors a fractional position and clamps it into
// [0, binCount), matching the reference engine's clamp_bin: only the
// upper bound is clamped (a fractional value can't go negative once the
// field's own min has been subtracted), the last bin absorbing the value
// exactly at max.
func IntegerKeyExpr(fractional dfexpr.Expr, binCount uint32) dfexpr.Expr {
	if binCount == 0 {
		binCount = 1
	}
	floored := dfexpr.Floor{Input: fractional}
	key := dfexpr.Cast{To: schema.UInt(32), Input: floored}
	lastBin := scalar.Uint64(schema.UInt(32), uint64(binCount-1))
	overflow := dfexpr.Comparison{
		Op:    dfexpr.Ge,
		Left:  key,
		Right: dfexpr.Literal{Value: scalar.Uint64(schema.UInt(32), uint64(binCount))},
	}
	return dfexpr.Case{When: overflow, Then: dfexpr.Literal{Value: lastBin}, Else: key}
}

// MetadataColumns builds the bin_width/bin_lb/bin_ub project fields a
// binned group-by reports alongside its synthetic UInt32 key, grounded on
// BinningMetadata::compute_group_metadata_fields: bin_lb = min +
// key*width, bin_ub = bin_lb + width, both cast into BoundsType.
func MetadataColumns(meta Metadata, keyField, widthAlias, lbAlias, ubAlias string) []operator.ProjectField {
	keyCast := dfexpr.Cast{To: meta.WidthDisplayType, Input: dfexpr.Column{Name: keyField}}
	widthLit := dfexpr.Literal{Value: meta.Width}
	minLit := dfexpr.Literal{Value: meta.MinValue}

	offsetLB := dfexpr.Binary{Op: dfexpr.Mul, Left: keyCast, Right: widthLit}
	offsetUB := dfexpr.Binary{Op: dfexpr.Add, Left: offsetLB, Right: widthLit}

	lb := dfexpr.Cast{
		To:    meta.BoundsType,
		Input: dfexpr.Binary{Op: dfexpr.Add, Left: minLit, Right: dfexpr.Cast{To: meta.BoundsType, Input: offsetLB}},
	}
	ub := dfexpr.Cast{
		To:    meta.BoundsType,
		Input: dfexpr.Binary{Op: dfexpr.Add, Left: minLit, Right: dfexpr.Cast{To: meta.BoundsType, Input: offsetUB}},
	}

	return []operator.ProjectField{
		{Alias: widthAlias, Expr: widthLit},
		{Alias: lbAlias, Expr: lb},
		{Alias: ubAlias, Expr: ub},
	}
}

// PreBinnedFastPath validates a caller-supplied pre-computed fractional
// bin column (spec §4.4's escape hatch for callers that already bucketed
// a field themselves) and returns the expression to group by: the column
// itself, which the compiler still needs to floor+clamp with
// IntegerKeyExpr exactly as it would a derived fractional value.
func PreBinnedFastPath(preBinnedField string, input schema.Schema) (dfexpr.Expr, error) {
	f, ok := input.Lookup(preBinnedField)
	if !ok {
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "group_by", preBinnedField, "pre-computed bin field not found")
	}
	if f.Type.Logical != schema.Float64 {
		return nil, dferrors.NewPlanError(dferrors.WrongPreBinnedType, "group_by", preBinnedField, "pre-computed bin field must be Float64")
	}
	return dfexpr.Column{Name: preBinnedField}, nil
}

// CompleteBins wraps a binned HashGroupBy in the bin-completion left join
// so every bucket in [0, binCount) appears in the output even when no row
// landed in it.
func CompleteBins(grouped operator.Operator, binField string, binCount uint32) (operator.Operator, error) {
	return operator.NewBinCompletionJoin(grouped, binField, binCount)
}
