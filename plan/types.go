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

// Package plan holds the declarative DataFrameTransform the engine
// compiles into a physical operator tree, the opaque wire codec that
// decodes plan/stats bytes into it, and the compiler itself
// (compiler.go). The struct shapes mirror the transform's conceptual
// schema field for field; every stage is a nil/empty pointer or slice
// when the plan doesn't use it.
package plan

// FilterOperator enumerates the six comparison operators a FilterTransform
// may use.
type FilterOperator int

const (
	Eq FilterOperator = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// FilterLiteral is a tagged-union JSON literal: exactly one of Double,
// String or Int is set. Comparing against another column instead of a
// literal uses FilterTransform.JoinField.
type FilterLiteral struct {
	Double *float64 `json:"double,omitempty"`
	String *string  `json:"string,omitempty"`
	Int    *int64   `json:"int,omitempty"`
}

// FilterTransform is one predicate: Field compared (Operator) against
// either Literal or another column named JoinField.
type FilterTransform struct {
	Field     string         `json:"field"`
	Operator  FilterOperator `json:"operator"`
	Literal   *FilterLiteral `json:"literal,omitempty"`
	JoinField *string        `json:"join_field,omitempty"`
}

// RowNumberTransform appends a UInt64 1..N column named OutputAlias.
type RowNumberTransform struct {
	OutputAlias string `json:"output_alias"`
}

// ValueIdTransform appends a UInt32 dense-rank column of FieldName, named
// OutputAlias. Ranks follow the ascending/nulls-last order of FieldName;
// the rows themselves keep their input order.
type ValueIdTransform struct {
	FieldName   string `json:"field_name"`
	OutputAlias string `json:"output_alias"`
}

// BinningTransform appends a Float64 fractional bin column named
// OutputAlias, computed from FieldName against the stats frame's
// StatsMinField/StatsMaxField columns.
type BinningTransform struct {
	FieldName    string `json:"field_name"`
	StatsMinField string `json:"stats_min_field"`
	StatsMaxField string `json:"stats_max_field"`
	BinCount     uint32 `json:"bin_count"`
	OutputAlias  string `json:"output_alias"`
}

// GroupByKeyBinning turns a GroupByKey into a binned key: either recomputes
// the fractional bin from StatsMinField/StatsMaxField (the normal path) or,
// when PreBinnedFieldName is set, uses that pre-computed Float64 column
// directly (binning.PreBinnedFastPath).
type GroupByKeyBinning struct {
	PreBinnedFieldName  *string `json:"pre_binned_field_name,omitempty"`
	StatsMinField       string  `json:"stats_min_field"`
	StatsMaxField       string  `json:"stats_max_field"`
	BinCount            uint32  `json:"bin_count"`
	OutputBinWidthAlias string  `json:"output_bin_width_alias"`
	OutputBinLbAlias    string  `json:"output_bin_lb_alias"`
	OutputBinUbAlias    string  `json:"output_bin_ub_alias"`
}

// GroupByKey is one grouping column. At most one key across the whole
// transform may carry Binning.
type GroupByKey struct {
	FieldName   string             `json:"field_name"`
	OutputAlias string             `json:"output_alias"`
	Binning     *GroupByKeyBinning `json:"binning,omitempty"`
}

// AggregationFunction enumerates the five aggregate functions a
// GroupByAggregate may use.
type AggregationFunction int

const (
	Min AggregationFunction = iota
	Max
	Average
	Count
	CountStar
)

// GroupByAggregate is one output aggregate column. FieldName is nil only
// for CountStar.
type GroupByAggregate struct {
	FieldName           *string             `json:"field_name,omitempty"`
	OutputAlias         string              `json:"output_alias"`
	AggregationFunction AggregationFunction `json:"aggregation_function"`
	AggregateDistinct   bool                `json:"aggregate_distinct,omitempty"`
}

// GroupByTransform is the hash group-by stage: Keys first, then
// Aggregates, both emitted in declared order.
type GroupByTransform struct {
	Keys       []GroupByKey       `json:"keys"`
	Aggregates []GroupByAggregate `json:"aggregates"`
}

// OrderByConstraint is one ORDER BY key.
type OrderByConstraint struct {
	Field      string `json:"field"`
	Ascending  bool   `json:"ascending"`
	NullsFirst bool   `json:"nulls_first"`
}

// OrderByTransform is the final sort/fetch stage.
type OrderByTransform struct {
	Constraints []OrderByConstraint `json:"constraints"`
	Limit       *int                `json:"limit,omitempty"`
}

// DataFrameTransform is the full declarative plan: every field absent (nil
// or empty) is a no-op for that stage. The compiler applies the stages in
// the fixed order filters -> row_number -> value_identifiers -> binning ->
// group_by -> order_by regardless of the struct's field order.
type DataFrameTransform struct {
	Filters          []FilterTransform    `json:"filters,omitempty"`
	RowNumber        *RowNumberTransform  `json:"row_number,omitempty"`
	ValueIdentifiers []ValueIdTransform   `json:"value_identifiers,omitempty"`
	Binning          []BinningTransform   `json:"binning,omitempty"`
	GroupBy          *GroupByTransform    `json:"group_by,omitempty"`
	OrderBy          *OrderByTransform    `json:"order_by,omitempty"`
}
