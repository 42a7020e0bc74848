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

package plan

import (
	"github.com/rulego/dataframe/binning"
	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/operator"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// Compile translates a DataFrameTransform into a physical operator tree
// rooted at base, applying the stages in the fixed order filters ->
// row_number -> value_identifiers -> binning -> group_by -> order_by.
// base is typically an *operator.Scan built by the caller from its input
// Frame: the transform's conceptual schema describes an "input schema"
// as Compile's second argument, but a physical operator tree needs a
// concrete operator owning real partitions at its leaf, not a bare
// schema, so base stands in for that leaf here. stats is the one-row
// statistics frame used by any binning stage or binned group-by key
// (including a pre-binned key, whose bin width and bounds columns still
// come from it); it may be nil when the transform needs no stats.
func Compile(transform *DataFrameTransform, base operator.Operator, stats *frame.Frame) (operator.Operator, error) {
	cur := base

	for _, f := range transform.Filters {
		pred, err := buildFilterPredicate(f, cur.Schema())
		if err != nil {
			return nil, err
		}
		if _, err := pred.OutputType(cur.Schema()); err != nil {
			return nil, err
		}
		cur = &operator.Filter{Input: cur, Predicate: pred}
	}

	if transform.RowNumber != nil {
		if err := requireNoCollision(cur.Schema(), "row_number", transform.RowNumber.OutputAlias); err != nil {
			return nil, err
		}
		rn, err := operator.NewRowNumber(cur, transform.RowNumber.OutputAlias)
		if err != nil {
			return nil, err
		}
		cur = rn
	}

	for _, vi := range transform.ValueIdentifiers {
		if err := requireNoCollision(cur.Schema(), "value_identifiers", vi.OutputAlias); err != nil {
			return nil, err
		}
		dr, err := operator.NewDenseRank(cur, vi.FieldName, vi.OutputAlias)
		if err != nil {
			return nil, err
		}
		cur = dr
	}

	if len(transform.Binning) > 0 {
		if err := checkAliasesUnique("binning", binningAliases(transform.Binning)); err != nil {
			return nil, err
		}
		fields := passthroughFields(cur.Schema())
		for _, bt := range transform.Binning {
			if err := requireNoCollision(cur.Schema(), "binning", bt.OutputAlias); err != nil {
				return nil, err
			}
			ft, ok := cur.Schema().Lookup(bt.FieldName)
			if !ok {
				return nil, dferrors.NewPlanError(dferrors.UnknownField, "binning", bt.FieldName, "unknown field")
			}
			min, max, err := statsMinMax(stats, bt.StatsMinField, bt.StatsMaxField, ft.Type)
			if err != nil {
				return nil, err
			}
			meta, err := binning.DeriveMetadata(ft.Type, bt.BinCount, min, max)
			if err != nil {
				return nil, err
			}
			fields = append(fields, operator.ProjectField{
				Alias: bt.OutputAlias,
				Expr:  binning.FractionalExpr(bt.FieldName, meta),
			})
		}
		p, err := operator.NewProject(cur, fields)
		if err != nil {
			return nil, err
		}
		cur = p
	}

	if transform.GroupBy != nil {
		grouped, keyAlias, binCount, meta, err := compileGroupBy(transform.GroupBy, cur, stats)
		if err != nil {
			return nil, err
		}
		cur = grouped
		if keyAlias != "" {
			joined, err := binning.CompleteBins(cur, keyAlias, binCount)
			if err != nil {
				return nil, err
			}
			cur = joined
			gbk := binnedKey(transform.GroupBy)
			extra := binning.MetadataColumns(meta, keyAlias, gbk.Binning.OutputBinWidthAlias, gbk.Binning.OutputBinLbAlias, gbk.Binning.OutputBinUbAlias)
			fields := passthroughFields(cur.Schema())
			fields = append(fields, extra...)
			p, err := operator.NewProject(cur, fields)
			if err != nil {
				return nil, err
			}
			cur = p
		}
	}

	if transform.OrderBy != nil {
		constraints := make([]operator.SortConstraint, len(transform.OrderBy.Constraints))
		for i, c := range transform.OrderBy.Constraints {
			if _, ok := cur.Schema().Lookup(c.Field); !ok {
				return nil, dferrors.NewPlanError(dferrors.UnknownField, "order_by", c.Field, "unknown field")
			}
			constraints[i] = operator.SortConstraint{
				Expr:       dfexpr.Column{Name: c.Field},
				Ascending:  c.Ascending,
				NullsFirst: c.NullsFirst,
			}
		}
		cur = &operator.Sort{Input: cur, Constraints: constraints, Fetch: transform.OrderBy.Limit}
	}

	return cur, nil
}

// compileGroupBy builds the HashGroupBy for transform.GroupBy, returning
// the binned key's output alias/binCount/Metadata (empty alias when no
// key is binned) so Compile can chain bin completion and the metadata
// projection.
func compileGroupBy(gb *GroupByTransform, input operator.Operator, stats *frame.Frame) (operator.Operator, string, uint32, binning.Metadata, error) {
	inSchema := input.Schema()

	binnedCount := 0
	for _, k := range gb.Keys {
		if k.Binning != nil {
			binnedCount++
		}
	}
	if binnedCount > 1 {
		return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.MultipleBinningKeys, "group_by", "", "at most one grouping key may carry binning")
	}

	var aliases []string
	for _, k := range gb.Keys {
		aliases = append(aliases, k.OutputAlias)
	}
	for _, a := range gb.Aggregates {
		aliases = append(aliases, a.OutputAlias)
	}
	if err := checkAliasesUnique("group_by", aliases); err != nil {
		return nil, "", 0, binning.Metadata{}, err
	}

	keys := make([]operator.GroupKey, len(gb.Keys))
	var keyAlias string
	var binCount uint32
	var meta binning.Metadata
	for i, k := range gb.Keys {
		if k.Binning == nil {
			if _, ok := inSchema.Lookup(k.FieldName); !ok {
				return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.UnknownField, "group_by", k.FieldName, "unknown field")
			}
			keys[i] = operator.GroupKey{Expr: dfexpr.Column{Name: k.FieldName}, Alias: k.OutputAlias}
			continue
		}
		ft, ok := inSchema.Lookup(k.FieldName)
		if !ok {
			return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.UnknownField, "group_by", k.FieldName, "unknown field")
		}
		min, max, err := statsMinMax(stats, k.Binning.StatsMinField, k.Binning.StatsMaxField, ft.Type)
		if err != nil {
			return nil, "", 0, binning.Metadata{}, err
		}
		m, err := binning.DeriveMetadata(ft.Type, k.Binning.BinCount, min, max)
		if err != nil {
			return nil, "", 0, binning.Metadata{}, err
		}
		meta = m
		var fractional dfexpr.Expr
		if k.Binning.PreBinnedFieldName != nil {
			fe, err := binning.PreBinnedFastPath(*k.Binning.PreBinnedFieldName, inSchema)
			if err != nil {
				return nil, "", 0, binning.Metadata{}, err
			}
			fractional = fe
		} else {
			fractional = binning.FractionalExpr(k.FieldName, m)
		}
		keys[i] = operator.GroupKey{Expr: binning.IntegerKeyExpr(fractional, k.Binning.BinCount), Alias: k.OutputAlias}
		keyAlias = k.OutputAlias
		binCount = k.Binning.BinCount
		if binCount == 0 {
			binCount = 1
		}
	}

	aggs := make([]operator.Aggregate, len(gb.Aggregates))
	for i, a := range gb.Aggregates {
		fn, err := toOperatorAggFunc(a.AggregationFunction)
		if err != nil {
			return nil, "", 0, binning.Metadata{}, err
		}
		if a.AggregateDistinct && fn != operator.Count {
			return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.InvalidAggregateDistinct, "group_by", a.OutputAlias, "only Count supports aggregate_distinct")
		}
		field := ""
		if a.FieldName != nil {
			field = *a.FieldName
			if _, ok := inSchema.Lookup(field); !ok {
				return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.UnknownField, "group_by", field, "unknown aggregate field")
			}
		} else if fn != operator.CountStar {
			return nil, "", 0, binning.Metadata{}, dferrors.NewPlanError(dferrors.UnknownField, "group_by", a.OutputAlias, "aggregate requires field_name unless aggregation_function is CountStar")
		}
		aggs[i] = operator.Aggregate{Field: field, Func: fn, Distinct: a.AggregateDistinct, Alias: a.OutputAlias}
	}

	grouped, err := operator.NewHashGroupBy(input, keys, aggs)
	if err != nil {
		return nil, "", 0, binning.Metadata{}, err
	}
	return grouped, keyAlias, binCount, meta, nil
}

func binnedKey(gb *GroupByTransform) GroupByKey {
	for _, k := range gb.Keys {
		if k.Binning != nil {
			return k
		}
	}
	return GroupByKey{}
}

func toOperatorAggFunc(f AggregationFunction) (operator.AggregateFunction, error) {
	switch f {
	case Min:
		return operator.Min, nil
	case Max:
		return operator.Max, nil
	case Average:
		return operator.Avg, nil
	case Count:
		return operator.Count, nil
	case CountStar:
		return operator.CountStar, nil
	default:
		return 0, dferrors.NewPlanError(dferrors.UnknownField, "group_by", "", "unknown aggregation function")
	}
}

func buildFilterPredicate(f FilterTransform, input schema.Schema) (dfexpr.Expr, error) {
	ft, ok := input.Lookup(f.Field)
	if !ok {
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "filters", f.Field, "unknown field")
	}
	left := dfexpr.Expr(dfexpr.Column{Name: f.Field})
	var right dfexpr.Expr
	switch {
	case f.JoinField != nil:
		if _, ok := input.Lookup(*f.JoinField); !ok {
			return nil, dferrors.NewPlanError(dferrors.UnknownField, "filters", *f.JoinField, "unknown join field")
		}
		right = dfexpr.Column{Name: *f.JoinField}
	case f.Literal != nil:
		lit, err := literalAs(*f.Literal, ft.Type)
		if err != nil {
			return nil, err
		}
		right = dfexpr.Literal{Value: lit}
	default:
		return nil, dferrors.NewPlanError(dferrors.UnknownField, "filters", f.Field, "filter requires either literal or join_field")
	}
	op, err := toCompareOp(f.Operator)
	if err != nil {
		return nil, err
	}
	return dfexpr.Comparison{Op: op, Left: left, Right: right}, nil
}

func literalAs(lit FilterLiteral, t schema.Type) (scalar.Value, error) {
	var raw scalar.Value
	switch {
	case lit.Double != nil:
		raw = scalar.Float64Val(schema.Float(64), *lit.Double)
	case lit.String != nil:
		raw = scalar.Str(*lit.String)
	case lit.Int != nil:
		raw = scalar.Int64(schema.Int(64), *lit.Int)
	default:
		return scalar.Value{}, dferrors.NewPlanError(dferrors.TypeMismatch, "filters", "", "filter literal has no value set")
	}
	return raw.Cast(t)
}

func toCompareOp(op FilterOperator) (dfexpr.CompareOp, error) {
	switch op {
	case Eq:
		return dfexpr.Eq, nil
	case Ne:
		return dfexpr.Ne, nil
	case Lt:
		return dfexpr.Lt, nil
	case Le:
		return dfexpr.Le, nil
	case Gt:
		return dfexpr.Gt, nil
	case Ge:
		return dfexpr.Ge, nil
	default:
		return 0, dferrors.NewPlanError(dferrors.TypeMismatch, "filters", "", "unknown filter operator")
	}
}

// passthroughFields builds the identity ProjectField list for every
// column of s, the "forward every current column" half of the binning
// projection and the post-bin-completion metadata projection.
func passthroughFields(s schema.Schema) []operator.ProjectField {
	fields := make([]operator.ProjectField, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = operator.ProjectField{Alias: f.Name, Expr: dfexpr.Column{Name: f.Name}}
	}
	return fields
}

func requireNoCollision(s schema.Schema, stage, alias string) error {
	if _, ok := s.Lookup(alias); ok {
		return dferrors.NewPlanError(dferrors.DuplicateAlias, stage, alias, "alias collides with an existing column")
	}
	return nil
}

func checkAliasesUnique(stage string, aliases []string) error {
	seen := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		if _, ok := seen[a]; ok {
			return dferrors.NewPlanError(dferrors.DuplicateAlias, stage, a, "duplicate alias within this stage")
		}
		seen[a] = struct{}{}
	}
	return nil
}

func binningAliases(bs []BinningTransform) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.OutputAlias
	}
	return out
}

// statsMinMax reads the (min, max) pair for a field from the one-row
// statistics frame, requiring both columns to carry fieldType.
func statsMinMax(stats *frame.Frame, minField, maxField string, fieldType schema.Type) (min, max scalar.Value, err error) {
	if stats == nil {
		return scalar.Value{}, scalar.Value{}, dferrors.NewPlanError(dferrors.MissingStats, "binning", minField, "binning requires a statistics frame")
	}
	rec, err := stats.AsStats()
	if err != nil {
		return scalar.Value{}, scalar.Value{}, dferrors.NewPlanError(dferrors.MissingStats, "binning", minField, err.Error())
	}
	minIdx, ok := stats.Schema.IndexOf(minField)
	if !ok {
		return scalar.Value{}, scalar.Value{}, dferrors.NewPlanError(dferrors.UnknownField, "binning", minField, "unknown statistics field")
	}
	maxIdx, ok := stats.Schema.IndexOf(maxField)
	if !ok {
		return scalar.Value{}, scalar.Value{}, dferrors.NewPlanError(dferrors.UnknownField, "binning", maxField, "unknown statistics field")
	}
	if !stats.Schema.Fields[minIdx].Type.Equal(fieldType) || !stats.Schema.Fields[maxIdx].Type.Equal(fieldType) {
		return scalar.Value{}, scalar.Value{}, dferrors.NewPlanError(dferrors.TypeMismatch, "binning", minField, "statistics fields must carry the binned field's type")
	}
	minV, err := frame.ReadValue(rec.Column(minIdx), 0, stats.Schema.Fields[minIdx].Type)
	if err != nil {
		return scalar.Value{}, scalar.Value{}, err
	}
	maxV, err := frame.ReadValue(rec.Column(maxIdx), 0, stats.Schema.Fields[maxIdx].Type)
	if err != nil {
		return scalar.Value{}, scalar.Value{}, err
	}
	return minV, maxV, nil
}
