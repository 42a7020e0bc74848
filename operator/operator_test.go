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
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dataframe/dfexpr"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

func deviceTempSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "device", Type: schema.Utf8Type},
		schema.Field{Name: "temperature", Type: schema.Float(64)},
	)
	require.NoError(t, err)
	return s
}

func buildDeviceTempBatch(t *testing.T, mem memory.Allocator, s schema.Schema, devices []string, temps []float64) arrow.Record {
	t.Helper()
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	for i := range devices {
		require.NoError(t, rb.Column(0).Append(scalar.Str(devices[i])))
		require.NoError(t, rb.Column(1).Append(scalar.Float64Val(schema.Float(64), temps[i])))
	}
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	return rec
}

func scanOf(s schema.Schema, batches ...arrow.Record) *Scan {
	return &Scan{InputSchema: s, Partitions: [][]arrow.Record{batches}}
}

func scanMultiOf(s schema.Schema, partitions ...[]arrow.Record) *Scan {
	return &Scan{InputSchema: s, Partitions: partitions}
}

func TestScanYieldsPartitionsUnchanged(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "b"}, []float64{1, 2})
	defer rec.Release()

	sc := scanOf(s, rec)
	out, err := RunToFrame(context.Background(), mem, sc)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(2), out.NumRows())
}

func TestFilterDropsNonMatchingRows(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "b", "c"}, []float64{1, 20, 30})
	defer rec.Release()

	sc := scanOf(s, rec)
	f := &Filter{
		Input: sc,
		Predicate: dfexpr.Comparison{
			Op:    dfexpr.Gt,
			Left:  dfexpr.Column{Name: "temperature"},
			Right: dfexpr.Literal{Value: scalar.Float64Val(schema.Float(64), 10)},
		},
	}
	out, err := RunToFrame(context.Background(), mem, f)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(2), out.NumRows())
}

func TestSortOrdersAscendingAndFetches(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "b", "c"}, []float64{30, 10, 20})
	defer rec.Release()

	sc := scanOf(s, rec)
	fetch := 2
	srt := &Sort{
		Input:       sc,
		Constraints: []SortConstraint{{Expr: dfexpr.Column{Name: "temperature"}, Ascending: true}},
		Fetch:       &fetch,
	}
	out, err := RunToFrame(context.Background(), mem, srt)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(2), out.NumRows())

	b := out.Partitions[0][0]
	v0, err := frame.ReadValue(b.Column(1), 0, schema.Float(64))
	require.NoError(t, err)
	assert.Equal(t, 10.0, v0.AsFloat64())
}

func TestProjectEvaluatesExpressions(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a"}, []float64{5})
	defer rec.Release()

	sc := scanOf(s, rec)
	proj, err := NewProject(sc, []ProjectField{
		{Alias: "device", Expr: dfexpr.Column{Name: "device"}},
		{Alias: "doubled", Expr: dfexpr.Binary{Op: dfexpr.Mul, Left: dfexpr.Column{Name: "temperature"}, Right: dfexpr.Literal{Value: scalar.Float64Val(schema.Float(64), 2)}}},
	})
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, proj)
	require.NoError(t, err)
	defer out.Release()
	require.Equal(t, int64(1), out.NumRows())

	v, err := frame.ReadValue(out.Partitions[0][0].Column(1), 0, schema.Float(64))
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.AsFloat64())
}

func TestRowNumberAssignsSequentially(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "b"}, []float64{1, 2})
	defer rec.Release()

	sc := scanOf(s, rec)
	rn, err := NewRowNumber(sc, "row_num")
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, rn)
	require.NoError(t, err)
	defer out.Release()

	b := out.Partitions[0][0]
	v0, err := frame.ReadValue(b.Column(2), 0, schema.UInt(64))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v0.AsUint64())
	v1, err := frame.ReadValue(b.Column(2), 1, schema.UInt(64))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v1.AsUint64())
}

func TestDenseRankSharesRankAcrossTies(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "b", "c"}, []float64{5, 5, 10})
	defer rec.Release()

	sc := scanOf(s, rec)
	dr, err := NewDenseRank(sc, "temperature", "rank")
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, dr)
	require.NoError(t, err)
	defer out.Release()

	b := out.Partitions[0][0]
	require.Equal(t, int64(3), b.NumRows())
	r0, err := frame.ReadValue(b.Column(2), 0, schema.UInt(32))
	require.NoError(t, err)
	r1, err := frame.ReadValue(b.Column(2), 1, schema.UInt(32))
	require.NoError(t, err)
	r2, err := frame.ReadValue(b.Column(2), 2, schema.UInt(32))
	require.NoError(t, err)
	assert.Equal(t, r0.AsUint64(), r1.AsUint64())
	assert.NotEqual(t, r1.AsUint64(), r2.AsUint64())
}

func TestRowNumberPreservesPartitionCount(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec0 := buildDeviceTempBatch(t, mem, s, []string{"a", "b"}, []float64{1, 2})
	defer rec0.Release()
	rec1 := buildDeviceTempBatch(t, mem, s, []string{"c"}, []float64{3})
	defer rec1.Release()

	sc := scanMultiOf(s, []arrow.Record{rec0}, []arrow.Record{rec1})
	rn, err := NewRowNumber(sc, "row_num")
	require.NoError(t, err)

	iters, err := rn.Execute(context.Background(), mem)
	require.NoError(t, err)
	require.Len(t, iters, 2, "row-number is a window stage and must preserve input partition count")

	p0, err := frame.Collect(context.Background(), iters[0])
	require.NoError(t, err)
	defer func() {
		for _, b := range p0 {
			b.Release()
		}
	}()
	require.Len(t, p0, 1)
	require.Equal(t, int64(2), p0[0].NumRows())
	v0, err := frame.ReadValue(p0[0].Column(2), 0, schema.UInt(64))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v0.AsUint64())
	v1, err := frame.ReadValue(p0[0].Column(2), 1, schema.UInt(64))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), v1.AsUint64())

	p1, err := frame.Collect(context.Background(), iters[1])
	require.NoError(t, err)
	defer func() {
		for _, b := range p1 {
			b.Release()
		}
	}()
	require.Len(t, p1, 1)
	require.Equal(t, int64(1), p1[0].NumRows())
	v2, err := frame.ReadValue(p1[0].Column(2), 0, schema.UInt(64))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v2.AsUint64(), "numbering continues across the partition boundary")
}

func TestDenseRankPreservesPartitionCount(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec0 := buildDeviceTempBatch(t, mem, s, []string{"a", "b"}, []float64{10, 5})
	defer rec0.Release()
	rec1 := buildDeviceTempBatch(t, mem, s, []string{"c"}, []float64{5})
	defer rec1.Release()

	sc := scanMultiOf(s, []arrow.Record{rec0}, []arrow.Record{rec1})
	dr, err := NewDenseRank(sc, "temperature", "rank")
	require.NoError(t, err)

	iters, err := dr.Execute(context.Background(), mem)
	require.NoError(t, err)
	require.Len(t, iters, 2, "dense-rank is a window stage and must preserve input partition count")

	p0, err := frame.Collect(context.Background(), iters[0])
	require.NoError(t, err)
	defer func() {
		for _, b := range p0 {
			b.Release()
		}
	}()
	require.Len(t, p0, 1)
	require.Equal(t, int64(2), p0[0].NumRows())
	r0, err := frame.ReadValue(p0[0].Column(2), 0, schema.UInt(32))
	require.NoError(t, err)
	r1, err := frame.ReadValue(p0[0].Column(2), 1, schema.UInt(32))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r0.AsUint64(), "original row order is kept: temperature=10 ranks above the tied 5s")
	assert.Equal(t, uint64(1), r1.AsUint64())

	p1, err := frame.Collect(context.Background(), iters[1])
	require.NoError(t, err)
	defer func() {
		for _, b := range p1 {
			b.Release()
		}
	}()
	require.Len(t, p1, 1)
	require.Equal(t, int64(1), p1[0].NumRows())
	r2, err := frame.ReadValue(p1[0].Column(2), 0, schema.UInt(32))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r2.AsUint64(), "rank is shared with partition 0's tied 5, computed from the global sort")
}

func TestDenseRankUnknownFieldErrors(t *testing.T) {
	s := deviceTempSchema(t)
	sc := &Scan{InputSchema: s}
	_, err := NewDenseRank(sc, "missing", "rank")
	require.Error(t, err)
}

func TestHashGroupByAggregates(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := deviceTempSchema(t)
	rec := buildDeviceTempBatch(t, mem, s, []string{"a", "a", "b"}, []float64{10, 20, 30})
	defer rec.Release()

	sc := scanOf(s, rec)
	gb, err := NewHashGroupBy(sc,
		[]GroupKey{{Expr: dfexpr.Column{Name: "device"}, Alias: "device"}},
		[]Aggregate{
			{Field: "temperature", Func: Avg, Alias: "avg_temp"},
			{Func: CountStar, Alias: "count"},
		},
	)
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, gb)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(2), out.NumRows())
}

func TestBinCompletionJoinFillsGaps(t *testing.T) {
	mem := memory.NewGoAllocator()
	s, err := schema.New(
		schema.Field{Name: "bin", Type: schema.UInt(32)},
		schema.Field{Name: "count", Type: schema.UInt(64)},
	)
	require.NoError(t, err)

	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	require.NoError(t, rb.Column(0).Append(scalar.Uint64(schema.UInt(32), 0)))
	require.NoError(t, rb.Column(1).Append(scalar.Uint64(schema.UInt(64), 5)))
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	sc := scanOf(s, rec)
	join, err := NewBinCompletionJoin(sc, "bin", 3)
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, join)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, int64(3), out.NumRows())

	b := out.Partitions[0][0]
	v1, err := frame.ReadValue(b.Column(1), 1, schema.UInt(64))
	require.NoError(t, err)
	assert.True(t, v1.IsNull())
}

func TestBinCompletionJoinRejectsWrongKeyType(t *testing.T) {
	s := deviceTempSchema(t)
	sc := &Scan{InputSchema: s}
	_, err := NewBinCompletionJoin(sc, "device", 3)
	require.Error(t, err)
}

// TestDenseRankChainOverTwoStringFields reproduces spec.md §8 S3: two
// chained dense-rank stages over string fields v1 and v2, each appending
// its own rank column while leaving row order untouched for the next
// stage in the chain.
func TestDenseRankChainOverTwoStringFields(t *testing.T) {
	mem := memory.NewGoAllocator()
	s, err := schema.New(
		schema.Field{Name: "v1", Type: schema.Utf8Type},
		schema.Field{Name: "v2", Type: schema.Utf8Type},
	)
	require.NoError(t, err)

	v1 := []string{"a1", "a2", "a3", "a1", "a2", "a1", "a4", "a6", "a0"}
	v2 := []string{"b5", "b8", "b2", "b3", "b3", "b1", "b9", "b4", "b8"}
	rb, err := frame.NewRecordBuilder(mem, s)
	require.NoError(t, err)
	for i := range v1 {
		require.NoError(t, rb.Column(0).Append(scalar.Str(v1[i])))
		require.NoError(t, rb.Column(1).Append(scalar.Str(v2[i])))
	}
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	defer rec.Release()

	sc := scanOf(s, rec)
	dr1, err := NewDenseRank(sc, "v1", "v1_id")
	require.NoError(t, err)
	dr2, err := NewDenseRank(dr1, "v2", "v2_id")
	require.NoError(t, err)

	out, err := RunToFrame(context.Background(), mem, dr2)
	require.NoError(t, err)
	defer out.Release()

	b := out.Partitions[0][0]
	require.Equal(t, int64(9), b.NumRows())

	wantV1ID := []uint64{2, 3, 4, 2, 3, 2, 5, 6, 1}
	wantV2ID := []uint64{5, 6, 2, 3, 3, 1, 7, 4, 6}
	for i := 0; i < 9; i++ {
		v1id, err := frame.ReadValue(b.Column(2), i, schema.UInt(32))
		require.NoError(t, err)
		assert.Equal(t, wantV1ID[i], v1id.AsUint64(), "v1_id row %d", i)

		v2id, err := frame.ReadValue(b.Column(3), i, schema.UInt(32))
		require.NoError(t, err)
		assert.Equal(t, wantV2ID[i], v2id.AsUint64(), "v2_id row %d", i)
	}
}
