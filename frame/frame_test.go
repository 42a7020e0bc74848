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

package frame

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Field{Name: "id", Type: schema.Int(64)},
		schema.Field{Name: "name", Type: schema.Utf8Type, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func buildRecord(t *testing.T, mem memory.Allocator, s schema.Schema, ids []int64, names []string) arrow.Record {
	t.Helper()
	rb, err := NewRecordBuilder(mem, s)
	require.NoError(t, err)
	for i := range ids {
		require.NoError(t, rb.Column(0).Append(scalar.Int64(schema.Int(64), ids[i])))
		if names[i] == "" {
			rb.Column(1).AppendNull()
		} else {
			require.NoError(t, rb.Column(1).Append(scalar.Str(names[i])))
		}
	}
	rec, err := rb.NewRecord()
	require.NoError(t, err)
	rb.Release()
	return rec
}

func TestRecordBuilderRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testSchema(t)
	rec := buildRecord(t, mem, s, []int64{1, 2, 3}, []string{"a", "", "c"})
	defer rec.Release()

	assert.Equal(t, int64(3), rec.NumRows())

	v, err := ReadValue(rec.Column(1), 1, schema.Utf8Type)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = ReadValue(rec.Column(0), 2, schema.Int(64))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.AsInt64())
}

func TestFrameNumRows(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testSchema(t)
	rec1 := buildRecord(t, mem, s, []int64{1, 2}, []string{"a", "b"})
	rec2 := buildRecord(t, mem, s, []int64{3}, []string{"c"})
	defer rec1.Release()
	defer rec2.Release()

	f := New(s, [][]arrow.Record{{rec1}, {rec2}})
	assert.Equal(t, int64(3), f.NumRows())
}

func TestFrameAsStatsValidatesShape(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testSchema(t)
	rec := buildRecord(t, mem, s, []int64{1}, []string{"a"})
	defer rec.Release()

	single := NewSinglePartition(s, []arrow.Record{rec})
	_, err := single.AsStats()
	require.NoError(t, err)

	rec2 := buildRecord(t, mem, s, []int64{1, 2}, []string{"a", "b"})
	defer rec2.Release()
	tooManyRows := NewSinglePartition(s, []arrow.Record{rec2})
	_, err = tooManyRows.AsStats()
	require.Error(t, err)

	rec3 := buildRecord(t, mem, s, []int64{1}, []string{"a"})
	defer rec3.Release()
	tooManyBatches := NewSinglePartition(s, []arrow.Record{rec, rec3})
	_, err = tooManyBatches.AsStats()
	require.Error(t, err)
}

func TestSliceIterAndCollect(t *testing.T) {
	mem := memory.NewGoAllocator()
	s := testSchema(t)
	rec1 := buildRecord(t, mem, s, []int64{1}, []string{"a"})
	rec2 := buildRecord(t, mem, s, []int64{2}, []string{"b"})
	defer rec1.Release()
	defer rec2.Release()

	it := NewSliceIter([]arrow.Record{rec1, rec2})
	out, err := Collect(context.Background(), it)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestSliceIterRespectsCancellation(t *testing.T) {
	it := NewSliceIter(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := it.Next(ctx)
	require.Error(t, err)
}
