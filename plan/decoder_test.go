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
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

func TestJSONDecoderDecodesTransform(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	data := []byte(`{"row_number":{"output_alias":"row_num"}}`)
	tfm, err := d.Decode(data)
	require.NoError(t, err)
	require.NotNil(t, tfm.RowNumber)
	assert.Equal(t, "row_num", tfm.RowNumber.OutputAlias)
}

func TestJSONDecoderRejectsMalformedTransform(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	_, err := d.Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestJSONDecoderDecodesStats(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	data := []byte(`{"columns":[
		{"name":"min_temperature","kind":"Float64","value":0},
		{"name":"max_temperature","kind":"Float64","value":100}
	]}`)
	f, err := d.DecodeStats(data)
	require.NoError(t, err)
	defer f.Release()

	rec, err := f.AsStats()
	require.NoError(t, err)
	v, err := frame.ReadValue(rec.Column(1), 0, schema.Float(64))
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.AsFloat64())
}

func TestJSONDecoderDecodesNullStatsValue(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	data := []byte(`{"columns":[{"name":"x","kind":"Float64","nullable":true,"value":null}]}`)
	f, err := d.DecodeStats(data)
	require.NoError(t, err)
	defer f.Release()

	rec, err := f.AsStats()
	require.NoError(t, err)
	v, err := frame.ReadValue(rec.Column(0), 0, schema.Float(64))
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestJSONDecoderDecodesIntStatsValue(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	data := []byte(`{"columns":[{"name":"x","kind":"Int64","value":42}]}`)
	f, err := d.DecodeStats(data)
	require.NoError(t, err)
	defer f.Release()

	rec, err := f.AsStats()
	require.NoError(t, err)
	v, err := frame.ReadValue(rec.Column(0), 0, schema.Int(64))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.AsInt64())
}

func TestJSONDecoderRejectsUnknownKind(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	data := []byte(`{"columns":[{"name":"x","kind":"Bogus","value":1}]}`)
	_, err := d.DecodeStats(data)
	require.Error(t, err)
}

func TestJSONDecoderRejectsMalformedStats(t *testing.T) {
	d := NewJSONDecoder(memory.NewGoAllocator())
	_, err := d.DecodeStats([]byte(`not json`))
	require.Error(t, err)
}
