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
	"encoding/json"
	"math/big"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/dferrors"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

// Decoder turns opaque wire bytes into a DataFrameTransform or a
// statistics Frame. The engine never assumes a specific wire format
// beyond this interface, so callers can swap in a different codec
// without touching the compiler or operators.
type Decoder interface {
	Decode(data []byte) (*DataFrameTransform, error)
	DecodeStats(data []byte) (*frame.Frame, error)
}

// JSONDecoder is the one concrete Decoder this engine ships: plans and
// stats both travel as plain JSON. A binary codec (protobuf,
// flatbuffers) was considered and rejected — every candidate needs a
// schema-compiler step this exercise cannot run, so encoding/json is the
// only option that needs nothing beyond the struct tags already on
// DataFrameTransform.
type JSONDecoder struct {
	Mem memory.Allocator
}

// NewJSONDecoder builds a JSONDecoder using mem for stats frame
// construction.
func NewJSONDecoder(mem memory.Allocator) *JSONDecoder {
	return &JSONDecoder{Mem: mem}
}

func (d *JSONDecoder) Decode(data []byte) (*DataFrameTransform, error) {
	var t DataFrameTransform
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, dferrors.NewIngestError("invalid transform JSON: " + err.Error())
	}
	return &t, nil
}

// statsColumn is one named, typed value of the one-row statistics frame.
// Kind names a schema.LogicalType by its String() spelling; Value is the
// JSON-native representation of that value. Only the Int*, UInt*, Float*,
// Date32, Date64 and Utf8 kinds are accepted (see logicalTypeByName):
// decimal, time and timestamp statistics cannot be decoded.
type statsColumn struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Nullable bool   `json:"nullable"`
	Value    json.RawMessage `json:"value"`
}

type statsDoc struct {
	Columns []statsColumn `json:"columns"`
}

func (d *JSONDecoder) DecodeStats(data []byte) (*frame.Frame, error) {
	var doc statsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dferrors.NewIngestError("invalid stats JSON: " + err.Error())
	}
	fields := make([]schema.Field, len(doc.Columns))
	values := make([]scalar.Value, len(doc.Columns))
	for i, c := range doc.Columns {
		t, err := logicalTypeByName(c.Kind)
		if err != nil {
			return nil, err
		}
		fields[i] = schema.Field{Name: c.Name, Type: t, Nullable: c.Nullable}
		v, err := decodeStatsValue(t, c.Value)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	s, err := schema.New(fields...)
	if err != nil {
		return nil, dferrors.NewIngestError(err.Error())
	}
	rb, err := frame.NewRecordBuilder(d.Mem, s)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if err := rb.Column(i).Append(v); err != nil {
			rb.Release()
			return nil, err
		}
	}
	rec, err := rb.NewRecord()
	rb.Release()
	if err != nil {
		return nil, err
	}
	return frame.NewSinglePartition(s, []arrow.Record{rec}), nil
}

func decodeStatsValue(t schema.Type, raw json.RawMessage) (scalar.Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return scalar.Null(t), nil
	}
	switch {
	case t.Logical.IsFloat():
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return scalar.Value{}, dferrors.NewIngestError("invalid float stats value: " + err.Error())
		}
		return scalar.Float64Val(t, f), nil
	case t.Logical.IsUnsignedInteger():
		var u uint64
		if err := json.Unmarshal(raw, &u); err != nil {
			return scalar.Value{}, dferrors.NewIngestError("invalid uint stats value: " + err.Error())
		}
		return scalar.Uint64(t, u), nil
	case t.Logical.IsDecimal():
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return scalar.Value{}, dferrors.NewIngestError("invalid decimal stats value: " + err.Error())
		}
		mantissa, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return scalar.Value{}, dferrors.NewIngestError("invalid decimal mantissa: " + s)
		}
		return scalar.Decimal(t, mantissa), nil
	case t.Logical == schema.Utf8:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return scalar.Value{}, dferrors.NewIngestError("invalid string stats value: " + err.Error())
		}
		return scalar.Str(s), nil
	default:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return scalar.Value{}, dferrors.NewIngestError("invalid int stats value: " + err.Error())
		}
		return scalar.Int64(t, i), nil
	}
}

func logicalTypeByName(name string) (schema.Type, error) {
	switch name {
	case "Int8":
		return schema.Int(8), nil
	case "Int16":
		return schema.Int(16), nil
	case "Int32":
		return schema.Int(32), nil
	case "Int64":
		return schema.Int(64), nil
	case "UInt8":
		return schema.UInt(8), nil
	case "UInt16":
		return schema.UInt(16), nil
	case "UInt32":
		return schema.UInt(32), nil
	case "UInt64":
		return schema.UInt(64), nil
	case "Float16":
		return schema.Float(16), nil
	case "Float32":
		return schema.Float(32), nil
	case "Float64":
		return schema.Float(64), nil
	case "Date32":
		return schema.Date32Type, nil
	case "Date64":
		return schema.Date64Type, nil
	case "Utf8":
		return schema.Utf8Type, nil
	default:
		return schema.Type{}, dferrors.NewIngestError("unsupported stats column kind: " + name)
	}
}
