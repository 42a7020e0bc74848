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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(
		Field{Name: "a", Type: Int(64)},
		Field{Name: "a", Type: Utf8Type},
	)
	require.Error(t, err)
}

func TestIndexOfAndLookup(t *testing.T) {
	s, err := New(
		Field{Name: "a", Type: Int(64)},
		Field{Name: "b", Type: Utf8Type},
	)
	require.NoError(t, err)

	i, ok := s.IndexOf("b")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	f, ok := s.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, Int(64), f.Type)

	_, ok = s.Lookup("missing")
	assert.False(t, ok)
}

func TestAppendRejectsCollision(t *testing.T) {
	s, err := New(Field{Name: "a", Type: Int(64)})
	require.NoError(t, err)

	_, err = s.Append(Field{Name: "a", Type: Utf8Type})
	require.Error(t, err)

	s2, err := s.Append(Field{Name: "b", Type: Utf8Type})
	require.NoError(t, err)
	assert.Len(t, s2.Fields, 2)
	assert.Len(t, s.Fields, 1, "Append must not mutate the receiver")
}

func TestTypeEqual(t *testing.T) {
	assert.True(t, DecimalType128(10, 2).Equal(DecimalType128(10, 2)))
	assert.False(t, DecimalType128(10, 2).Equal(DecimalType128(10, 3)))
	assert.True(t, TimestampType(Millisecond, "UTC").Equal(TimestampType(Millisecond, "UTC")))
	assert.False(t, TimestampType(Millisecond, "UTC").Equal(TimestampType(Second, "UTC")))
	assert.False(t, Int(32).Equal(Type{Logical: Int64}))
}

func TestArrowRoundTrip(t *testing.T) {
	s, err := New(
		Field{Name: "id", Type: Int(64)},
		Field{Name: "name", Type: Utf8Type, Nullable: true},
		Field{Name: "amount", Type: DecimalType128(10, 2)},
	)
	require.NoError(t, err)

	as := s.ToArrow()
	back, err := FromArrow(as)
	require.NoError(t, err)

	require.Len(t, back.Fields, 3)
	assert.Equal(t, "id", back.Fields[0].Name)
	assert.Equal(t, Int64, back.Fields[0].Type.Logical)
	assert.True(t, back.Fields[1].Nullable)
	assert.Equal(t, DecimalType128(10, 2), back.Fields[2].Type)
}

func TestLogicalTypePredicates(t *testing.T) {
	assert.True(t, Int64.IsInteger())
	assert.True(t, Int64.IsSignedInteger())
	assert.False(t, Int64.IsUnsignedInteger())
	assert.True(t, Uint32.IsUnsignedInteger())
	assert.True(t, Float64.IsFloat())
	assert.True(t, Decimal128.IsDecimal())
	assert.False(t, Utf8.IsDecimal())
}

func TestTypeForwardsLogicalPredicates(t *testing.T) {
	ty := Int(32)
	assert.True(t, ty.IsInteger())
	assert.True(t, ty.IsSignedInteger())
	assert.False(t, ty.IsFloat())
}
