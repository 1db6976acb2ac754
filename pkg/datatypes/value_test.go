package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKinds(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		kind Type
	}{
		{"null", NewNull(), TypeNull},
		{"bool", NewBool(true), TypeBool},
		{"int", NewInt(42), TypeInt64},
		{"double", NewDouble(3.14), TypeDouble},
		{"string", NewString("hi"), TypeString},
		{"point", NewPoint(32.07, 34.78), TypePoint},
		{"array", NewArray(NewInt(1)), TypeArray},
		{"map", NewMap(nil), TypeMap},
		{"vector", NewVectorF32([]float32{1, 2}), TypeVectorF32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.v.Kind())
		})
	}

	var zero Value
	assert.True(t, zero.IsNull(), "zero value must be null")
}

func TestCompareTotalOrder(t *testing.T) {
	// ascending by the documented cross-type order
	ordered := []Value{
		NewNull(),
		NewBool(false),
		NewBool(true),
		NewInt(-7),
		NewDouble(-1.5),
		NewInt(1),
		NewDouble(2.5),
		NewInt(3),
		NewString("abc"),
		NewString("abd"),
		NewPoint(1, 1),
		NewPoint(1, 2),
		NewArray(NewInt(1)),
		NewArray(NewInt(1), NewInt(2)),
		NewMap(nil),
		NewVectorF32([]float32{1}),
	}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			got := Compare(ordered[i], ordered[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%s < %s", ordered[i], ordered[j])
			case i > j:
				assert.Equal(t, 1, got, "%s > %s", ordered[i], ordered[j])
			default:
				assert.Equal(t, 0, got)
			}
		}
	}
}

func TestNumericCrossKindEquality(t *testing.T) {
	a, b := NewInt(1), NewDouble(1.0)
	assert.True(t, Equal(a, b))
	assert.Equal(t, 0, Compare(a, b))
	assert.Equal(t, Hash(a), Hash(b), "equal numerics must hash identically")
}

func TestHashDistinguishesVariants(t *testing.T) {
	assert.NotEqual(t, Hash(NewString("1")), Hash(NewInt(1)))
	assert.NotEqual(t, Hash(NewArray()), Hash(NewMap(nil)))
	assert.NotEqual(t, Hash(NewBool(true)), Hash(NewBool(false)))
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewArray(NewInt(1), NewInt(2))
	m := NewMapFromPairs(MapEntry{Key: "xs", Value: inner})
	v := NewMap(m)

	c := v.Clone()
	require.True(t, Equal(v, c))

	// mutating the clone must not leak into the original
	c.Map().Set("xs", NewInt(9))
	got, ok := v.Map().Get("xs")
	require.True(t, ok)
	assert.Equal(t, TypeArray, got.Kind())
}

func TestMapOrderedSemantics(t *testing.T) {
	m := &Map{}
	m.Set("b", NewInt(2))
	m.Set("a", NewInt(1))
	m.Set("b", NewInt(3)) // replace keeps position

	require.Equal(t, 2, m.Len())
	assert.Equal(t, "b", m.EntryAt(0).Key)
	assert.Equal(t, int64(3), m.EntryAt(0).Value.Int())
	assert.Equal(t, "a", m.EntryAt(1).Key)

	require.True(t, m.Remove("b"))
	require.False(t, m.Remove("b"))
	assert.Equal(t, 1, m.Len())
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "null", NewNull().String())
	assert.Equal(t, "3", NewInt(3).String())
	assert.Equal(t, "2.0", NewDouble(2).String())
	assert.Equal(t, "[1, two]", NewArray(NewInt(1), NewString("two")).String())
}
