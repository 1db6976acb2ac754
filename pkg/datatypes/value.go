// Package datatypes implements the scalar value model for FalkorDB graphs.
//
// Every property stored on a node or edge, every constant in a query and
// every record slot that is not a graph entity is a Value: a tagged union
// over the primitive types (null, bool, int64, double, string), geographic
// points, ordered arrays, ordered string-keyed maps and fixed-dimension
// float32 vectors.
//
// Values are plain Go structs with value semantics for the primitives;
// container variants (string, array, map, vector) share backing storage
// until Clone is called. Record fan-out in the execution plan always
// deep-clones, so aliasing never crosses an operator boundary.
//
// Example Usage:
//
//	v := datatypes.NewArray(
//		datatypes.NewInt(42),
//		datatypes.NewString("hello"),
//	)
//	other := v.Clone()
//	datatypes.Equal(v, other) // true
//
// Cross-type comparison follows a documented total order (see Compare),
// which is also the order used by range-index key encoding.
package datatypes

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type discriminates the variants of a Value.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeInt64
	TypeDouble
	TypeString
	TypePoint
	TypeArray
	TypeMap
	TypeVectorF32
)

// String returns the type name as used in error messages.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "Null"
	case TypeBool:
		return "Boolean"
	case TypeInt64:
		return "Integer"
	case TypeDouble:
		return "Float"
	case TypeString:
		return "String"
	case TypePoint:
		return "Point"
	case TypeArray:
		return "List"
	case TypeMap:
		return "Map"
	case TypeVectorF32:
		return "Vectorf32"
	default:
		return "Unknown"
	}
}

// Point is a geographic coordinate, latitude/longitude in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Value is a tagged union over the supported scalar types.
//
// The zero Value is null. Access to a variant field is only valid when
// Kind reports the matching type; accessors panic otherwise, which is
// treated as a fatal invariant violation by callers.
type Value struct {
	kind Type
	i    int64
	f    float64
	s    string
	p    Point
	arr  []Value
	m    *Map
	vec  []float32
}

// NewNull returns the null value.
func NewNull() Value { return Value{kind: TypeNull} }

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	v := Value{kind: TypeBool}
	if b {
		v.i = 1
	}
	return v
}

// NewInt returns a 64-bit integer value.
func NewInt(i int64) Value { return Value{kind: TypeInt64, i: i} }

// NewDouble returns a double-precision float value.
func NewDouble(f float64) Value { return Value{kind: TypeDouble, f: f} }

// NewString returns a string value.
func NewString(s string) Value { return Value{kind: TypeString, s: s} }

// NewPoint returns a geographic point value.
func NewPoint(lat, lon float64) Value {
	return Value{kind: TypePoint, p: Point{Latitude: lat, Longitude: lon}}
}

// NewArray returns an ordered list value holding the given elements.
func NewArray(elems ...Value) Value { return Value{kind: TypeArray, arr: elems} }

// NewMap returns a map value backed by m. A nil m yields an empty map.
func NewMap(m *Map) Value {
	if m == nil {
		m = &Map{}
	}
	return Value{kind: TypeMap, m: m}
}

// NewVectorF32 returns a float32 vector value.
func NewVectorF32(elems []float32) Value { return Value{kind: TypeVectorF32, vec: elems} }

// Kind reports the variant held by v.
func (v Value) Kind() Type { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == TypeNull }

func (v Value) mustBe(t Type) {
	if v.kind != t {
		panic(fmt.Sprintf("datatypes: %s access on %s value", t, v.kind))
	}
}

// Bool returns the boolean payload.
func (v Value) Bool() bool { v.mustBe(TypeBool); return v.i != 0 }

// Int returns the int64 payload.
func (v Value) Int() int64 { v.mustBe(TypeInt64); return v.i }

// Double returns the float64 payload.
func (v Value) Double() float64 { v.mustBe(TypeDouble); return v.f }

// Str returns the string payload.
func (v Value) Str() string { v.mustBe(TypeString); return v.s }

// Point returns the point payload.
func (v Value) Point() Point { v.mustBe(TypePoint); return v.p }

// Array returns the list payload. The slice is shared, not copied.
func (v Value) Array() []Value { v.mustBe(TypeArray); return v.arr }

// Map returns the map payload.
func (v Value) Map() *Map { v.mustBe(TypeMap); return v.m }

// VectorF32 returns the vector payload. The slice is shared, not copied.
func (v Value) VectorF32() []float32 { v.mustBe(TypeVectorF32); return v.vec }

// IsNumeric reports whether v is an integer or a float.
func (v Value) IsNumeric() bool { return v.kind == TypeInt64 || v.kind == TypeDouble }

// Numeric returns the value as float64; valid only for numeric kinds.
func (v Value) Numeric() float64 {
	switch v.kind {
	case TypeInt64:
		return float64(v.i)
	case TypeDouble:
		return v.f
	}
	panic(fmt.Sprintf("datatypes: numeric access on %s value", v.kind))
}

// Clone returns a deep copy of v; container payloads no longer share
// storage with the original.
func (v Value) Clone() Value {
	switch v.kind {
	case TypeArray:
		elems := make([]Value, len(v.arr))
		for i, e := range v.arr {
			elems[i] = e.Clone()
		}
		return Value{kind: TypeArray, arr: elems}
	case TypeMap:
		return Value{kind: TypeMap, m: v.m.Clone()}
	case TypeVectorF32:
		vec := make([]float32, len(v.vec))
		copy(vec, v.vec)
		return Value{kind: TypeVectorF32, vec: vec}
	default:
		// primitives and strings are immutable, shallow copy is a deep copy
		return v
	}
}

// String renders v for result formatting and debug output.
func (v Value) String() string {
	switch v.kind {
	case TypeNull:
		return "null"
	case TypeBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case TypeInt64:
		return strconv.FormatInt(v.i, 10)
	case TypeDouble:
		if math.Floor(v.f) == v.f && !math.IsInf(v.f, 0) {
			return strconv.FormatFloat(v.f, 'f', 1, 64)
		}
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	case TypePoint:
		return fmt.Sprintf("point({latitude: %g, longitude: %g})", v.p.Latitude, v.p.Longitude)
	case TypeArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteByte(']')
		return sb.String()
	case TypeMap:
		return v.m.String()
	case TypeVectorF32:
		var sb strings.Builder
		sb.WriteString("vecf32([")
		for i, e := range v.vec {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(float64(e), 'g', -1, 32))
		}
		sb.WriteString("])")
		return sb.String()
	default:
		return "?"
	}
}
