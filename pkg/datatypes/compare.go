package datatypes

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// typeRank positions each type inside the cross-type total order used by
// Compare and by range-index key encoding:
//
//	Null < Boolean < numeric (Integer and Float, by value) < String
//	     < Point < List < Map < Vectorf32
//
// Integers and floats share one rank and compare numerically, so 1 and 1.0
// are equal under both Compare and Equal.
func typeRank(t Type) int {
	switch t {
	case TypeNull:
		return 0
	case TypeBool:
		return 1
	case TypeInt64, TypeDouble:
		return 2
	case TypeString:
		return 3
	case TypePoint:
		return 4
	case TypeArray:
		return 5
	case TypeMap:
		return 6
	case TypeVectorF32:
		return 7
	default:
		return 8
	}
}

// Compare returns -1, 0 or 1 ordering a before, equal to or after b in the
// documented total order.
func Compare(a, b Value) int {
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		return cmpInt(int64(ra), int64(rb))
	}

	switch {
	case a.kind == TypeNull:
		return 0
	case a.kind == TypeBool:
		return cmpInt(a.i, b.i)
	case a.IsNumeric():
		return cmpNumeric(a, b)
	case a.kind == TypeString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		}
		return 0
	case a.kind == TypePoint:
		if c := cmpFloat(a.p.Latitude, b.p.Latitude); c != 0 {
			return c
		}
		return cmpFloat(a.p.Longitude, b.p.Longitude)
	case a.kind == TypeArray:
		return cmpArrays(a.arr, b.arr)
	case a.kind == TypeMap:
		return cmpMaps(a.m, b.m)
	case a.kind == TypeVectorF32:
		return cmpVectors(a.vec, b.vec)
	}
	return 0
}

// Equal reports whether a and b are equal under the same semantics as
// Compare returning zero.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpNumeric(a, b Value) int {
	if a.kind == TypeInt64 && b.kind == TypeInt64 {
		return cmpInt(a.i, b.i)
	}
	return cmpFloat(a.Numeric(), b.Numeric())
}

func cmpArrays(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(a)), int64(len(b)))
}

func cmpMaps(a, b *Map) int {
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		ea, eb := a.EntryAt(i), b.EntryAt(i)
		switch {
		case ea.Key < eb.Key:
			return -1
		case ea.Key > eb.Key:
			return 1
		}
		if c := Compare(ea.Value, eb.Value); c != 0 {
			return c
		}
	}
	return cmpInt(int64(a.Len()), int64(b.Len()))
}

func cmpVectors(a, b []float32) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := cmpFloat(float64(a[i]), float64(b[i])); c != 0 {
			return c
		}
	}
	return cmpInt(int64(len(a)), int64(len(b)))
}

// Hash returns a 64-bit hash of v, consistent with Equal: equal values hash
// identically, including integers and floats holding the same number.
func Hash(v Value) uint64 {
	d := xxhash.New()
	hashInto(d, v)
	return d.Sum64()
}

func hashInto(d *xxhash.Digest, v Value) {
	var tag [1]byte
	var buf [8]byte

	tag[0] = byte(typeRank(v.kind))
	_, _ = d.Write(tag[:])

	switch v.kind {
	case TypeNull:
	case TypeBool:
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		_, _ = d.Write(buf[:])
	case TypeInt64, TypeDouble:
		// canonicalize to float64 bits so 1 and 1.0 collide
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Numeric()))
		_, _ = d.Write(buf[:])
	case TypeString:
		_, _ = d.WriteString(v.s)
	case TypePoint:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.p.Latitude))
		_, _ = d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.p.Longitude))
		_, _ = d.Write(buf[:])
	case TypeArray:
		for _, e := range v.arr {
			hashInto(d, e)
		}
	case TypeMap:
		for i := 0; i < v.m.Len(); i++ {
			e := v.m.EntryAt(i)
			_, _ = d.WriteString(e.Key)
			hashInto(d, e.Value)
		}
	case TypeVectorF32:
		for _, e := range v.vec {
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(e))
			_, _ = d.Write(buf[:4])
		}
	}
}
