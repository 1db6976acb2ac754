package serializer

import (
	"github.com/pkg/errors"

	"github.com/tosone/falkordb/pkg/datatypes"
)

// Wire type tags. These are part of the snapshot format and never
// renumbered.
const (
	wireNull uint64 = iota + 1
	wireBool
	wireInt64
	wireDouble
	wireString
	wirePoint
	wireArray
	wireMap
	wireVectorF32
)

func writeValue(w *Writer, v datatypes.Value) error {
	switch v.Kind() {
	case datatypes.TypeNull:
		return w.WriteUnsigned(wireNull)
	case datatypes.TypeBool:
		if err := w.WriteUnsigned(wireBool); err != nil {
			return err
		}
		var b int64
		if v.Bool() {
			b = 1
		}
		return w.WriteSigned(b)
	case datatypes.TypeInt64:
		if err := w.WriteUnsigned(wireInt64); err != nil {
			return err
		}
		return w.WriteSigned(v.Int())
	case datatypes.TypeDouble:
		if err := w.WriteUnsigned(wireDouble); err != nil {
			return err
		}
		return w.WriteDouble(v.Double())
	case datatypes.TypeString:
		if err := w.WriteUnsigned(wireString); err != nil {
			return err
		}
		return w.WriteString(v.Str())
	case datatypes.TypePoint:
		if err := w.WriteUnsigned(wirePoint); err != nil {
			return err
		}
		p := v.Point()
		if err := w.WriteDouble(p.Latitude); err != nil {
			return err
		}
		return w.WriteDouble(p.Longitude)
	case datatypes.TypeArray:
		if err := w.WriteUnsigned(wireArray); err != nil {
			return err
		}
		arr := v.Array()
		if err := w.WriteUnsigned(uint64(len(arr))); err != nil {
			return err
		}
		for _, e := range arr {
			if err := writeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	case datatypes.TypeMap:
		if err := w.WriteUnsigned(wireMap); err != nil {
			return err
		}
		m := v.Map()
		if err := w.WriteUnsigned(uint64(m.Len())); err != nil {
			return err
		}
		for i := 0; i < m.Len(); i++ {
			entry := m.EntryAt(i)
			if err := writeValue(w, datatypes.NewString(entry.Key)); err != nil {
				return err
			}
			if err := writeValue(w, entry.Value); err != nil {
				return err
			}
		}
		return nil
	case datatypes.TypeVectorF32:
		if err := w.WriteUnsigned(wireVectorF32); err != nil {
			return err
		}
		vec := v.VectorF32()
		if err := w.WriteUnsigned(uint64(len(vec))); err != nil {
			return err
		}
		for _, f := range vec {
			if err := w.WriteFloat(f); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("serializer: cannot encode value of type %s", v.Kind())
	}
}

func readValue(r *Reader) (datatypes.Value, error) {
	tag, err := r.ReadUnsigned()
	if err != nil {
		return datatypes.NewNull(), err
	}
	switch tag {
	case wireNull:
		return datatypes.NewNull(), nil
	case wireBool:
		b, err := r.ReadSigned()
		if err != nil {
			return datatypes.NewNull(), err
		}
		return datatypes.NewBool(b != 0), nil
	case wireInt64:
		i, err := r.ReadSigned()
		if err != nil {
			return datatypes.NewNull(), err
		}
		return datatypes.NewInt(i), nil
	case wireDouble:
		f, err := r.ReadDouble()
		if err != nil {
			return datatypes.NewNull(), err
		}
		return datatypes.NewDouble(f), nil
	case wireString:
		s, err := r.ReadString()
		if err != nil {
			return datatypes.NewNull(), err
		}
		return datatypes.NewString(s), nil
	case wirePoint:
		lat, err := r.ReadDouble()
		if err != nil {
			return datatypes.NewNull(), err
		}
		lon, err := r.ReadDouble()
		if err != nil {
			return datatypes.NewNull(), err
		}
		return datatypes.NewPoint(lat, lon), nil
	case wireArray:
		n, err := r.ReadUnsigned()
		if err != nil {
			return datatypes.NewNull(), err
		}
		elems := make([]datatypes.Value, n)
		for i := uint64(0); i < n; i++ {
			if elems[i], err = readValue(r); err != nil {
				return datatypes.NewNull(), err
			}
		}
		return datatypes.NewArray(elems...), nil
	case wireMap:
		n, err := r.ReadUnsigned()
		if err != nil {
			return datatypes.NewNull(), err
		}
		m := &datatypes.Map{}
		for i := uint64(0); i < n; i++ {
			key, err := readValue(r)
			if err != nil {
				return datatypes.NewNull(), err
			}
			val, err := readValue(r)
			if err != nil {
				return datatypes.NewNull(), err
			}
			m.Set(key.Str(), val)
		}
		return datatypes.NewMap(m), nil
	case wireVectorF32:
		n, err := r.ReadUnsigned()
		if err != nil {
			return datatypes.NewNull(), err
		}
		vec := make([]float32, n)
		for i := uint64(0); i < n; i++ {
			if vec[i], err = r.ReadFloat(); err != nil {
				return datatypes.NewNull(), err
			}
		}
		return datatypes.NewVectorF32(vec), nil
	default:
		return datatypes.NewNull(), errors.Errorf("serializer: unknown value tag %d", tag)
	}
}
