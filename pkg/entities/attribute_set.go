// Package entities implements the node and edge stores backing a FalkorDB
// graph: block-allocated pools with reusable IDs, tombstoned iteration and
// compact per-entity attribute sets.
//
// Entity IDs are dense uint64s handed out lowest-free-first, then
// monotonically. A deleted ID goes onto the pool free-list and is reused
// by a later append, which keeps the matrices tight; snapshots persist the
// free-list so a decoded graph reproduces the exact ID layout.
package entities

import (
	"math"
	"sort"

	"github.com/tosone/falkordb/pkg/datatypes"
)

// EntityID identifies a node or an edge within its store.
type EntityID = uint64

// InvalidID is the sentinel for "no entity".
const InvalidID EntityID = math.MaxUint64

// AttributeID identifies an attribute name within the graph schema.
type AttributeID uint16

// Attribute is one attribute-id/value pair.
type Attribute struct {
	ID    AttributeID
	Value datatypes.Value
}

// AttributeSet is a compact mapping from attribute id to value, kept
// sorted by id. Ordinal access (GetIdx) is stable, which the snapshot
// encoder relies on. Each set is owned by exactly one entity.
type AttributeSet struct {
	attrs []Attribute
}

// NewAttributeSet returns an empty attribute set.
func NewAttributeSet() *AttributeSet { return &AttributeSet{} }

// Count returns the number of attributes.
func (s *AttributeSet) Count() int {
	if s == nil {
		return 0
	}
	return len(s.attrs)
}

func (s *AttributeSet) find(id AttributeID) (int, bool) {
	i := sort.Search(len(s.attrs), func(k int) bool { return s.attrs[k].ID >= id })
	return i, i < len(s.attrs) && s.attrs[i].ID == id
}

// Get returns the value stored under id.
func (s *AttributeSet) Get(id AttributeID) (datatypes.Value, bool) {
	if s == nil {
		return datatypes.NewNull(), false
	}
	i, ok := s.find(id)
	if !ok {
		return datatypes.NewNull(), false
	}
	return s.attrs[i].Value, true
}

// GetIdx returns the i'th attribute in ascending-id order.
func (s *AttributeSet) GetIdx(i int) (AttributeID, datatypes.Value) {
	a := s.attrs[i]
	return a.ID, a.Value
}

// Set stores v under id, reporting whether a new attribute was created.
// Setting the null value removes the attribute.
func (s *AttributeSet) Set(id AttributeID, v datatypes.Value) bool {
	if v.IsNull() {
		s.Remove(id)
		return false
	}
	i, ok := s.find(id)
	if ok {
		s.attrs[i].Value = v
		return false
	}
	s.attrs = append(s.attrs, Attribute{})
	copy(s.attrs[i+1:], s.attrs[i:])
	s.attrs[i] = Attribute{ID: id, Value: v}
	return true
}

// Remove deletes the attribute stored under id.
func (s *AttributeSet) Remove(id AttributeID) bool {
	i, ok := s.find(id)
	if !ok {
		return false
	}
	s.attrs = append(s.attrs[:i], s.attrs[i+1:]...)
	return true
}

// Clone returns a deep copy of the set.
func (s *AttributeSet) Clone() *AttributeSet {
	if s == nil {
		return NewAttributeSet()
	}
	c := &AttributeSet{attrs: make([]Attribute, len(s.attrs))}
	for i, a := range s.attrs {
		c.attrs[i] = Attribute{ID: a.ID, Value: a.Value.Clone()}
	}
	return c
}
