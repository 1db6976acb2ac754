// Package index provides attribute indexing for FalkorDB graphs: an
// ordered range index over attribute values and a flat vector index,
// both populated asynchronously by a batched, lock-yielding populator
// that coexists with live readers and writers.
//
// An index moves through the states CREATED → POPULATING → ACTIVE →
// DROPPED. While POPULATING, a background task walks the label (or
// relation) matrix in fixed-size batches, releasing the graph read lock
// between batches so writers make progress; concurrent writers index
// their own entities directly whenever the state is POPULATING or
// ACTIVE. An entity indexed twice is acceptable, an entity missed is
// not.
//
// Example Usage:
//
//	idx := index.NewRangeIndex(g, "Person", index.IndexNode, []string{"age"})
//	idx.StartPopulation()
//	index.Populate(idx, g) // usually on its own goroutine
//	ids := idx.Search(datatypes.NewInt(30))
package index

import (
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// State is the index lifecycle state.
type State int32

const (
	StateCreated State = iota
	StatePopulating
	StateActive
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StatePopulating:
		return "POPULATING"
	case StateActive:
		return "ACTIVE"
	case StateDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// EntityType selects what an index covers.
type EntityType int

const (
	// IndexNode indexes nodes carrying a label.
	IndexNode EntityType = iota
	// IndexEdge indexes edges of a relationship type.
	IndexEdge
)

// EntityIndexer is the populator's view of an index: enough to walk the
// graph and feed entities in, plus the state machine that tells it when
// to stop. Both the range index and the vector index implement it.
type EntityIndexer interface {
	graph.EntityObserver

	State() State
	Enable()
	EntityType() EntityType
	LabelID() int
	IndexNodeEntity(n *entities.Node)
	IndexEdgeEntity(e *entities.Edge)
}

// indexEntry is one (key values, entity) pair in the range index tree.
type indexEntry struct {
	vals []datatypes.Value
	id   entities.EntityID
}

func entryLess(a, b indexEntry) bool {
	n := len(a.vals)
	if len(b.vals) < n {
		n = len(b.vals)
	}
	for i := 0; i < n; i++ {
		if c := datatypes.Compare(a.vals[i], b.vals[i]); c != 0 {
			return c < 0
		}
	}
	if len(a.vals) != len(b.vals) {
		return len(a.vals) < len(b.vals)
	}
	return a.id < b.id
}

// RangeIndex is an ordered index over one or more attributes of a label
// or relationship type. Keys order under the value model's documented
// total order, so cross-type range scans are well defined.
type RangeIndex struct {
	g       *graph.Graph
	label   string
	labelID int
	etype   EntityType
	fields  []string
	fieldID []entities.AttributeID

	state atomic.Int32

	mu   sync.RWMutex
	tree *btree.BTreeG[indexEntry]
}

// NewRangeIndex builds an index over the given attribute names of label
// (a node label or relationship-type name, per etype). The caller holds
// the graph write lock; attribute names register in the schema here so
// the write path can resolve them.
func NewRangeIndex(g *graph.Graph, label string, etype EntityType, fields []string) *RangeIndex {
	idx := &RangeIndex{
		g:      g,
		label:  label,
		etype:  etype,
		fields: fields,
		tree:   btree.NewBTreeG(entryLess),
	}
	schema := g.Schema()
	if etype == IndexNode {
		idx.labelID = schema.LabelID(label)
	} else {
		idx.labelID = schema.RelationID(label)
	}
	for _, f := range fields {
		idx.fieldID = append(idx.fieldID, schema.EnsureAttribute(f))
	}
	idx.state.Store(int32(StateCreated))
	return idx
}

// Label returns the indexed label or relationship-type name.
func (idx *RangeIndex) Label() string { return idx.label }

// Fields returns the indexed attribute names.
func (idx *RangeIndex) Fields() []string { return idx.fields }

// State returns the lifecycle state.
func (idx *RangeIndex) State() State { return State(idx.state.Load()) }

// StartPopulation transitions CREATED → POPULATING.
func (idx *RangeIndex) StartPopulation() {
	idx.state.CompareAndSwap(int32(StateCreated), int32(StatePopulating))
}

// Enable transitions to ACTIVE iff the index is still POPULATING.
func (idx *RangeIndex) Enable() {
	idx.state.CompareAndSwap(int32(StatePopulating), int32(StateActive))
}

// Drop retires the index; a running populator aborts at its next batch
// boundary.
func (idx *RangeIndex) Drop() {
	idx.state.Store(int32(StateDropped))
	idx.mu.Lock()
	idx.tree = btree.NewBTreeG(entryLess)
	idx.mu.Unlock()
}

// EntityType returns what the index covers.
func (idx *RangeIndex) EntityType() EntityType { return idx.etype }

// LabelID returns the matrix ID the populator walks.
func (idx *RangeIndex) LabelID() int { return idx.labelID }

// live reports whether writers should feed this index.
func (idx *RangeIndex) live() bool {
	s := idx.State()
	return s == StatePopulating || s == StateActive
}

func (idx *RangeIndex) keyOf(attrs *entities.AttributeSet) ([]datatypes.Value, bool) {
	vals := make([]datatypes.Value, len(idx.fieldID))
	any := false
	for i, id := range idx.fieldID {
		v, ok := attrs.Get(id)
		if !ok {
			v = datatypes.NewNull()
		} else {
			any = true
		}
		vals[i] = v
	}
	return vals, any
}

// IndexNodeEntity adds n when it carries the indexed label and at least
// one indexed attribute. Re-indexing an entity replaces its entry, so
// double indexing during population is harmless.
func (idx *RangeIndex) IndexNodeEntity(n *entities.Node) {
	if idx.etype != IndexNode || idx.labelID == graph.UnknownID {
		return
	}
	if !n.Labels.Has(entities.LabelID(idx.labelID)) {
		return
	}
	idx.add(n.Attrs, n.ID)
}

// IndexEdgeEntity adds e when it is of the indexed relationship type.
func (idx *RangeIndex) IndexEdgeEntity(e *entities.Edge) {
	if idx.etype != IndexEdge || idx.labelID == graph.UnknownID {
		return
	}
	if e.Relation != entities.RelationID(idx.labelID) {
		return
	}
	idx.add(e.Attrs, e.ID)
}

func (idx *RangeIndex) add(attrs *entities.AttributeSet, id entities.EntityID) {
	vals, any := idx.keyOf(attrs)
	if !any {
		return
	}
	idx.mu.Lock()
	idx.tree.Set(indexEntry{vals: vals, id: id})
	idx.mu.Unlock()
}

func (idx *RangeIndex) remove(attrs *entities.AttributeSet, id entities.EntityID) {
	vals, _ := idx.keyOf(attrs)
	idx.mu.Lock()
	idx.tree.Delete(indexEntry{vals: vals, id: id})
	idx.mu.Unlock()
}

// Count returns the number of indexed entries.
func (idx *RangeIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Contains reports whether entity id is indexed under the given key
// values.
func (idx *RangeIndex) Contains(id entities.EntityID, vals ...datatypes.Value) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.tree.Get(indexEntry{vals: vals, id: id})
	return ok
}

// Search returns the IDs of entities whose key equals vals, ascending.
func (idx *RangeIndex) Search(vals ...datatypes.Value) []entities.EntityID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []entities.EntityID
	idx.tree.Ascend(indexEntry{vals: vals}, func(e indexEntry) bool {
		for i, v := range vals {
			if i >= len(e.vals) || !datatypes.Equal(e.vals[i], v) {
				return false
			}
		}
		out = append(out, e.id)
		return true
	})
	return out
}

// SearchRange returns the IDs of entities whose first key field lies in
// [min, max] under the value total order.
func (idx *RangeIndex) SearchRange(min, max datatypes.Value) []entities.EntityID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []entities.EntityID
	idx.tree.Ascend(indexEntry{vals: []datatypes.Value{min}}, func(e indexEntry) bool {
		if len(e.vals) == 0 || datatypes.Compare(e.vals[0], max) > 0 {
			return false
		}
		out = append(out, e.id)
		return true
	})
	return out
}

//
// graph.EntityObserver: the write path feeds the index directly while it
// is POPULATING or ACTIVE.
//

// NodeCreated indexes a committed node.
func (idx *RangeIndex) NodeCreated(n *entities.Node) {
	if idx.live() {
		idx.IndexNodeEntity(n)
	}
}

// NodeDeleted unindexes a removed node.
func (idx *RangeIndex) NodeDeleted(n *entities.Node) {
	if idx.etype == IndexNode && idx.live() {
		idx.remove(n.Attrs, n.ID)
	}
}

// EdgeCreated indexes a committed edge.
func (idx *RangeIndex) EdgeCreated(e *entities.Edge) {
	if idx.live() {
		idx.IndexEdgeEntity(e)
	}
}

// EdgeDeleted unindexes a removed edge.
func (idx *RangeIndex) EdgeDeleted(e *entities.Edge) {
	if idx.etype == IndexEdge && idx.live() {
		idx.remove(e.Attrs, e.ID)
	}
}
