// Package plan implements the execution-plan operator model: a DAG of
// pull-based operators streaming fixed-width records from graph scans up
// to a results sink.
//
// Operators follow one contract (Init, Consume, Reset, Clone, Free) and
// live in the plan's arena, linked by integer indices. Consume is a
// synchronous generator: the root is pulled repeatedly, each operator
// pulls from its children as needed, and a nil record signals stream
// exhaustion. Mutating operators stage their changes and commit them at
// a single write-locked barrier, so reads within one query never observe
// that query's own writes.
//
// Example Usage:
//
//	ctx := plan.NewContext(g, nil)
//	p := plan.NewPlan(ctx)
//	scan := p.AddOp(plan.NewNodeByLabelScan(p, "n", "Person"))
//	project := p.AddOp(plan.NewProject(p, []plan.Projection{
//		{Alias: "id", Exp: plan.NewEntityID(p.MapAlias("n"))},
//	}), scan)
//	p.SetRoot(p.AddOp(plan.NewResults(p, []string{"id"}, []int{p.MapAlias("id")}), project))
//	rs, err := p.Execute()
package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
)

// SlotKind tags what a record slot currently holds.
type SlotKind uint8

const (
	SlotEmpty SlotKind = iota
	SlotScalar
	SlotNode
	SlotEdge
)

type slotVal struct {
	kind SlotKind
	v    datatypes.Value
	node *entities.Node
	edge *entities.Edge
}

// Record is the currency between operators: a fixed-width array of slots
// holding scalars, node references or edge references. Width is fixed
// per execution plan; slot indices come from the plan's alias mapping.
type Record struct {
	slots []slotVal
}

// NewRecord returns an empty record of the given width.
func NewRecord(width int) *Record {
	return &Record{slots: make([]slotVal, width)}
}

// Len returns the record width.
func (r *Record) Len() int { return len(r.slots) }

// Kind returns what slot i holds.
func (r *Record) Kind(i int) SlotKind { return r.slots[i].kind }

// SetScalar stores a scalar value in slot i.
func (r *Record) SetScalar(i int, v datatypes.Value) {
	r.slots[i] = slotVal{kind: SlotScalar, v: v}
}

// SetNode stores a node reference in slot i.
func (r *Record) SetNode(i int, n *entities.Node) {
	r.slots[i] = slotVal{kind: SlotNode, node: n}
}

// SetEdge stores an edge reference in slot i.
func (r *Record) SetEdge(i int, e *entities.Edge) {
	r.slots[i] = slotVal{kind: SlotEdge, edge: e}
}

// ClearSlot empties slot i.
func (r *Record) ClearSlot(i int) { r.slots[i] = slotVal{} }

// Scalar returns the value in slot i; a node or edge slot degrades to
// null (entities project through property access, not as raw scalars).
func (r *Record) Scalar(i int) datatypes.Value {
	if r.slots[i].kind == SlotScalar {
		return r.slots[i].v
	}
	return datatypes.NewNull()
}

// Node returns the node referenced by slot i, or nil.
func (r *Record) Node(i int) *entities.Node {
	if r.slots[i].kind == SlotNode {
		return r.slots[i].node
	}
	return nil
}

// Edge returns the edge referenced by slot i, or nil.
func (r *Record) Edge(i int) *entities.Edge {
	if r.slots[i].kind == SlotEdge {
		return r.slots[i].edge
	}
	return nil
}

// Attrs returns the attribute set of the entity in slot i, or nil for
// scalar and empty slots.
func (r *Record) Attrs(i int) *entities.AttributeSet {
	switch r.slots[i].kind {
	case SlotNode:
		return r.slots[i].node.Attrs
	case SlotEdge:
		return r.slots[i].edge.Attrs
	}
	return nil
}

// Clone deep-copies the record. Scalar payloads are cloned; entity
// references are shared, entities are owned by the graph.
func (r *Record) Clone() *Record {
	c := &Record{slots: make([]slotVal, len(r.slots))}
	for i, s := range r.slots {
		c.slots[i] = s
		if s.kind == SlotScalar {
			c.slots[i].v = s.v.Clone()
		}
	}
	return c
}

// Merge copies every populated slot of other into r.
func (r *Record) Merge(other *Record) {
	for i, s := range other.slots {
		if s.kind != SlotEmpty {
			r.slots[i] = s
		}
	}
}
