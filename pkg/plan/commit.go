package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
)

// PropertyValue is one evaluated attribute staged for commit.
type PropertyValue struct {
	Name  string
	Value datatypes.Value
}

type pendingCreateNode struct {
	rec    *Record
	slot   int
	labels []string
	props  []PropertyValue
}

type pendingCreateEdge struct {
	rec      *Record
	slot     int
	srcSlot  int
	destSlot int
	relation string
	props    []PropertyValue
}

type pendingUpdate struct {
	rec   *Record
	slot  int
	props []PropertyValue
}

type pendingDelete struct {
	id     entities.EntityID
	isNode bool
}

// pendingChanges is the per-query mutation buffer. Operators stage into
// it while the query reads; commit applies everything at one barrier so
// reads within the query never observe the query's own writes.
type pendingChanges struct {
	createNodes []pendingCreateNode
	createEdges []pendingCreateEdge
	updates     []pendingUpdate
	deletes     []pendingDelete
}

func (pc *pendingChanges) empty() bool {
	return len(pc.createNodes) == 0 && len(pc.createEdges) == 0 &&
		len(pc.updates) == 0 && len(pc.deletes) == 0
}

func (pc *pendingChanges) discard() {
	*pc = pendingChanges{}
}

// commitPending applies every staged mutation: it trades the read lock
// for the write lock, applies changes, flushes all matrices and restores
// the read lock. Nodes commit before edges so an edge can reference a
// node created in the same query.
func (p *Plan) commitPending() error {
	if p.pending.empty() {
		return nil
	}
	g := p.ctx.Graph
	g.ReleaseLock()
	g.AcquireWriteLock()
	defer func() {
		g.ReleaseLock()
		g.AcquireReadLock()
	}()

	schema := g.Schema()

	for i := range p.pending.createNodes {
		c := &p.pending.createNodes[i]
		labelIDs := make([]entities.LabelID, len(c.labels))
		for j, name := range c.labels {
			labelIDs[j] = g.AddLabel(name)
			p.stats.LabelsAdded++
		}
		attrs := entities.NewAttributeSet()
		for _, pv := range c.props {
			if pv.Value.IsNull() {
				continue
			}
			attrs.Set(schema.EnsureAttribute(pv.Name), pv.Value)
			p.stats.PropertiesSet++
		}
		n := g.CreateNode(labelIDs, attrs)
		c.rec.SetNode(c.slot, n)
		p.stats.NodesCreated++
	}

	for i := range p.pending.createEdges {
		c := &p.pending.createEdges[i]
		src := c.rec.Node(c.srcSlot)
		dest := c.rec.Node(c.destSlot)
		if src == nil || dest == nil {
			return NewRuntimeError("cannot create relationship, endpoint not bound to a node")
		}
		rel := g.AddRelation(c.relation)
		attrs := entities.NewAttributeSet()
		for _, pv := range c.props {
			if pv.Value.IsNull() {
				continue
			}
			attrs.Set(schema.EnsureAttribute(pv.Name), pv.Value)
			p.stats.PropertiesSet++
		}
		e, err := g.CreateEdge(src.ID, dest.ID, rel, attrs)
		if err != nil {
			return NewRuntimeError("create relationship: %s", err)
		}
		c.rec.SetEdge(c.slot, e)
		p.stats.RelationshipsCreated++
	}

	for i := range p.pending.updates {
		u := &p.pending.updates[i]
		attrs := u.rec.Attrs(u.slot)
		if attrs == nil {
			continue
		}
		for _, pv := range u.props {
			attrs.Set(schema.EnsureAttribute(pv.Name), pv.Value)
			p.stats.PropertiesSet++
		}
	}

	// edges first: node deletion detaches its remaining edges itself
	for _, d := range p.pending.deletes {
		if !d.isNode {
			if err := g.DeleteEdge(d.id); err == nil {
				p.stats.RelationshipsDeleted++
			}
		}
	}
	for _, d := range p.pending.deletes {
		if d.isNode {
			before := g.EdgeCount()
			if err := g.DeleteNode(d.id); err == nil {
				p.stats.NodesDeleted++
				p.stats.RelationshipsDeleted += before - g.EdgeCount()
			}
		}
	}

	g.ApplyAllPending(false)
	p.pending.discard()
	return nil
}
