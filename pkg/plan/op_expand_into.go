package plan

import (
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// ExpandInto checks for an edge between two already-bound nodes. Without
// an edge alias it passes each child record through at most once; with
// one it emits a record per connecting edge.
type ExpandInto struct {
	BaseOp

	relation  string
	dir       Direction
	srcAlias  string
	destAlias string
	edgeAlias string

	srcSlot  int
	destSlot int
	edgeSlot int

	childRecord  *Record
	pendingEdges []entities.EntityID
}

// NewExpandInto builds the expand-into check.
func NewExpandInto(p *Plan, srcAlias, destAlias, edgeAlias, relation string, dir Direction) *ExpandInto {
	op := &ExpandInto{
		BaseOp:    NewBaseOp(p, OpKindExpandInto, "Expand Into"),
		relation:  relation,
		dir:       dir,
		srcAlias:  srcAlias,
		destAlias: destAlias,
		edgeAlias: edgeAlias,
		edgeSlot:  -1,
	}
	op.srcSlot = p.MapAlias(srcAlias)
	op.destSlot = p.MapAlias(destAlias)
	if edgeAlias != "" {
		op.edgeSlot = op.markModifies(p.MapAlias(edgeAlias))
	}
	return op
}

// Init is a no-op.
func (op *ExpandInto) Init() error { return nil }

func (op *ExpandInto) connecting(src, dest entities.EntityID) []entities.EntityID {
	g := op.plan.Ctx().Graph
	from, to := src, dest
	if op.dir == DirIncoming {
		from, to = dest, src
	}
	var out []entities.EntityID
	if op.relation == "" {
		for r := 0; r < g.RelationCount(); r++ {
			out = append(out, g.RelationEdges(entities.RelationID(r), from, to)...)
		}
		return out
	}
	if id := g.Schema().RelationID(op.relation); id != graph.UnknownID {
		out = g.RelationEdges(entities.RelationID(id), from, to)
	}
	return out
}

// Consume yields child records whose endpoints are connected.
func (op *ExpandInto) Consume() (*Record, error) {
	g := op.plan.Ctx().Graph
	for {
		if op.edgeSlot >= 0 && len(op.pendingEdges) > 0 {
			eid := op.pendingEdges[0]
			op.pendingEdges = op.pendingEdges[1:]
			e, ok := g.GetEdge(eid)
			if !ok {
				continue
			}
			out := op.childRecord.Clone()
			out.SetEdge(op.edgeSlot, e)
			return out, nil
		}

		r, err := op.consumeChild(0)
		if err != nil || r == nil {
			return nil, err
		}
		src, dest := r.Node(op.srcSlot), r.Node(op.destSlot)
		if src == nil || dest == nil {
			continue
		}
		edges := op.connecting(src.ID, dest.ID)
		if len(edges) == 0 {
			continue
		}
		if op.edgeSlot < 0 {
			return r, nil
		}
		op.childRecord = r
		op.pendingEdges = edges
	}
}

// Reset drops held state.
func (op *ExpandInto) Reset() error {
	op.childRecord = nil
	op.pendingEdges = nil
	return nil
}

// Clone copies the operator into dst.
func (op *ExpandInto) Clone(dst *Plan) Operator {
	return NewExpandInto(dst, op.srcAlias, op.destAlias, op.edgeAlias, op.relation, op.dir)
}

// Free releases held records.
func (op *ExpandInto) Free() {
	op.childRecord = nil
	op.pendingEdges = nil
}
