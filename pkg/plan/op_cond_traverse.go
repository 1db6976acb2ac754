package plan

import (
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/matrix"
)

// Direction selects which way a traversal walks an edge.
type Direction int

const (
	DirOutgoing Direction = iota
	DirIncoming
)

// condTraverseRecordCap bounds how many input records one algebraic
// batch covers. Batching lets a single matrix pass serve many source
// bindings.
const condTraverseRecordCap = 16

// CondTraverse expands one hop from a bound source node. Input records
// are buffered up to the record cap; the buffered source IDs form a
// filter over the relation matrix (the algebraic product), and the
// resulting matrix is iterated mapping (source, destination) pairs back
// onto the buffered records. An edge alias additionally expands every
// parallel edge at each slot.
type CondTraverse struct {
	BaseOp

	relation  string // empty traverses every relation matrix
	dir       Direction
	srcAlias  string
	destAlias string
	edgeAlias string // empty when the pattern names no edge

	srcSlot  int
	destSlot int
	edgeSlot int

	records []*Record
	result  *matrix.Delta
	iter    matrix.TupleIter

	// pending parallel-edge expansion for the current result cell
	pendingEdges []entities.EntityID
	pendingBuf   int
	pendingDest  entities.EntityID
}

// NewCondTraverse builds a one-hop traversal from srcAlias to destAlias
// over the named relation (empty for any).
func NewCondTraverse(p *Plan, srcAlias, destAlias, edgeAlias, relation string, dir Direction) *CondTraverse {
	op := &CondTraverse{
		BaseOp:    NewBaseOp(p, OpKindCondTraverse, "Conditional Traverse"),
		relation:  relation,
		dir:       dir,
		srcAlias:  srcAlias,
		destAlias: destAlias,
		edgeAlias: edgeAlias,
		edgeSlot:  -1,
	}
	op.srcSlot = p.MapAlias(srcAlias)
	op.destSlot = op.markModifies(p.MapAlias(destAlias))
	if edgeAlias != "" {
		op.edgeSlot = op.markModifies(p.MapAlias(edgeAlias))
	}
	return op
}

// Init is a no-op; state builds lazily at the first consume.
func (op *CondTraverse) Init() error { return nil }

// relationIDs returns the relations to walk: the named one, or every
// relation when none is named.
func (op *CondTraverse) relationIDs() []entities.RelationID {
	g := op.plan.Ctx().Graph
	if op.relation == "" {
		ids := make([]entities.RelationID, g.RelationCount())
		for i := range ids {
			ids[i] = entities.RelationID(i)
		}
		return ids
	}
	if id := g.Schema().RelationID(op.relation); id != graph.UnknownID {
		return []entities.RelationID{entities.RelationID(id)}
	}
	return nil
}

// computeBatch buffers up to the record cap of child records and builds
// the batch result matrix: row = buffer index, column = destination ID.
func (op *CondTraverse) computeBatch() (bool, error) {
	op.records = op.records[:0]
	for len(op.records) < condTraverseRecordCap {
		r, err := op.consumeChild(0)
		if err != nil {
			return false, err
		}
		if r == nil {
			break
		}
		op.records = append(op.records, r)
	}
	if len(op.records) == 0 {
		return false, nil
	}

	g := op.plan.Ctx().Graph
	op.result = matrix.NewDelta(uint64(len(op.records)), g.NodeCapacity())

	for i, rec := range op.records {
		src := rec.Node(op.srcSlot)
		if src == nil {
			continue
		}
		for _, rid := range op.relationIDs() {
			var m *matrix.Delta
			if op.dir == DirOutgoing {
				m = g.RelationMatrix(rid)
			} else {
				m = g.RelationTranspose(rid)
			}
			var it matrix.TupleIter
			if err := it.AttachRange(m, src.ID, src.ID); err != nil {
				continue
			}
			for {
				_, dest, _, ok := it.Next()
				if !ok {
					break
				}
				op.result.SetBool(uint64(i), dest)
			}
		}
	}

	return true, op.iter.Attach(op.result)
}

// edgesBetween resolves the edge IDs connecting the current source to
// dest, honoring direction.
func (op *CondTraverse) edgesBetween(src, dest entities.EntityID) []entities.EntityID {
	g := op.plan.Ctx().Graph
	from, to := src, dest
	if op.dir == DirIncoming {
		from, to = dest, src
	}
	var out []entities.EntityID
	for _, rid := range op.relationIDs() {
		out = append(out, g.RelationEdges(rid, from, to)...)
	}
	return out
}

func (op *CondTraverse) emitPending() (*Record, bool) {
	if len(op.pendingEdges) == 0 {
		return nil, false
	}
	g := op.plan.Ctx().Graph
	eid := op.pendingEdges[0]
	op.pendingEdges = op.pendingEdges[1:]

	e, ok := g.GetEdge(eid)
	if !ok {
		return nil, false
	}
	destNode, ok := g.GetNode(op.pendingDest)
	if !ok {
		return nil, false
	}
	out := op.records[op.pendingBuf].Clone()
	out.SetNode(op.destSlot, destNode)
	out.SetEdge(op.edgeSlot, e)
	return out, true
}

// Consume yields the next (source record, destination, edge) expansion.
func (op *CondTraverse) Consume() (*Record, error) {
	g := op.plan.Ctx().Graph
	for {
		if op.edgeSlot >= 0 {
			if out, ok := op.emitPending(); ok {
				return out, nil
			}
			if len(op.pendingEdges) > 0 {
				continue
			}
		}

		if op.result != nil {
			bufIdx, dest, _, ok := op.iter.Next()
			if ok {
				src := op.records[bufIdx].Node(op.srcSlot)
				if src == nil {
					continue
				}
				if op.edgeSlot >= 0 {
					op.pendingEdges = op.edgesBetween(src.ID, dest)
					op.pendingBuf = int(bufIdx)
					op.pendingDest = dest
					continue
				}
				destNode, alive := g.GetNode(dest)
				if !alive {
					continue
				}
				out := op.records[bufIdx].Clone()
				out.SetNode(op.destSlot, destNode)
				return out, nil
			}
		}

		// result exhausted (or first call), refill the buffer
		more, err := op.computeBatch()
		if err != nil {
			return nil, err
		}
		if !more {
			return nil, nil
		}
	}
}

// Reset drops batch state.
func (op *CondTraverse) Reset() error {
	op.records = nil
	op.result = nil
	op.pendingEdges = nil
	op.iter.Detach()
	return nil
}

// Clone copies the traversal into dst.
func (op *CondTraverse) Clone(dst *Plan) Operator {
	return NewCondTraverse(dst, op.srcAlias, op.destAlias, op.edgeAlias, op.relation, op.dir)
}

// Free releases batch state.
func (op *CondTraverse) Free() {
	op.records = nil
	op.result = nil
	op.pendingEdges = nil
	op.iter.Detach()
}
