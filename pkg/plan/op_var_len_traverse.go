package plan

import (
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/matrix"
)

// VarLenTraverse walks paths of bounded length from a bound source via
// iterative depth-first search. The visited set is the current path: a
// cycle may close (the repeated node is yielded) but is never
// re-expanded. Minimum-length filtering applies to emission only, and
// the same destination reached over distinct paths is yielded once per
// path; deduplication is the caller's concern.
type VarLenTraverse struct {
	BaseOp

	relation  string
	dir       Direction
	srcAlias  string
	destAlias string
	minLen    uint
	maxLen    uint

	srcSlot  int
	destSlot int

	childRecord *Record
	stack       []dfsFrame
	onPath      map[entities.EntityID]struct{}
}

type dfsFrame struct {
	node      entities.EntityID
	depth     uint
	neighbors []entities.EntityID
	next      int
}

// NewVarLenTraverse builds a variable-length traversal covering path
// lengths [minLen, maxLen].
func NewVarLenTraverse(p *Plan, srcAlias, destAlias, relation string, dir Direction, minLen, maxLen uint) *VarLenTraverse {
	op := &VarLenTraverse{
		BaseOp:    NewBaseOp(p, OpKindVarLenTraverse, "Variable Length Traverse"),
		relation:  relation,
		dir:       dir,
		srcAlias:  srcAlias,
		destAlias: destAlias,
		minLen:    minLen,
		maxLen:    maxLen,
	}
	op.srcSlot = p.MapAlias(srcAlias)
	op.destSlot = op.markModifies(p.MapAlias(destAlias))
	return op
}

// Init is a no-op.
func (op *VarLenTraverse) Init() error { return nil }

// neighbors collects the one-hop frontier of node.
func (op *VarLenTraverse) neighbors(node entities.EntityID) []entities.EntityID {
	g := op.plan.Ctx().Graph

	var rels []entities.RelationID
	if op.relation == "" {
		for r := 0; r < g.RelationCount(); r++ {
			rels = append(rels, entities.RelationID(r))
		}
	} else if id := g.Schema().RelationID(op.relation); id != graph.UnknownID {
		rels = append(rels, entities.RelationID(id))
	}

	var out []entities.EntityID
	seen := make(map[entities.EntityID]struct{})
	for _, rid := range rels {
		var m *matrix.Delta
		if op.dir == DirOutgoing {
			m = g.RelationMatrix(rid)
		} else {
			m = g.RelationTranspose(rid)
		}
		var it matrix.TupleIter
		if err := it.AttachRange(m, node, node); err != nil {
			continue
		}
		for {
			_, dest, _, ok := it.Next()
			if !ok {
				break
			}
			if _, dup := seen[dest]; !dup {
				seen[dest] = struct{}{}
				out = append(out, dest)
			}
		}
	}
	return out
}

func (op *VarLenTraverse) push(node entities.EntityID, depth uint) {
	op.stack = append(op.stack, dfsFrame{node: node, depth: depth, neighbors: op.neighbors(node)})
	op.onPath[node] = struct{}{}
}

func (op *VarLenTraverse) pop() {
	top := op.stack[len(op.stack)-1]
	delete(op.onPath, top.node)
	op.stack = op.stack[:len(op.stack)-1]
}

// Consume yields the next destination reachable within the length
// bounds from the current child record's source.
func (op *VarLenTraverse) Consume() (*Record, error) {
	g := op.plan.Ctx().Graph
	for {
		if op.childRecord == nil {
			r, err := op.consumeChild(0)
			if err != nil || r == nil {
				return nil, err
			}
			src := r.Node(op.srcSlot)
			if src == nil {
				continue
			}
			op.childRecord = r
			op.stack = op.stack[:0]
			op.onPath = make(map[entities.EntityID]struct{})
			op.push(src.ID, 0)
		}

		if len(op.stack) == 0 {
			op.childRecord = nil
			continue
		}

		top := &op.stack[len(op.stack)-1]
		if top.next >= len(top.neighbors) {
			op.pop()
			continue
		}

		n := top.neighbors[top.next]
		top.next++
		depth := top.depth + 1

		_, closesCycle := op.onPath[n]
		if !closesCycle && depth < op.maxLen {
			op.push(n, depth)
		}

		if depth < op.minLen || depth > op.maxLen {
			continue
		}
		destNode, alive := g.GetNode(n)
		if !alive {
			continue
		}
		out := op.childRecord.Clone()
		out.SetNode(op.destSlot, destNode)
		return out, nil
	}
}

// Reset drops traversal state.
func (op *VarLenTraverse) Reset() error {
	op.childRecord = nil
	op.stack = nil
	op.onPath = nil
	return nil
}

// Clone copies the traversal into dst.
func (op *VarLenTraverse) Clone(dst *Plan) Operator {
	return NewVarLenTraverse(dst, op.srcAlias, op.destAlias, op.relation, op.dir, op.minLen, op.maxLen)
}

// Free releases traversal state.
func (op *VarLenTraverse) Free() {
	op.childRecord = nil
	op.stack = nil
	op.onPath = nil
}
