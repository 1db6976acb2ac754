package plan

import "github.com/tosone/falkordb/pkg/entities"

// AllNodeScan streams every live node in ascending-ID order off the node
// pool. With a child operator it replays the full scan once per child
// record.
type AllNodeScan struct {
	BaseOp

	alias string
	slot  int

	iter        *entities.PoolIter[entities.Node]
	childRecord *Record
}

// NewAllNodeScan builds a scan over all nodes bound to alias.
func NewAllNodeScan(p *Plan, alias string) *AllNodeScan {
	op := &AllNodeScan{
		BaseOp: NewBaseOp(p, OpKindAllNodeScan, "All Node Scan"),
		alias:  alias,
	}
	op.slot = op.markModifies(p.MapAlias(alias))
	return op
}

// Init acquires the pool iterator.
func (op *AllNodeScan) Init() error {
	op.iter = op.plan.Ctx().Graph.NodeIter()
	return nil
}

// Consume yields the next node, pulling child records between passes
// when a child exists.
func (op *AllNodeScan) Consume() (*Record, error) {
	if op.ChildCount() == 0 {
		_, n, ok := op.iter.Next()
		if !ok {
			return nil, nil
		}
		r := op.plan.NewRecordOf()
		r.SetNode(op.slot, n)
		return r, nil
	}

	for {
		if op.childRecord == nil {
			r, err := op.consumeChild(0)
			if err != nil || r == nil {
				return nil, err
			}
			op.childRecord = r
			op.iter.Reset()
		}
		_, n, ok := op.iter.Next()
		if !ok {
			op.childRecord = nil
			continue
		}
		out := op.childRecord.Clone()
		out.SetNode(op.slot, n)
		return out, nil
	}
}

// Reset rewinds the pool iterator.
func (op *AllNodeScan) Reset() error {
	op.childRecord = nil
	if op.iter != nil {
		op.iter.Reset()
	}
	return nil
}

// Clone copies the scan into dst.
func (op *AllNodeScan) Clone(dst *Plan) Operator {
	return NewAllNodeScan(dst, op.alias)
}

// Free drops iterator state.
func (op *AllNodeScan) Free() {
	op.iter = nil
	op.childRecord = nil
}
