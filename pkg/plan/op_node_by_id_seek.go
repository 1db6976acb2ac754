package plan

// NodeByIDSeek streams the live nodes inside an explicit ID range,
// without touching any matrix.
type NodeByIDSeek struct {
	BaseOp

	alias   string
	slot    int
	idRange *UnsignedRange

	next        uint64
	max         uint64
	depleted    bool
	childRecord *Record
}

// NewNodeByIDSeek builds a seek over the given ID range.
func NewNodeByIDSeek(p *Plan, alias string, idRange *UnsignedRange) *NodeByIDSeek {
	op := &NodeByIDSeek{
		BaseOp:  NewBaseOp(p, OpKindNodeByIDSeek, "Node By Id Seek"),
		alias:   alias,
		idRange: idRange.Clone(),
	}
	op.slot = op.markModifies(p.MapAlias(alias))
	return op
}

func (op *NodeByIDSeek) rewind() {
	cap := op.plan.Ctx().Graph.NodeCapacity()
	r := op.idRange.Clone()
	if cap == 0 {
		op.depleted = true
		return
	}
	r.Tighten(CmpLT, cap)
	if !r.IsValid() {
		op.depleted = true
		return
	}
	op.next, op.max = r.Bounds()
	op.depleted = false
}

// Init positions the seek at the range start.
func (op *NodeByIDSeek) Init() error {
	op.rewind()
	return nil
}

func (op *NodeByIDSeek) nextNode() (*Record, bool) {
	g := op.plan.Ctx().Graph
	for !op.depleted {
		id := op.next
		if id >= op.max {
			op.depleted = true
		} else {
			op.next++
		}
		if n, alive := g.GetNode(id); alive {
			r := op.plan.NewRecordOf()
			r.SetNode(op.slot, n)
			return r, true
		}
		if op.depleted {
			break
		}
	}
	return nil, false
}

// Consume yields the next live node in the range.
func (op *NodeByIDSeek) Consume() (*Record, error) {
	if op.ChildCount() == 0 {
		r, ok := op.nextNode()
		if !ok {
			return nil, nil
		}
		return r, nil
	}

	for {
		if op.childRecord == nil {
			r, err := op.consumeChild(0)
			if err != nil || r == nil {
				return nil, err
			}
			op.childRecord = r
			op.rewind()
		}
		r, ok := op.nextNode()
		if !ok {
			op.childRecord = nil
			continue
		}
		out := op.childRecord.Clone()
		out.Merge(r)
		return out, nil
	}
}

// Reset rewinds to the range start.
func (op *NodeByIDSeek) Reset() error {
	op.childRecord = nil
	op.rewind()
	return nil
}

// Clone copies the seek into dst.
func (op *NodeByIDSeek) Clone(dst *Plan) Operator {
	return NewNodeByIDSeek(dst, op.alias, op.idRange)
}

// Free releases held records.
func (op *NodeByIDSeek) Free() { op.childRecord = nil }
