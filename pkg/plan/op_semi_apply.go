package plan

// SemiApply emits each left record for which the right subtree produces
// at least one record (an existence check); the anti variant inverts the
// test. Right-hand records themselves are discarded.
//
// Children: 0 = left, 1 = right.
type SemiApply struct {
	BaseOp

	anti        bool
	argumentIdx int
}

// NewSemiApply builds a (anti-)semi-apply whose right subtree taps the
// Argument at argumentIdx.
func NewSemiApply(p *Plan, argumentIdx int, anti bool) *SemiApply {
	kind, name := OpKindSemiApply, "Semi Apply"
	if anti {
		kind, name = OpKindAntiSemiApply, "Anti Semi Apply"
	}
	return &SemiApply{
		BaseOp:      NewBaseOp(p, kind, name),
		anti:        anti,
		argumentIdx: argumentIdx,
	}
}

// Init is a no-op.
func (op *SemiApply) Init() error { return nil }

// Consume streams qualifying left records.
func (op *SemiApply) Consume() (*Record, error) {
	for {
		l, err := op.consumeChild(0)
		if err != nil || l == nil {
			return nil, err
		}

		op.plan.Op(op.argumentIdx).(*Argument).SetRecord(l)
		r, err := op.consumeChild(1)
		if err != nil {
			return nil, err
		}
		if err := op.plan.resetTree(op.Children()[1]); err != nil {
			return nil, err
		}

		if (r != nil) != op.anti {
			return l, nil
		}
	}
}

// Reset is a no-op; per-binding state lives in the subtrees.
func (op *SemiApply) Reset() error { return nil }

// Clone copies the operator into dst.
func (op *SemiApply) Clone(dst *Plan) Operator {
	return NewSemiApply(dst, op.argumentIdx, op.anti)
}

// Free is a no-op.
func (op *SemiApply) Free() {}
