package plan

// Apply runs its right subtree once per record produced by its left
// subtree. The left record is installed into the right subtree's
// Argument tap; right-hand records merge over it. After each right-hand
// exhaustion the right subtree is reset.
//
// Children: 0 = left (bound branch), 1 = right (applied branch).
type Apply struct {
	BaseOp

	argumentIdx int // arena index of the right subtree's Argument tap

	leftRecord *Record
	rightBusy  bool
}

// NewApply builds an apply whose right subtree taps the Argument at
// argumentIdx.
func NewApply(p *Plan, argumentIdx int) *Apply {
	return &Apply{
		BaseOp:      NewBaseOp(p, OpKindApply, "Apply"),
		argumentIdx: argumentIdx,
	}
}

func (op *Apply) argument() *Argument {
	return op.plan.Op(op.argumentIdx).(*Argument)
}

// Init is a no-op.
func (op *Apply) Init() error { return nil }

// Consume interleaves left records with full right-subtree executions.
func (op *Apply) Consume() (*Record, error) {
	for {
		if !op.rightBusy {
			l, err := op.consumeChild(0)
			if err != nil || l == nil {
				return nil, err
			}
			op.leftRecord = l
			op.argument().SetRecord(l)
			op.rightBusy = true
		}

		r, err := op.consumeChild(1)
		if err != nil {
			return nil, err
		}
		if r == nil {
			// right branch exhausted for this binding, rewind it
			op.rightBusy = false
			if err := op.plan.resetTree(op.Children()[1]); err != nil {
				return nil, err
			}
			continue
		}

		out := op.leftRecord.Clone()
		out.Merge(r)
		return out, nil
	}
}

// Reset drops the current binding.
func (op *Apply) Reset() error {
	op.leftRecord = nil
	op.rightBusy = false
	return nil
}

// Clone copies the apply into dst; the argument index carries over, the
// arena layout is identical by construction.
func (op *Apply) Clone(dst *Plan) Operator {
	return NewApply(dst, op.argumentIdx)
}

// Free drops held records.
func (op *Apply) Free() { op.leftRecord = nil }
