package plan

// Optional passes its child stream through; a child that produces
// nothing yields a single empty record instead, so downstream operators
// see the optional pattern as unbound rather than absent.
type Optional struct {
	BaseOp
	emitted bool
}

// NewOptional builds the optional wrapper.
func NewOptional(p *Plan) *Optional {
	return &Optional{BaseOp: NewBaseOp(p, OpKindOptional, "Optional")}
}

// Init is a no-op.
func (op *Optional) Init() error { return nil }

// Consume streams the child, substituting one empty record for an empty
// stream.
func (op *Optional) Consume() (*Record, error) {
	r, err := op.consumeChild(0)
	if err != nil {
		return nil, err
	}
	if r != nil {
		op.emitted = true
		return r, nil
	}
	if !op.emitted {
		op.emitted = true
		return op.plan.NewRecordOf(), nil
	}
	return nil, nil
}

// Reset re-arms the empty-stream substitution.
func (op *Optional) Reset() error {
	op.emitted = false
	return nil
}

// Clone copies the wrapper into dst.
func (op *Optional) Clone(dst *Plan) Operator { return NewOptional(dst) }

// Free is a no-op.
func (op *Optional) Free() {}
