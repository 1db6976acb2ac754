package plan

// Argument is the tap of an apply subtree: it emits, exactly once per
// reset, the record installed by the enclosing Apply.
type Argument struct {
	BaseOp

	record  *Record
	emitted bool
}

// NewArgument builds an argument tap.
func NewArgument(p *Plan) *Argument {
	return &Argument{BaseOp: NewBaseOp(p, OpKindArgument, "Argument")}
}

// SetRecord installs the record the next consume will emit.
func (op *Argument) SetRecord(r *Record) {
	op.record = r
	op.emitted = false
}

// Init is a no-op.
func (op *Argument) Init() error { return nil }

// Consume emits the installed record once.
func (op *Argument) Consume() (*Record, error) {
	if op.emitted || op.record == nil {
		return nil, nil
	}
	op.emitted = true
	return op.record.Clone(), nil
}

// Reset re-arms the tap; the installed record stays until replaced.
func (op *Argument) Reset() error {
	op.emitted = false
	return nil
}

// Clone copies the tap into dst.
func (op *Argument) Clone(dst *Plan) Operator { return NewArgument(dst) }

// Free drops the installed record.
func (op *Argument) Free() { op.record = nil }
