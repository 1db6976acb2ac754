package plan

// CartesianProduct merges every combination of records from its two
// children. The right stream is buffered on first use and replayed per
// left record.
type CartesianProduct struct {
	BaseOp

	leftRecord *Record
	rightBuf   []*Record
	rightNext  int
	buffered   bool
}

// NewCartesianProduct builds the product of children 0 and 1.
func NewCartesianProduct(p *Plan) *CartesianProduct {
	return &CartesianProduct{BaseOp: NewBaseOp(p, OpKindCartesianProduct, "Cartesian Product")}
}

// Init is a no-op.
func (op *CartesianProduct) Init() error { return nil }

func (op *CartesianProduct) fillRight() error {
	for {
		r, err := op.consumeChild(1)
		if err != nil {
			return err
		}
		if r == nil {
			op.buffered = true
			return nil
		}
		op.rightBuf = append(op.rightBuf, r)
	}
}

// Consume pairs the current left record with each buffered right record.
func (op *CartesianProduct) Consume() (*Record, error) {
	if !op.buffered {
		if err := op.fillRight(); err != nil {
			return nil, err
		}
		if len(op.rightBuf) == 0 {
			return nil, nil
		}
	}

	for {
		if op.leftRecord == nil {
			l, err := op.consumeChild(0)
			if err != nil || l == nil {
				return nil, err
			}
			op.leftRecord = l
			op.rightNext = 0
		}
		if op.rightNext >= len(op.rightBuf) {
			op.leftRecord = nil
			continue
		}
		out := op.leftRecord.Clone()
		out.Merge(op.rightBuf[op.rightNext])
		op.rightNext++
		return out, nil
	}
}

// Reset drops the buffered right stream.
func (op *CartesianProduct) Reset() error {
	op.leftRecord = nil
	op.rightBuf = nil
	op.rightNext = 0
	op.buffered = false
	return nil
}

// Clone copies the product into dst.
func (op *CartesianProduct) Clone(dst *Plan) Operator { return NewCartesianProduct(dst) }

// Free releases the buffer.
func (op *CartesianProduct) Free() {
	op.leftRecord = nil
	op.rightBuf = nil
}
