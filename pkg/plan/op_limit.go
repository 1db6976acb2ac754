package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// Limit passes through the first N records of its child stream. The
// count expression evaluates once at build time from a clone, the same
// parameterization design as Skip.
type Limit struct {
	BaseOp

	limitExp Expression
	limit    uint64
	consumed uint64
}

// NewLimit builds a limit operator, evaluating limitExp immediately.
func NewLimit(p *Plan, limitExp Expression) (*Limit, error) {
	op := &Limit{BaseOp: NewBaseOp(p, OpKindLimit, "Limit")}
	if err := op.evalLimit(limitExp); err != nil {
		return nil, err
	}
	return op, nil
}

func (op *Limit) evalLimit(exp Expression) error {
	op.limitExp = exp.Clone()

	v, err := exp.Evaluate(op.plan.Ctx(), nil)
	if err != nil {
		return err
	}
	if v.Kind() != datatypes.TypeInt64 || v.Int() < 0 {
		return errNonNegativeInteger("Limit")
	}
	op.limit = uint64(v.Int())
	return nil
}

// Init is a no-op.
func (op *Limit) Init() error { return nil }

// Consume streams until the limit is reached.
func (op *Limit) Consume() (*Record, error) {
	if op.consumed >= op.limit {
		return nil, nil
	}
	r, err := op.consumeChild(0)
	if err != nil || r == nil {
		return nil, err
	}
	op.consumed++
	return r, nil
}

// Reset clears the consumed counter.
func (op *Limit) Reset() error {
	op.consumed = 0
	return nil
}

// Clone re-clones the stored expression into dst.
func (op *Limit) Clone(dst *Plan) Operator {
	c, err := NewLimit(dst, op.limitExp.Clone())
	if err != nil {
		dst.RaiseBuildError(err)
		c = &Limit{BaseOp: NewBaseOp(dst, OpKindLimit, "Limit"), limitExp: op.limitExp.Clone()}
	}
	return c
}

// Free releases the stored expression.
func (op *Limit) Free() { op.limitExp = nil }
