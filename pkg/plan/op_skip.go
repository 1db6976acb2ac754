package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// Skip discards the first N records of its child stream and passes the
// rest through. N comes from an expression evaluated once at build time;
// the stored expression is a clone, so a parameterized SKIP does not
// bake the substituted constant into the plan template.
type Skip struct {
	BaseOp

	skipExp Expression
	skip    uint64
	skipped uint64
}

// NewSkip builds a skip operator, evaluating skipExp immediately.
func NewSkip(p *Plan, skipExp Expression) (*Skip, error) {
	op := &Skip{BaseOp: NewBaseOp(p, OpKindSkip, "Skip")}
	if err := op.evalSkip(skipExp); err != nil {
		return nil, err
	}
	return op, nil
}

// evalSkip stores a clone of the input expression and evaluates the
// original: evaluation substitutes parameters in place, and clones of
// this operator must not resolve to an outdated constant.
func (op *Skip) evalSkip(exp Expression) error {
	op.skipExp = exp.Clone()

	v, err := exp.Evaluate(op.plan.Ctx(), nil)
	if err != nil {
		return err
	}
	if v.Kind() != datatypes.TypeInt64 || v.Int() < 0 {
		return errNonNegativeInteger("Skip")
	}
	op.skip = uint64(v.Int())
	return nil
}

// Init is a no-op.
func (op *Skip) Init() error { return nil }

// Consume discards records until the skip count is met, then streams.
func (op *Skip) Consume() (*Record, error) {
	for op.skipped < op.skip {
		discard, err := op.consumeChild(0)
		if err != nil || discard == nil {
			return nil, err
		}
		op.skipped++
	}
	return op.consumeChild(0)
}

// Reset clears the skipped counter.
func (op *Skip) Reset() error {
	op.skipped = 0
	return nil
}

// Clone re-clones the stored expression into dst, preserving
// parameterization. A clone whose parameters resolve to an invalid
// count surfaces the error at Init.
func (op *Skip) Clone(dst *Plan) Operator {
	c, err := NewSkip(dst, op.skipExp.Clone())
	if err != nil {
		dst.RaiseBuildError(err)
		c = &Skip{BaseOp: NewBaseOp(dst, OpKindSkip, "Skip"), skipExp: op.skipExp.Clone()}
	}
	return c
}

// Free releases the stored expression.
func (op *Skip) Free() { op.skipExp = nil }
