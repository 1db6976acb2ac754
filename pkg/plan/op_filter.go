package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// Filter passes through the records whose predicate evaluates to true.
// Null predicates (three-valued logic) drop the record.
type Filter struct {
	BaseOp
	predicate Expression
}

// NewFilter builds a filter over predicate.
func NewFilter(p *Plan, predicate Expression) *Filter {
	return &Filter{
		BaseOp:    NewBaseOp(p, OpKindFilter, "Filter"),
		predicate: predicate,
	}
}

// Init is a no-op.
func (op *Filter) Init() error { return nil }

// Consume pulls child records until one satisfies the predicate.
func (op *Filter) Consume() (*Record, error) {
	for {
		r, err := op.consumeChild(0)
		if err != nil || r == nil {
			return nil, err
		}
		v, err := op.predicate.Evaluate(op.plan.Ctx(), r)
		if err != nil {
			return nil, err
		}
		if v.Kind() == datatypes.TypeBool && v.Bool() {
			return r, nil
		}
	}
}

// Reset is a no-op; the filter holds no stream state.
func (op *Filter) Reset() error { return nil }

// Clone copies the filter into dst.
func (op *Filter) Clone(dst *Plan) Operator {
	return NewFilter(dst, op.predicate.Clone())
}

// Free releases the predicate.
func (op *Filter) Free() { op.predicate = nil }
