package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// Unwind expands a list expression into one record per element. With a
// child it expands per child record; standalone it expands once.
type Unwind struct {
	BaseOp

	alias string
	slot  int
	exp   Expression

	childRecord *Record
	list        []datatypes.Value
	next        int
	standalone  bool // the single standalone expansion ran
}

// NewUnwind builds an unwind of exp bound to alias.
func NewUnwind(p *Plan, alias string, exp Expression) *Unwind {
	op := &Unwind{
		BaseOp: NewBaseOp(p, OpKindUnwind, "Unwind"),
		alias:  alias,
		exp:    exp,
	}
	op.slot = op.markModifies(p.MapAlias(alias))
	return op
}

// Init is a no-op.
func (op *Unwind) Init() error { return nil }

func (op *Unwind) expand(r *Record) error {
	v, err := op.exp.Evaluate(op.plan.Ctx(), r)
	if err != nil {
		return err
	}
	switch v.Kind() {
	case datatypes.TypeArray:
		op.list = v.Array()
	case datatypes.TypeNull:
		op.list = nil
	default:
		// a scalar unwinds as a single-element list
		op.list = []datatypes.Value{v}
	}
	op.next = 0
	return nil
}

// Consume yields the next list element.
func (op *Unwind) Consume() (*Record, error) {
	for {
		if op.next < len(op.list) {
			v := op.list[op.next]
			op.next++
			var out *Record
			if op.childRecord != nil {
				out = op.childRecord.Clone()
			} else {
				out = op.plan.NewRecordOf()
			}
			out.SetScalar(op.slot, v.Clone())
			return out, nil
		}

		if op.ChildCount() == 0 {
			if op.standalone {
				return nil, nil
			}
			op.standalone = true
			if err := op.expand(nil); err != nil {
				return nil, err
			}
			continue
		}

		r, err := op.consumeChild(0)
		if err != nil || r == nil {
			return nil, err
		}
		op.childRecord = r
		if err := op.expand(r); err != nil {
			return nil, err
		}
	}
}

// Reset drops the expansion state.
func (op *Unwind) Reset() error {
	op.childRecord = nil
	op.list = nil
	op.next = 0
	op.standalone = false
	return nil
}

// Clone copies the unwind into dst.
func (op *Unwind) Clone(dst *Plan) Operator {
	return NewUnwind(dst, op.alias, op.exp.Clone())
}

// Free releases held state.
func (op *Unwind) Free() {
	op.childRecord = nil
	op.list = nil
}
