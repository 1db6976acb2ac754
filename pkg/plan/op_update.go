package plan

// Update stages property assignments on bound entities and commits them
// at the write barrier once its input is exhausted, then streams the
// updated records.
type Update struct {
	BaseOp

	alias string
	slot  int
	props []PropSetter

	buffered  []*Record
	next      int
	committed bool
}

// NewUpdate builds an update of the entity bound to alias.
func NewUpdate(p *Plan, alias string, props []PropSetter) *Update {
	op := &Update{
		BaseOp: NewBaseOp(p, OpKindUpdate, "Update"),
		alias:  alias,
		props:  props,
	}
	op.slot = p.MapAlias(alias)
	return op
}

// Init is a no-op.
func (op *Update) Init() error { return nil }

// Consume drains and stages, commits, then streams.
func (op *Update) Consume() (*Record, error) {
	if !op.committed {
		ctx := op.plan.Ctx()
		for {
			r, err := op.consumeChild(0)
			if err != nil {
				return nil, err
			}
			if r == nil {
				break
			}
			props := make([]PropertyValue, 0, len(op.props))
			for _, ps := range op.props {
				v, err := ps.Exp.Evaluate(ctx, r)
				if err != nil {
					return nil, err
				}
				props = append(props, PropertyValue{Name: ps.Name, Value: v})
			}
			op.plan.pending.updates = append(op.plan.pending.updates, pendingUpdate{
				rec:   r,
				slot:  op.slot,
				props: props,
			})
			op.buffered = append(op.buffered, r)
		}
		if err := op.plan.commitPending(); err != nil {
			return nil, err
		}
		op.committed = true
	}

	if op.next >= len(op.buffered) {
		return nil, nil
	}
	r := op.buffered[op.next]
	op.next++
	return r, nil
}

// Reset drops buffered state.
func (op *Update) Reset() error {
	op.buffered = nil
	op.next = 0
	op.committed = false
	return nil
}

// Clone copies the update into dst.
func (op *Update) Clone(dst *Plan) Operator {
	return NewUpdate(dst, op.alias, clonePropSetters(op.props))
}

// Free releases buffered records.
func (op *Update) Free() { op.buffered = nil }
