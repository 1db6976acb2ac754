package plan

// Delete stages removal of the entities bound to its aliases and commits
// at the write barrier once its input is exhausted. The input records
// stream on afterwards with the deleted slots cleared.
type Delete struct {
	BaseOp

	aliases []string
	slots   []int

	buffered  []*Record
	next      int
	committed bool
}

// NewDelete builds a delete of the entities bound to aliases.
func NewDelete(p *Plan, aliases []string) *Delete {
	op := &Delete{
		BaseOp:  NewBaseOp(p, OpKindDelete, "Delete"),
		aliases: aliases,
	}
	for _, a := range aliases {
		op.slots = append(op.slots, p.MapAlias(a))
	}
	return op
}

// Init is a no-op.
func (op *Delete) Init() error { return nil }

// Consume drains and stages, commits, then streams.
func (op *Delete) Consume() (*Record, error) {
	if !op.committed {
		for {
			r, err := op.consumeChild(0)
			if err != nil {
				return nil, err
			}
			if r == nil {
				break
			}
			for _, slot := range op.slots {
				if n := r.Node(slot); n != nil {
					op.plan.pending.deletes = append(op.plan.pending.deletes, pendingDelete{id: n.ID, isNode: true})
				} else if e := r.Edge(slot); e != nil {
					op.plan.pending.deletes = append(op.plan.pending.deletes, pendingDelete{id: e.ID})
				}
			}
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
	for _, slot := range op.slots {
		r.ClearSlot(slot)
	}
	return r, nil
}

// Reset drops buffered state.
func (op *Delete) Reset() error {
	op.buffered = nil
	op.next = 0
	op.committed = false
	return nil
}

// Clone copies the delete into dst.
func (op *Delete) Clone(dst *Plan) Operator {
	return NewDelete(dst, append([]string(nil), op.aliases...))
}

// Free releases buffered records.
func (op *Delete) Free() { op.buffered = nil }
