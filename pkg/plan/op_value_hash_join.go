package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// ValueHashJoin equi-joins its two children: the right stream is hashed
// on its key expression, then left records probe the table. Matching
// pairs merge, left precedence on slot conflicts.
type ValueHashJoin struct {
	BaseOp

	leftKey  Expression
	rightKey Expression

	table   map[uint64][]*Record
	built   bool
	matches []*Record
	current *Record
}

// NewValueHashJoin joins children 0 (probe) and 1 (build) on the key
// expressions.
func NewValueHashJoin(p *Plan, leftKey, rightKey Expression) *ValueHashJoin {
	return &ValueHashJoin{
		BaseOp:   NewBaseOp(p, OpKindValueHashJoin, "Value Hash Join"),
		leftKey:  leftKey,
		rightKey: rightKey,
		table:    make(map[uint64][]*Record),
	}
}

// Init is a no-op.
func (op *ValueHashJoin) Init() error { return nil }

func (op *ValueHashJoin) build() error {
	ctx := op.plan.Ctx()
	for {
		r, err := op.consumeChild(1)
		if err != nil {
			return err
		}
		if r == nil {
			op.built = true
			return nil
		}
		v, err := op.rightKey.Evaluate(ctx, r)
		if err != nil {
			return err
		}
		if v.IsNull() {
			continue
		}
		h := datatypes.Hash(v)
		op.table[h] = append(op.table[h], r)
	}
}

// Consume probes the hash table with successive left records.
func (op *ValueHashJoin) Consume() (*Record, error) {
	if !op.built {
		if err := op.build(); err != nil {
			return nil, err
		}
	}
	ctx := op.plan.Ctx()
	for {
		if len(op.matches) > 0 {
			m := op.matches[0]
			op.matches = op.matches[1:]
			out := m.Clone()
			out.Merge(op.current)
			return out, nil
		}
		l, err := op.consumeChild(0)
		if err != nil || l == nil {
			return nil, err
		}
		v, err := op.leftKey.Evaluate(ctx, l)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			continue
		}
		op.current = l
		op.matches = append([]*Record(nil), op.table[datatypes.Hash(v)]...)
	}
}

// Reset drops the hash table for a rebuild.
func (op *ValueHashJoin) Reset() error {
	op.table = make(map[uint64][]*Record)
	op.built = false
	op.matches = nil
	op.current = nil
	return nil
}

// Clone copies the join into dst.
func (op *ValueHashJoin) Clone(dst *Plan) Operator {
	return NewValueHashJoin(dst, op.leftKey.Clone(), op.rightKey.Clone())
}

// Free releases the hash table.
func (op *ValueHashJoin) Free() {
	op.table = nil
	op.matches = nil
	op.current = nil
}
