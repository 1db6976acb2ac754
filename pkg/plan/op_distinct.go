package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
)

// Distinct drops records whose key expressions hash-match an earlier
// record. Hash collisions conflate records, the same trade the index key
// encoding makes.
type Distinct struct {
	BaseOp

	keys []Expression
	seen map[uint64]struct{}
}

// NewDistinct builds a distinct over the key expressions.
func NewDistinct(p *Plan, keys []Expression) *Distinct {
	return &Distinct{
		BaseOp: NewBaseOp(p, OpKindDistinct, "Distinct"),
		keys:   keys,
		seen:   make(map[uint64]struct{}),
	}
}

// Init is a no-op.
func (op *Distinct) Init() error { return nil }

// Consume pulls until an unseen key tuple appears.
func (op *Distinct) Consume() (*Record, error) {
	ctx := op.plan.Ctx()
	for {
		r, err := op.consumeChild(0)
		if err != nil || r == nil {
			return nil, err
		}
		vals := make([]datatypes.Value, len(op.keys))
		for i, k := range op.keys {
			v, err := k.Evaluate(ctx, r)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		h := datatypes.Hash(datatypes.NewArray(vals...))
		if _, dup := op.seen[h]; dup {
			continue
		}
		op.seen[h] = struct{}{}
		return r, nil
	}
}

// Reset forgets seen keys.
func (op *Distinct) Reset() error {
	op.seen = make(map[uint64]struct{})
	return nil
}

// Clone copies the operator into dst.
func (op *Distinct) Clone(dst *Plan) Operator {
	keys := make([]Expression, len(op.keys))
	for i, k := range op.keys {
		keys[i] = k.Clone()
	}
	return NewDistinct(dst, keys)
}

// Free releases the seen set.
func (op *Distinct) Free() { op.seen = nil }
