package plan

import (
	"sort"

	"github.com/tosone/falkordb/pkg/datatypes"
)

// SortKey orders records by one expression.
type SortKey struct {
	Exp        Expression
	Descending bool
}

// Sort buffers the child stream, orders it by the sort keys under the
// documented value total order and streams the result.
type Sort struct {
	BaseOp

	keys     []SortKey
	buffered []*Record
	next     int
	sorted   bool
}

// NewSort builds a sort over keys.
func NewSort(p *Plan, keys []SortKey) *Sort {
	return &Sort{BaseOp: NewBaseOp(p, OpKindSort, "Sort"), keys: keys}
}

// Init is a no-op; buffering happens at the first consume.
func (op *Sort) Init() error { return nil }

func (op *Sort) fill() error {
	ctx := op.plan.Ctx()
	for {
		r, err := op.consumeChild(0)
		if err != nil {
			return err
		}
		if r == nil {
			break
		}
		op.buffered = append(op.buffered, r)
	}

	type keyed struct {
		rec  *Record
		keys []datatypes.Value
	}
	rows := make([]keyed, len(op.buffered))
	for i, r := range op.buffered {
		ks := make([]datatypes.Value, len(op.keys))
		for j, k := range op.keys {
			v, err := k.Exp.Evaluate(ctx, r)
			if err != nil {
				return err
			}
			ks[j] = v
		}
		rows[i] = keyed{rec: r, keys: ks}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for j, k := range op.keys {
			c := datatypes.Compare(rows[a].keys[j], rows[b].keys[j])
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	for i, row := range rows {
		op.buffered[i] = row.rec
	}
	op.sorted = true
	return nil
}

// Consume drains the child on first call, then streams in order.
func (op *Sort) Consume() (*Record, error) {
	if !op.sorted {
		if err := op.fill(); err != nil {
			return nil, err
		}
	}
	if op.next >= len(op.buffered) {
		return nil, nil
	}
	r := op.buffered[op.next]
	op.next++
	return r, nil
}

// Reset drops the buffer for a fresh pass.
func (op *Sort) Reset() error {
	op.buffered = nil
	op.next = 0
	op.sorted = false
	return nil
}

// Clone copies the sort into dst.
func (op *Sort) Clone(dst *Plan) Operator {
	keys := make([]SortKey, len(op.keys))
	for i, k := range op.keys {
		keys[i] = SortKey{Exp: k.Exp.Clone(), Descending: k.Descending}
	}
	return NewSort(dst, keys)
}

// Free releases the buffer.
func (op *Sort) Free() { op.buffered = nil }
