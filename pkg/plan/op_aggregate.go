package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
)

// AggFunc names an aggregation function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
	AggAvg
	AggCollect
)

// Aggregation is one aggregated column.
type Aggregation struct {
	Alias string
	Func  AggFunc
	Exp   Expression // nil for count(*)
	Slot  int
}

// Aggregate groups the child stream by key expressions and reduces each
// group with the aggregation functions, then streams one record per
// group.
type Aggregate struct {
	BaseOp

	groupKeys []Projection
	aggs      []Aggregation

	groups    map[uint64]*aggGroup
	order     []uint64 // first-seen group order, for deterministic replay
	next      int
	collected bool
}

type aggGroup struct {
	rec    *Record
	states []aggState
}

type aggState struct {
	count   uint64
	sum     float64
	sumInt  int64
	intOnly bool
	min     datatypes.Value
	max     datatypes.Value
	values  []datatypes.Value
	seen    bool
}

// NewAggregate builds an aggregation with the given group keys and
// aggregated columns.
func NewAggregate(p *Plan, groupKeys []Projection, aggs []Aggregation) *Aggregate {
	op := &Aggregate{
		BaseOp:    NewBaseOp(p, OpKindAggregate, "Aggregate"),
		groupKeys: groupKeys,
		aggs:      aggs,
		groups:    make(map[uint64]*aggGroup),
	}
	for i := range op.groupKeys {
		op.groupKeys[i].Slot = op.markModifies(p.MapAlias(op.groupKeys[i].Alias))
	}
	for i := range op.aggs {
		op.aggs[i].Slot = op.markModifies(p.MapAlias(op.aggs[i].Alias))
	}
	return op
}

// Init is a no-op.
func (op *Aggregate) Init() error { return nil }

func (st *aggState) update(f AggFunc, v datatypes.Value) {
	if f == AggCount {
		st.count++
		return
	}
	if v.IsNull() {
		return
	}
	if !st.seen {
		st.seen = true
		st.intOnly = true
		st.min = v
		st.max = v
	}
	switch f {
	case AggSum, AggAvg:
		if v.IsNumeric() {
			if v.Kind() != datatypes.TypeInt64 {
				st.intOnly = false
			} else {
				st.sumInt += v.Int()
			}
			st.sum += v.Numeric()
			st.count++
		}
	case AggMin:
		if datatypes.Compare(v, st.min) < 0 {
			st.min = v
		}
	case AggMax:
		if datatypes.Compare(v, st.max) > 0 {
			st.max = v
		}
	case AggCollect:
		st.values = append(st.values, v.Clone())
	}
}

func (st *aggState) finalize(f AggFunc) datatypes.Value {
	switch f {
	case AggCount:
		return datatypes.NewInt(int64(st.count))
	case AggSum:
		if !st.seen {
			return datatypes.NewInt(0)
		}
		if st.intOnly {
			return datatypes.NewInt(st.sumInt)
		}
		return datatypes.NewDouble(st.sum)
	case AggAvg:
		if st.count == 0 {
			return datatypes.NewNull()
		}
		return datatypes.NewDouble(st.sum / float64(st.count))
	case AggMin:
		if !st.seen {
			return datatypes.NewNull()
		}
		return st.min
	case AggMax:
		if !st.seen {
			return datatypes.NewNull()
		}
		return st.max
	default: // AggCollect
		return datatypes.NewArray(st.values...)
	}
}

func (op *Aggregate) collect() error {
	ctx := op.plan.Ctx()
	for {
		r, err := op.consumeChild(0)
		if err != nil {
			return err
		}
		if r == nil {
			break
		}

		keyVals := make([]datatypes.Value, len(op.groupKeys))
		for i, k := range op.groupKeys {
			v, err := k.Exp.Evaluate(ctx, r)
			if err != nil {
				return err
			}
			keyVals[i] = v
		}
		h := datatypes.Hash(datatypes.NewArray(keyVals...))

		grp, ok := op.groups[h]
		if !ok {
			rec := op.plan.NewRecordOf()
			for i, k := range op.groupKeys {
				rec.SetScalar(k.Slot, keyVals[i])
			}
			grp = &aggGroup{rec: rec, states: make([]aggState, len(op.aggs))}
			op.groups[h] = grp
			op.order = append(op.order, h)
		}

		for i, a := range op.aggs {
			v := datatypes.NewNull()
			if a.Exp != nil {
				var err error
				v, err = a.Exp.Evaluate(ctx, r)
				if err != nil {
					return err
				}
			}
			grp.states[i].update(a.Func, v)
		}
	}
	op.collected = true
	return nil
}

// Consume drains the child on first call, then streams one record per
// group in first-seen order.
func (op *Aggregate) Consume() (*Record, error) {
	if !op.collected {
		if err := op.collect(); err != nil {
			return nil, err
		}
	}
	if op.next >= len(op.order) {
		return nil, nil
	}
	grp := op.groups[op.order[op.next]]
	op.next++
	for i, a := range op.aggs {
		grp.rec.SetScalar(a.Slot, grp.states[i].finalize(a.Func))
	}
	return grp.rec, nil
}

// Reset drops group state.
func (op *Aggregate) Reset() error {
	op.groups = make(map[uint64]*aggGroup)
	op.order = nil
	op.next = 0
	op.collected = false
	return nil
}

// Clone copies the aggregation into dst.
func (op *Aggregate) Clone(dst *Plan) Operator {
	keys := make([]Projection, len(op.groupKeys))
	for i, k := range op.groupKeys {
		keys[i] = Projection{Alias: k.Alias, Exp: k.Exp.Clone()}
	}
	aggs := make([]Aggregation, len(op.aggs))
	for i, a := range op.aggs {
		aggs[i] = Aggregation{Alias: a.Alias, Func: a.Func}
		if a.Exp != nil {
			aggs[i].Exp = a.Exp.Clone()
		}
	}
	return NewAggregate(dst, keys, aggs)
}

// Free releases group state.
func (op *Aggregate) Free() { op.groups = nil }
