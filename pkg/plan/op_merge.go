package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/matrix"
)

// Merge matches a node pattern and, per input record with no match,
// stages the node for creation at the write barrier: match-or-create.
// Matched nodes stream immediately after the barrier alongside the
// created ones.
type Merge struct {
	BaseOp

	tmpl NodeTemplate
	slot int

	buffered []*Record
	next     int
	done     bool
}

// NewMerge builds a merge of the given node template.
func NewMerge(p *Plan, tmpl NodeTemplate) *Merge {
	op := &Merge{
		BaseOp: NewBaseOp(p, OpKindMerge, "Merge"),
		tmpl:   tmpl,
	}
	op.slot = op.markModifies(p.MapAlias(tmpl.Alias))
	return op
}

// Init is a no-op.
func (op *Merge) Init() error { return nil }

// matchNodes finds live nodes carrying every template label and every
// evaluated property value.
func (op *Merge) matchNodes(props []PropertyValue) []*entities.Node {
	g := op.plan.Ctx().Graph
	schema := g.Schema()

	labelIDs := make([]entities.LabelID, 0, len(op.tmpl.Labels))
	for _, name := range op.tmpl.Labels {
		id := schema.LabelID(name)
		if id == graph.UnknownID {
			return nil // label unknown, nothing can match
		}
		labelIDs = append(labelIDs, entities.LabelID(id))
	}

	matches := func(n *entities.Node) bool {
		for _, l := range labelIDs {
			if !n.Labels.Has(l) {
				return false
			}
		}
		for _, pv := range props {
			aid := schema.AttributeID(pv.Name)
			if aid < 0 {
				return false
			}
			got, ok := n.Attrs.Get(entities.AttributeID(aid))
			if !ok || !datatypes.Equal(got, pv.Value) {
				return false
			}
		}
		return true
	}

	var out []*entities.Node
	if len(labelIDs) > 0 {
		var it matrix.TupleIter
		if err := it.Attach(g.LabelMatrix(labelIDs[0])); err != nil {
			return nil
		}
		for {
			id, _, _, ok := it.Next()
			if !ok {
				break
			}
			if n, alive := g.GetNode(id); alive && matches(n) {
				out = append(out, n)
			}
		}
		return out
	}

	iter := g.NodeIter()
	for {
		_, n, ok := iter.Next()
		if !ok {
			break
		}
		if matches(n) {
			out = append(out, n)
		}
	}
	return out
}

func (op *Merge) stage(r *Record) error {
	props := make([]PropertyValue, 0, len(op.tmpl.Props))
	for _, ps := range op.tmpl.Props {
		v, err := ps.Exp.Evaluate(op.plan.Ctx(), r)
		if err != nil {
			return err
		}
		props = append(props, PropertyValue{Name: ps.Name, Value: v})
	}

	if matched := op.matchNodes(props); len(matched) > 0 {
		for _, n := range matched {
			out := r.Clone()
			out.SetNode(op.slot, n)
			op.buffered = append(op.buffered, out)
		}
		return nil
	}

	out := r.Clone()
	op.plan.pending.createNodes = append(op.plan.pending.createNodes, pendingCreateNode{
		rec:    out,
		slot:   op.slot,
		labels: op.tmpl.Labels,
		props:  props,
	})
	op.buffered = append(op.buffered, out)
	return nil
}

// Consume drains and stages, commits missing matches, then streams.
func (op *Merge) Consume() (*Record, error) {
	if !op.done {
		if op.ChildCount() == 0 {
			if err := op.stage(op.plan.NewRecordOf()); err != nil {
				return nil, err
			}
		} else {
			for {
				r, err := op.consumeChild(0)
				if err != nil {
					return nil, err
				}
				if r == nil {
					break
				}
				if err := op.stage(r); err != nil {
					return nil, err
				}
			}
		}
		if err := op.plan.commitPending(); err != nil {
			return nil, err
		}
		op.done = true
	}

	if op.next >= len(op.buffered) {
		return nil, nil
	}
	r := op.buffered[op.next]
	op.next++
	return r, nil
}

// Reset drops buffered state.
func (op *Merge) Reset() error {
	op.buffered = nil
	op.next = 0
	op.done = false
	return nil
}

// Clone copies the merge into dst.
func (op *Merge) Clone(dst *Plan) Operator {
	tmpl := NodeTemplate{
		Alias:  op.tmpl.Alias,
		Labels: append([]string(nil), op.tmpl.Labels...),
		Props:  clonePropSetters(op.tmpl.Props),
	}
	return NewMerge(dst, tmpl)
}

// Free releases buffered records.
func (op *Merge) Free() { op.buffered = nil }
