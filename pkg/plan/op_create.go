package plan

// PropSetter is an attribute assignment template: the expression
// evaluates per record at stage time, the value commits at the barrier.
type PropSetter struct {
	Name string
	Exp  Expression
}

// NodeTemplate describes one node a Create operator instantiates.
type NodeTemplate struct {
	Alias  string
	Labels []string
	Props  []PropSetter
}

// EdgeTemplate describes one edge a Create operator instantiates; the
// endpoints resolve from record slots at commit.
type EdgeTemplate struct {
	Alias     string
	SrcAlias  string
	DestAlias string
	Relation  string
	Props     []PropSetter
}

func (op *Create) evalProps(props []PropSetter, r *Record) ([]PropertyValue, error) {
	out := make([]PropertyValue, 0, len(props))
	for _, ps := range props {
		v, err := ps.Exp.Evaluate(op.plan.Ctx(), r)
		if err != nil {
			return nil, err
		}
		out = append(out, PropertyValue{Name: ps.Name, Value: v})
	}
	return out, nil
}

// Create stages new nodes and edges for every input record and commits
// them all at the single write barrier once its input is exhausted; the
// buffered records, now holding the created entities, stream afterwards.
// Reads elsewhere in the query never observe these writes before the
// barrier.
type Create struct {
	BaseOp

	nodes []NodeTemplate
	edges []EdgeTemplate

	nodeSlots []int
	edgeSlots []int

	buffered  []*Record
	next      int
	committed bool
}

// NewCreate builds a create operator over the given templates.
func NewCreate(p *Plan, nodes []NodeTemplate, edges []EdgeTemplate) *Create {
	op := &Create{
		BaseOp: NewBaseOp(p, OpKindCreate, "Create"),
		nodes:  nodes,
		edges:  edges,
	}
	for _, t := range nodes {
		op.nodeSlots = append(op.nodeSlots, op.markModifies(p.MapAlias(t.Alias)))
	}
	for _, t := range edges {
		op.edgeSlots = append(op.edgeSlots, op.markModifies(p.MapAlias(t.Alias)))
	}
	return op
}

// Init is a no-op.
func (op *Create) Init() error { return nil }

func (op *Create) stage(r *Record) error {
	for i, t := range op.nodes {
		props, err := op.evalProps(t.Props, r)
		if err != nil {
			return err
		}
		op.plan.pending.createNodes = append(op.plan.pending.createNodes, pendingCreateNode{
			rec:    r,
			slot:   op.nodeSlots[i],
			labels: t.Labels,
			props:  props,
		})
	}
	for i, t := range op.edges {
		props, err := op.evalProps(t.Props, r)
		if err != nil {
			return err
		}
		op.plan.pending.createEdges = append(op.plan.pending.createEdges, pendingCreateEdge{
			rec:      r,
			slot:     op.edgeSlots[i],
			srcSlot:  op.plan.MapAlias(t.SrcAlias),
			destSlot: op.plan.MapAlias(t.DestAlias),
			relation: t.Relation,
			props:    props,
		})
	}
	op.buffered = append(op.buffered, r)
	return nil
}

// Consume drains and stages its input, commits at the barrier, then
// streams the buffered records.
func (op *Create) Consume() (*Record, error) {
	if !op.committed {
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
		op.committed = true
	}

	if op.next >= len(op.buffered) {
		return nil, nil
	}
	r := op.buffered[op.next]
	op.next++
	return r, nil
}

// Reset drops buffered records and re-arms the barrier.
func (op *Create) Reset() error {
	op.buffered = nil
	op.next = 0
	op.committed = false
	return nil
}

// Clone copies the templates into dst.
func (op *Create) Clone(dst *Plan) Operator {
	nodes := make([]NodeTemplate, len(op.nodes))
	for i, t := range op.nodes {
		nodes[i] = NodeTemplate{Alias: t.Alias, Labels: append([]string(nil), t.Labels...), Props: clonePropSetters(t.Props)}
	}
	edges := make([]EdgeTemplate, len(op.edges))
	for i, t := range op.edges {
		edges[i] = EdgeTemplate{Alias: t.Alias, SrcAlias: t.SrcAlias, DestAlias: t.DestAlias, Relation: t.Relation, Props: clonePropSetters(t.Props)}
	}
	return NewCreate(dst, nodes, edges)
}

func clonePropSetters(props []PropSetter) []PropSetter {
	out := make([]PropSetter, len(props))
	for i, ps := range props {
		out[i] = PropSetter{Name: ps.Name, Exp: ps.Exp.Clone()}
	}
	return out
}

// Free releases buffered records.
func (op *Create) Free() { op.buffered = nil }
