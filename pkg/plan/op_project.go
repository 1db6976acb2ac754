package plan

// Projection is one projected column: an expression and the record slot
// receiving its value.
type Projection struct {
	Alias string
	Exp   Expression
	Slot  int
}

// Project evaluates a projection list against each child record, writing
// the results into scalar slots. It also produces one record when it has
// no child (a RETURN with no MATCH).
type Project struct {
	BaseOp

	projections []Projection
	emitted     bool // childless variant produced its single record
}

// NewProject builds a projection. Slots are assigned from the aliases.
func NewProject(p *Plan, projections []Projection) *Project {
	op := &Project{
		BaseOp:      NewBaseOp(p, OpKindProject, "Project"),
		projections: projections,
	}
	for i := range op.projections {
		op.projections[i].Slot = op.markModifies(p.MapAlias(op.projections[i].Alias))
	}
	return op
}

// Columns returns the projected column names in order.
func (op *Project) Columns() []string {
	cols := make([]string, len(op.projections))
	for i, pr := range op.projections {
		cols[i] = pr.Alias
	}
	return cols
}

// Slots returns the projected record slots in column order.
func (op *Project) Slots() []int {
	slots := make([]int, len(op.projections))
	for i, pr := range op.projections {
		slots[i] = pr.Slot
	}
	return slots
}

// Init is a no-op.
func (op *Project) Init() error { return nil }

// Consume projects the next child record.
func (op *Project) Consume() (*Record, error) {
	var r *Record
	if op.ChildCount() == 0 {
		if op.emitted {
			return nil, nil
		}
		op.emitted = true
		r = op.plan.NewRecordOf()
	} else {
		var err error
		r, err = op.consumeChild(0)
		if err != nil || r == nil {
			return nil, err
		}
	}

	for _, pr := range op.projections {
		v, err := pr.Exp.Evaluate(op.plan.Ctx(), r)
		if err != nil {
			return nil, err
		}
		r.SetScalar(pr.Slot, v)
	}
	return r, nil
}

// Reset re-arms the childless variant.
func (op *Project) Reset() error {
	op.emitted = false
	return nil
}

// Clone copies the projection into dst.
func (op *Project) Clone(dst *Plan) Operator {
	projections := make([]Projection, len(op.projections))
	for i, pr := range op.projections {
		projections[i] = Projection{Alias: pr.Alias, Exp: pr.Exp.Clone()}
	}
	return NewProject(dst, projections)
}

// Free releases the projection list.
func (op *Project) Free() { op.projections = nil }
