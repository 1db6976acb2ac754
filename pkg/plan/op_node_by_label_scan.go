package plan

import (
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/matrix"
)

// NodeByLabelScan streams every node carrying a label, in ascending-ID
// order, by iterating the label matrix diagonal. An attached ID range
// turns it into NodeByLabelAndIdScan. With a child operator the scan
// re-runs once per child record, cloning the child record into each
// emitted one.
type NodeByLabelScan struct {
	BaseOp

	alias   string
	label   string
	labelID int
	slot    int

	idRange *UnsignedRange

	iter        matrix.TupleIter
	attached    bool
	childRecord *Record

	consumeFn func() (*Record, error)
}

// NewNodeByLabelScan builds a scan over the given label, defaulting to
// the full ID range.
func NewNodeByLabelScan(p *Plan, alias, label string) *NodeByLabelScan {
	op := &NodeByLabelScan{
		BaseOp:  NewBaseOp(p, OpKindNodeByLabelScan, "Node By Label Scan"),
		alias:   alias,
		label:   label,
		labelID: graph.UnknownID,
		idRange: NewUnsignedRange(),
	}
	op.slot = op.markModifies(p.MapAlias(alias))
	op.resolveLabel()
	return op
}

// SetIDRange constrains the scan to an ID range, reshaping the operator
// into Node By Label and ID Scan.
func (op *NodeByLabelScan) SetIDRange(r *UnsignedRange) {
	op.idRange = r.Clone()
	op.kind = OpKindNodeByLabelAndIDScan
	op.name = "Node By Label and ID Scan"
}

// resolveLabel refreshes the cached label ID; the label may not have
// existed when the plan was prepared.
func (op *NodeByLabelScan) resolveLabel() {
	if op.labelID != graph.UnknownID {
		return
	}
	op.labelID = op.plan.Ctx().Graph.Schema().LabelID(op.label)
}

// constructIterator attaches the iterator over the label matrix,
// tightening the configured ID range to the matrix bounds. It reports
// a dimension mismatch for a range no node can satisfy.
func (op *NodeByLabelScan) constructIterator() error {
	op.attached = false
	l := op.plan.Ctx().Graph.LabelMatrix(entities.LabelID(op.labelID))

	r := op.idRange.Clone()
	r.Tighten(CmpGE, 0)
	if l.Nrows() == 0 {
		return matrix.ErrDimensionMismatch
	}
	r.Tighten(CmpLT, l.Nrows())
	if !r.IsValid() {
		return matrix.ErrDimensionMismatch
	}

	minID, maxID := r.Bounds()
	if err := op.iter.AttachRange(l, minID, maxID); err != nil {
		return err
	}
	op.attached = true
	return nil
}

// Init selects the consume variant: child-driven when a child exists,
// no-op when the label is unknown or the range invalid, standalone
// otherwise.
func (op *NodeByLabelScan) Init() error {
	op.consumeFn = op.consumeStandalone

	if op.ChildCount() > 0 {
		op.consumeFn = op.consumeFromChild
		return nil
	}
	if op.labelID == graph.UnknownID {
		op.consumeFn = op.consumeNoOp
		return nil
	}
	if err := op.constructIterator(); err != nil {
		// invalid range for the current matrix dimensions, empty scan
		op.consumeFn = op.consumeNoOp
	}
	return nil
}

// Consume dispatches to the variant selected at Init.
func (op *NodeByLabelScan) Consume() (*Record, error) { return op.consumeFn() }

func (op *NodeByLabelScan) consumeNoOp() (*Record, error) { return nil, nil }

func (op *NodeByLabelScan) consumeStandalone() (*Record, error) {
	for {
		id, _, _, ok := op.iter.Next()
		if !ok {
			return nil, nil
		}
		n, alive := op.plan.Ctx().Graph.GetNode(id)
		if !alive {
			continue
		}
		r := op.plan.NewRecordOf()
		r.SetNode(op.slot, n)
		return r, nil
	}
}

func (op *NodeByLabelScan) consumeFromChild() (*Record, error) {
	g := op.plan.Ctx().Graph
	for {
		if op.childRecord == nil {
			r, err := op.consumeChild(0)
			if err != nil || r == nil {
				return nil, err
			}
			op.childRecord = r
			op.resolveLabel()
			if op.labelID == graph.UnknownID || op.constructIterator() != nil {
				// no scannable label for this binding, advance the child
				op.childRecord = nil
				continue
			}
		}

		id, _, _, ok := op.iter.Next()
		if !ok {
			// iterator depleted, advance to the next child record
			op.childRecord = nil
			continue
		}

		n, alive := g.GetNode(id)
		if !alive {
			continue
		}
		out := op.childRecord.Clone()
		out.SetNode(op.slot, n)
		return out, nil
	}
}

// Reset rebuilds the iterator and drops any held child record.
func (op *NodeByLabelScan) Reset() error {
	op.childRecord = nil
	if op.ChildCount() == 0 && op.labelID != graph.UnknownID {
		if err := op.constructIterator(); err != nil {
			op.consumeFn = op.consumeNoOp
		}
	}
	return nil
}

// Clone copies the scan into dst.
func (op *NodeByLabelScan) Clone(dst *Plan) Operator {
	c := NewNodeByLabelScan(dst, op.alias, op.label)
	c.idRange = op.idRange.Clone()
	c.kind = op.kind
	c.name = op.name
	return c
}

// Free detaches the iterator.
func (op *NodeByLabelScan) Free() {
	op.iter.Detach()
	op.childRecord = nil
}
