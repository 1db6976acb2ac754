package plan

import "github.com/tosone/falkordb/pkg/datatypes"

// Results is the plan sink: it materializes the projected columns of
// every record into the result set handed back to the client.
type Results struct {
	BaseOp

	columns []string
	slots   []int
	rows    [][]datatypes.Value
}

// NewResults builds a sink over the given column names and record
// slots. Column i reads slot slots[i].
func NewResults(p *Plan, columns []string, slots []int) *Results {
	return &Results{
		BaseOp:  NewBaseOp(p, OpKindResults, "Results"),
		columns: columns,
		slots:   slots,
	}
}

// Init is a no-op.
func (op *Results) Init() error { return nil }

// Consume appends the child record's projected values as a result row.
func (op *Results) Consume() (*Record, error) {
	r, err := op.consumeChild(0)
	if err != nil || r == nil {
		return nil, err
	}
	row := make([]datatypes.Value, len(op.slots))
	for i, slot := range op.slots {
		row[i] = r.Scalar(slot)
	}
	op.rows = append(op.rows, row)
	return r, nil
}

// ResultSet returns the accumulated rows.
func (op *Results) ResultSet() *ResultSet {
	return &ResultSet{Columns: op.columns, Rows: op.rows}
}

// Reset drops accumulated rows.
func (op *Results) Reset() error {
	op.rows = nil
	return nil
}

// Clone copies the sink into dst.
func (op *Results) Clone(dst *Plan) Operator {
	return NewResults(dst, append([]string(nil), op.columns...), append([]int(nil), op.slots...))
}

// Free releases the rows.
func (op *Results) Free() { op.rows = nil }
