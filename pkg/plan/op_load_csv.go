package plan

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/tosone/falkordb/pkg/datatypes"
)

// LoadCSV streams the rows of a CSV resource. The URI comes from an
// expression: evaluated once at init when standalone, or per child
// record otherwise. Each row binds to the alias as a list of string
// fields, or, with headers on, as a map from header name to field.
//
// A non-string URI or an open failure raises a runtime exception.
type LoadCSV struct {
	BaseOp

	exp         Expression
	alias       string
	slot        int
	withHeaders bool

	file    *os.File
	reader  *csv.Reader
	headers []string

	childRecord *Record
	depleted    bool
}

// NewLoadCSV builds a CSV source bound to alias.
func NewLoadCSV(p *Plan, exp Expression, alias string, withHeaders bool) *LoadCSV {
	op := &LoadCSV{
		BaseOp:      NewBaseOp(p, OpKindLoadCSV, "Load CSV"),
		exp:         exp,
		alias:       alias,
		withHeaders: withHeaders,
	}
	op.slot = op.markModifies(p.MapAlias(alias))
	return op
}

// computePath evaluates the URI expression against r.
func (op *LoadCSV) computePath(r *Record) (string, error) {
	v, err := op.exp.Evaluate(op.plan.Ctx(), r)
	if err != nil {
		return "", err
	}
	if v.Kind() != datatypes.TypeString {
		return "", NewRuntimeError("path to CSV resource must be a string")
	}
	return v.Str(), nil
}

// initReader opens the CSV resource, replacing any previous reader.
func (op *LoadCSV) initReader(path string) error {
	op.closeFile()

	path = strings.TrimPrefix(path, "file://")
	f, err := os.Open(path)
	if err != nil {
		return NewRuntimeError("failed to load CSV from %s", path)
	}
	op.file = f
	op.reader = csv.NewReader(f)
	op.reader.FieldsPerRecord = -1
	op.headers = nil

	if op.withHeaders {
		hdr, err := op.reader.Read()
		if err != nil {
			// header-only failure: an empty file yields no rows
			return nil
		}
		op.headers = hdr
	}
	return nil
}

func (op *LoadCSV) closeFile() {
	if op.file != nil {
		_ = op.file.Close()
		op.file = nil
		op.reader = nil
	}
}

// Init evaluates the path and opens the reader for the standalone
// variant; with a child, the path evaluates per child record.
func (op *LoadCSV) Init() error {
	if op.ChildCount() > 0 {
		return nil
	}
	path, err := op.computePath(op.plan.NewRecordOf())
	if err != nil {
		return err
	}
	return op.initReader(path)
}

// row converts one CSV line to the bound value.
func (op *LoadCSV) row(fields []string) datatypes.Value {
	if op.withHeaders {
		m := &datatypes.Map{}
		for i, h := range op.headers {
			if i < len(fields) {
				m.Set(h, datatypes.NewString(fields[i]))
			}
		}
		return datatypes.NewMap(m)
	}
	vals := make([]datatypes.Value, len(fields))
	for i, f := range fields {
		vals[i] = datatypes.NewString(f)
	}
	return datatypes.NewArray(vals...)
}

func (op *LoadCSV) nextRow() ([]string, bool) {
	if op.reader == nil {
		return nil, false
	}
	fields, err := op.reader.Read()
	if err == io.EOF || err != nil {
		return nil, false
	}
	return fields, true
}

// Consume yields one record per CSV row.
func (op *LoadCSV) Consume() (*Record, error) {
	if op.ChildCount() == 0 {
		if op.depleted {
			return nil, nil
		}
		fields, ok := op.nextRow()
		if !ok {
			op.depleted = true
			op.closeFile()
			return nil, nil
		}
		r := op.plan.NewRecordOf()
		r.SetScalar(op.slot, op.row(fields))
		return r, nil
	}

	for {
		if op.childRecord == nil {
			r, err := op.consumeChild(0)
			if err != nil || r == nil {
				return nil, err
			}
			op.childRecord = r
			path, err := op.computePath(r)
			if err != nil {
				return nil, err
			}
			if err := op.initReader(path); err != nil {
				return nil, err
			}
		}
		fields, ok := op.nextRow()
		if !ok {
			op.childRecord = nil
			op.closeFile()
			continue
		}
		out := op.childRecord.Clone()
		out.SetScalar(op.slot, op.row(fields))
		return out, nil
	}
}

// Reset reopens the standalone reader and drops the child binding.
func (op *LoadCSV) Reset() error {
	op.childRecord = nil
	op.depleted = false
	op.closeFile()
	if op.ChildCount() == 0 {
		return op.Init()
	}
	return nil
}

// Clone copies the source into dst.
func (op *LoadCSV) Clone(dst *Plan) Operator {
	return NewLoadCSV(dst, op.exp.Clone(), op.alias, op.withHeaders)
}

// Free closes the reader.
func (op *LoadCSV) Free() {
	op.closeFile()
	op.childRecord = nil
}
