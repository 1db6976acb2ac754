package plan

import (
	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
)

// Expression is the interface to the arithmetic evaluator, which lives
// outside this engine. The concrete implementations here cover what the
// operators themselves need: constants, parameters, record slots,
// property access, entity IDs and boolean combinators.
//
// Clone exists so plan templates stay immutable: an operator that
// evaluates an expression at build time (Skip, Limit) first clones it,
// keeping parameter substitution out of the template.
type Expression interface {
	Evaluate(ctx *Context, r *Record) (datatypes.Value, error)
	Clone() Expression
}

// Constant is a literal value.
type Constant struct{ V datatypes.Value }

// NewConstant wraps a literal.
func NewConstant(v datatypes.Value) *Constant { return &Constant{V: v} }

func (e *Constant) Evaluate(*Context, *Record) (datatypes.Value, error) { return e.V, nil }
func (e *Constant) Clone() Expression                                   { return &Constant{V: e.V.Clone()} }

// Parameter resolves a named query parameter at evaluation time.
type Parameter struct{ Name string }

// NewParameter references the query parameter with the given name.
func NewParameter(name string) *Parameter { return &Parameter{Name: name} }

func (e *Parameter) Evaluate(ctx *Context, _ *Record) (datatypes.Value, error) {
	v, ok := ctx.Param(e.Name)
	if !ok {
		return datatypes.NewNull(), NewRuntimeError("missing parameter $%s", e.Name)
	}
	return v, nil
}
func (e *Parameter) Clone() Expression { return &Parameter{Name: e.Name} }

// SlotRef reads a scalar record slot.
type SlotRef struct{ Slot int }

// NewSlotRef reads the scalar stored in the given record slot.
func NewSlotRef(slot int) *SlotRef { return &SlotRef{Slot: slot} }

func (e *SlotRef) Evaluate(_ *Context, r *Record) (datatypes.Value, error) {
	return r.Scalar(e.Slot), nil
}
func (e *SlotRef) Clone() Expression { return &SlotRef{Slot: e.Slot} }

// Property reads an attribute off the entity in a record slot. The
// attribute name resolves through the schema lazily, so plans built
// before the attribute exists still work once it does.
type Property struct {
	Slot int
	Name string
}

// NewProperty reads attribute name from the entity in slot.
func NewProperty(slot int, name string) *Property { return &Property{Slot: slot, Name: name} }

func (e *Property) Evaluate(ctx *Context, r *Record) (datatypes.Value, error) {
	attrs := r.Attrs(e.Slot)
	if attrs == nil {
		return datatypes.NewNull(), nil
	}
	id := ctx.Graph.Schema().AttributeID(e.Name)
	if id < 0 {
		return datatypes.NewNull(), nil
	}
	v, ok := attrs.Get(entities.AttributeID(id))
	if !ok {
		return datatypes.NewNull(), nil
	}
	return v, nil
}
func (e *Property) Clone() Expression { return &Property{Slot: e.Slot, Name: e.Name} }

// EntityID yields the ID of the entity in a record slot, the id()
// function.
type EntityID struct{ Slot int }

// NewEntityID yields id(entity in slot).
func NewEntityID(slot int) *EntityID { return &EntityID{Slot: slot} }

func (e *EntityID) Evaluate(_ *Context, r *Record) (datatypes.Value, error) {
	if n := r.Node(e.Slot); n != nil {
		return datatypes.NewInt(int64(n.ID)), nil
	}
	if ed := r.Edge(e.Slot); ed != nil {
		return datatypes.NewInt(int64(ed.ID)), nil
	}
	return datatypes.NewNull(), nil
}
func (e *EntityID) Clone() Expression { return &EntityID{Slot: e.Slot} }

// CmpOp is a comparison operator.
type CmpOp int

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// Comparison compares two sub-expressions under the documented total
// order. Null operands yield null, which filters treat as false.
type Comparison struct {
	Op   CmpOp
	L, R Expression
}

// NewComparison builds l <op> r.
func NewComparison(op CmpOp, l, r Expression) *Comparison {
	return &Comparison{Op: op, L: l, R: r}
}

func (e *Comparison) Evaluate(ctx *Context, rec *Record) (datatypes.Value, error) {
	l, err := e.L.Evaluate(ctx, rec)
	if err != nil {
		return datatypes.NewNull(), err
	}
	r, err := e.R.Evaluate(ctx, rec)
	if err != nil {
		return datatypes.NewNull(), err
	}
	if l.IsNull() || r.IsNull() {
		return datatypes.NewNull(), nil
	}
	c := datatypes.Compare(l, r)
	var out bool
	switch e.Op {
	case CmpEQ:
		out = c == 0
	case CmpNE:
		out = c != 0
	case CmpLT:
		out = c < 0
	case CmpLE:
		out = c <= 0
	case CmpGT:
		out = c > 0
	case CmpGE:
		out = c >= 0
	}
	return datatypes.NewBool(out), nil
}

func (e *Comparison) Clone() Expression {
	return &Comparison{Op: e.Op, L: e.L.Clone(), R: e.R.Clone()}
}

// BoolOp is a boolean combinator.
type BoolOp int

const (
	BoolAnd BoolOp = iota
	BoolOr
	BoolNot
)

// Boolean combines sub-expressions with three-valued logic.
type Boolean struct {
	Op   BoolOp
	Args []Expression
}

// NewBoolean builds a boolean combinator over args.
func NewBoolean(op BoolOp, args ...Expression) *Boolean { return &Boolean{Op: op, Args: args} }

func (e *Boolean) Evaluate(ctx *Context, rec *Record) (datatypes.Value, error) {
	switch e.Op {
	case BoolNot:
		v, err := e.Args[0].Evaluate(ctx, rec)
		if err != nil || v.IsNull() {
			return datatypes.NewNull(), err
		}
		return datatypes.NewBool(!v.Bool()), nil
	case BoolAnd:
		sawNull := false
		for _, a := range e.Args {
			v, err := a.Evaluate(ctx, rec)
			if err != nil {
				return datatypes.NewNull(), err
			}
			if v.IsNull() {
				sawNull = true
				continue
			}
			if !v.Bool() {
				return datatypes.NewBool(false), nil
			}
		}
		if sawNull {
			return datatypes.NewNull(), nil
		}
		return datatypes.NewBool(true), nil
	default: // BoolOr
		sawNull := false
		for _, a := range e.Args {
			v, err := a.Evaluate(ctx, rec)
			if err != nil {
				return datatypes.NewNull(), err
			}
			if v.IsNull() {
				sawNull = true
				continue
			}
			if v.Bool() {
				return datatypes.NewBool(true), nil
			}
		}
		if sawNull {
			return datatypes.NewNull(), nil
		}
		return datatypes.NewBool(false), nil
	}
}

func (e *Boolean) Clone() Expression {
	args := make([]Expression, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.Clone()
	}
	return &Boolean{Op: e.Op, Args: args}
}
