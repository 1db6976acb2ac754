package plan

// OpKind tags a concrete operator type.
type OpKind int

const (
	OpKindAllNodeScan OpKind = iota
	OpKindNodeByLabelScan
	OpKindNodeByLabelAndIDScan
	OpKindNodeByIDSeek
	OpKindLoadCSV
	OpKindUnwind
	OpKindArgument
	OpKindCondTraverse
	OpKindExpandInto
	OpKindVarLenTraverse
	OpKindFilter
	OpKindProject
	OpKindSort
	OpKindSkip
	OpKindLimit
	OpKindDistinct
	OpKindAggregate
	OpKindApply
	OpKindSemiApply
	OpKindAntiSemiApply
	OpKindOptional
	OpKindCartesianProduct
	OpKindValueHashJoin
	OpKindCreate
	OpKindUpdate
	OpKindDelete
	OpKindMerge
	OpKindResults
)

// Operator is the execution-plan operator contract.
//
// Consume pulls the next record, returning (nil, nil) once the stream is
// exhausted. Operators are stateful between calls; Reset rewinds one to
// its initial state without reallocating, for re-execution under an
// apply operator. Clone produces a structural copy registered in the
// destination plan; Free releases held resources.
type Operator interface {
	Base() *BaseOp
	Init() error
	Consume() (*Record, error)
	Reset() error
	Clone(dst *Plan) Operator
	Free()
}

// BaseOp carries the state shared by all operators: the owning plan, the
// arena index, child links and the set of record slots the operator
// writes. Concrete operators embed it.
type BaseOp struct {
	kind     OpKind
	name     string
	plan     *Plan
	self     int
	children []int
	modifies []int
}

// NewBaseOp initializes the embedded base.
func NewBaseOp(p *Plan, kind OpKind, name string) BaseOp {
	return BaseOp{kind: kind, name: name, plan: p, self: -1}
}

// Base returns the embedded base.
func (b *BaseOp) Base() *BaseOp { return b }

// Kind returns the operator-kind tag.
func (b *BaseOp) Kind() OpKind { return b.kind }

// Name returns the display name used by EXPLAIN.
func (b *BaseOp) Name() string { return b.name }

// Plan returns the owning plan.
func (b *BaseOp) Plan() *Plan { return b.plan }

// Children returns the arena indices of the child operators.
func (b *BaseOp) Children() []int { return b.children }

// ChildCount returns the number of children.
func (b *BaseOp) ChildCount() int { return len(b.children) }

// Modifies returns the record slots this operator writes.
func (b *BaseOp) Modifies() []int { return b.modifies }

// markModifies records that the operator writes slot i.
func (b *BaseOp) markModifies(i int) int {
	b.modifies = append(b.modifies, i)
	return i
}

// consumeChild pulls one record from the i'th child, honoring
// cancellation and the profile counters.
func (b *BaseOp) consumeChild(i int) (*Record, error) {
	return b.plan.consume(b.children[i])
}
