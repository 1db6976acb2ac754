package plan

import (
	"fmt"
	"strings"
	"time"
)

// Plan is an execution plan: an arena of operators linked by integer
// indices, with a single root. The structure is immutable after
// construction; operator instances hold the mutable per-run state.
type Plan struct {
	ctx  *Context
	ops  []Operator
	root int

	aliases map[string]int

	// staged mutations shared by the mutation operators, committed at
	// the write barrier
	pending pendingChanges
	stats   Statistics

	// per-operator consumed-record counters, filled under PROFILE
	profiling bool
	consumed  []uint64

	initialized bool

	// first error raised while building or cloning operators; surfaces
	// at Init so Clone can stay error-free
	buildErr error
}

// RaiseBuildError records a construction-time failure, first one wins.
func (p *Plan) RaiseBuildError(err error) {
	if p.buildErr == nil {
		p.buildErr = err
	}
}

// NewPlan returns an empty plan bound to ctx.
func NewPlan(ctx *Context) *Plan {
	return &Plan{ctx: ctx, root: -1, aliases: make(map[string]int)}
}

// Ctx returns the query context.
func (p *Plan) Ctx() *Context { return p.ctx }

// MapAlias assigns (or returns) the record slot for alias.
func (p *Plan) MapAlias(alias string) int {
	if slot, ok := p.aliases[alias]; ok {
		return slot
	}
	slot := len(p.aliases)
	p.aliases[alias] = slot
	return slot
}

// RecordLen returns the record width: one slot per mapped alias.
func (p *Plan) RecordLen() int { return len(p.aliases) }

// NewRecordOf returns an empty record sized for this plan.
func (p *Plan) NewRecordOf() *Record { return NewRecord(p.RecordLen()) }

// AddOp registers op in the arena with the given children and returns
// its index.
func (p *Plan) AddOp(op Operator, children ...int) int {
	b := op.Base()
	b.self = len(p.ops)
	b.children = append(b.children, children...)
	p.ops = append(p.ops, op)
	return b.self
}

// SetRoot designates the root operator.
func (p *Plan) SetRoot(i int) { p.root = i }

// Root returns the root operator index.
func (p *Plan) Root() int { return p.root }

// Op returns the operator at arena index i.
func (p *Plan) Op(i int) Operator { return p.ops[i] }

// OpCount returns the arena size.
func (p *Plan) OpCount() int { return len(p.ops) }

// consume pulls one record from the operator at index i, checking the
// cancellation flag on entry.
func (p *Plan) consume(i int) (*Record, error) {
	if p.ctx.Cancelled() {
		return nil, ErrCancelled
	}
	r, err := p.ops[i].Consume()
	if err != nil {
		return nil, err
	}
	if r != nil && p.profiling {
		p.consumed[i]++
	}
	return r, nil
}

// Init initializes every operator bottom-up, once.
func (p *Plan) Init() error {
	if p.buildErr != nil {
		return p.buildErr
	}
	if p.initialized {
		return nil
	}
	if p.root < 0 {
		return NewRuntimeError("plan has no root operator")
	}
	if err := p.initTree(p.root); err != nil {
		return err
	}
	p.consumed = make([]uint64, len(p.ops))
	p.initialized = true
	return nil
}

func (p *Plan) initTree(i int) error {
	for _, c := range p.ops[i].Base().children {
		if err := p.initTree(c); err != nil {
			return err
		}
	}
	return p.ops[i].Init()
}

// Execute drives the plan to exhaustion under the graph read lock and
// returns the accumulated result set. Runtime errors tear the plan down
// and release the lock; no staged mutation survives.
func (p *Plan) Execute() (*ResultSet, error) {
	start := time.Now()
	g := p.ctx.Graph
	g.AcquireReadLock()
	defer g.ReleaseLock()

	if err := p.Init(); err != nil {
		return nil, err
	}

	var rs *ResultSet
	for {
		r, err := p.consume(p.root)
		if err != nil {
			p.pending.discard()
			return nil, err
		}
		if r == nil {
			break
		}
		_ = r
	}

	if sink, ok := p.ops[p.root].(*Results); ok {
		rs = sink.ResultSet()
	} else {
		rs = &ResultSet{}
	}
	rs.Stats = p.stats
	rs.Stats.ExecutionTime = time.Since(start)
	return rs, nil
}

// Profile executes the plan and returns the plan tree annotated with
// per-operator consumed-record counts.
func (p *Plan) Profile() (string, *ResultSet, error) {
	p.profiling = true
	rs, err := p.Execute()
	if err != nil {
		return "", nil, err
	}
	return p.render(true), rs, nil
}

// Reset rewinds every operator and discards staged mutations, so a full
// re-consumption replays the same stream.
func (p *Plan) Reset() error {
	p.pending.discard()
	p.stats = Statistics{}
	for i := range p.consumed {
		p.consumed[i] = 0
	}
	return p.resetTree(p.root)
}

func (p *Plan) resetTree(i int) error {
	if err := p.ops[i].Reset(); err != nil {
		return err
	}
	for _, c := range p.ops[i].Base().children {
		if err := p.resetTree(c); err != nil {
			return err
		}
	}
	return nil
}

// Clone produces a structural copy of the plan bound to ctx. Cloning is
// an index-remapping copy over the arena: children keep their indices.
func (p *Plan) Clone(ctx *Context) *Plan {
	c := NewPlan(ctx)
	c.aliases = make(map[string]int, len(p.aliases))
	for k, v := range p.aliases {
		c.aliases[k] = v
	}
	c.ops = make([]Operator, len(p.ops))
	for i, op := range p.ops {
		clone := op.Clone(c)
		b := clone.Base()
		b.self = i
		b.children = append([]int(nil), op.Base().children...)
		c.ops[i] = clone
	}
	c.root = p.root
	return c
}

// Free releases every operator in reverse arena order, so parents go
// before their children.
func (p *Plan) Free() {
	for i := len(p.ops) - 1; i >= 0; i-- {
		p.ops[i].Free()
	}
}

// Explain renders the plan tree.
func (p *Plan) Explain() string { return p.render(false) }

func (p *Plan) render(withCounts bool) string {
	var sb strings.Builder
	var walk func(i, depth int)
	walk = func(i, depth int) {
		sb.WriteString(strings.Repeat("    ", depth))
		sb.WriteString(p.ops[i].Base().name)
		if withCounts {
			fmt.Fprintf(&sb, " | Records produced: %d", p.consumed[i])
		}
		sb.WriteByte('\n')
		for _, c := range p.ops[i].Base().children {
			walk(c, depth+1)
		}
	}
	if p.root >= 0 {
		walk(p.root, 0)
	}
	return sb.String()
}
