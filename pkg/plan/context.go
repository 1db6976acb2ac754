package plan

import (
	"sync/atomic"
	"time"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/graph"
)

// Context carries per-query state: the graph handle, query parameters, a
// cancellation flag and an optional deadline. Every operator receives it
// through its plan; there are no hidden thread-locals.
type Context struct {
	Graph  *graph.Graph
	Params map[string]datatypes.Value

	cancelled atomic.Bool
	deadline  time.Time
}

// NewContext returns a query context for g.
func NewContext(g *graph.Graph, params map[string]datatypes.Value) *Context {
	if params == nil {
		params = make(map[string]datatypes.Value)
	}
	return &Context{Graph: g, Params: params}
}

// SetDeadline arms the query timeout.
func (c *Context) SetDeadline(t time.Time) { c.deadline = t }

// Cancel flags the query for teardown; operators observe it at every
// consume entry and propagate exhaustion upward.
func (c *Context) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether the query was cancelled or timed out.
func (c *Context) Cancelled() bool {
	if c.cancelled.Load() {
		return true
	}
	if !c.deadline.IsZero() && time.Now().After(c.deadline) {
		return true
	}
	return false
}

// Param resolves a query parameter.
func (c *Context) Param(name string) (datatypes.Value, bool) {
	v, ok := c.Params[name]
	return v, ok
}
