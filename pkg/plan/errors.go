package plan

import "fmt"

// RuntimeError is a query runtime exception: it unwinds the current
// query, tears down operator state and discards any staged mutations,
// and is reported to the client as a typed error. It is distinct from
// storage errors (recovered internally) and fatal invariant violations
// (which panic).
type RuntimeError struct {
	msg string
}

func (e *RuntimeError) Error() string { return e.msg }

// NewRuntimeError formats a runtime exception.
func NewRuntimeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{msg: fmt.Sprintf(format, args...)}
}

// Shared runtime exceptions.
var (
	// ErrCancelled reports cooperative query cancellation.
	ErrCancelled = &RuntimeError{msg: "query cancelled"}
	// ErrTimeout reports that the query exceeded its deadline.
	ErrTimeout = &RuntimeError{msg: "query timed out"}
)

// errNonNegativeInteger is raised by Skip and Limit when their
// expression does not evaluate to a non-negative integer.
func errNonNegativeInteger(op string) *RuntimeError {
	return NewRuntimeError("%s operates only on non-negative integers", op)
}
