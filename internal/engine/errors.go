package engine

import "fmt"

// ValidationError reports input that can never be accepted, independent of
// the document's current state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError reports a request that is well formed but not allowed from
// the document's current state, such as an out-of-graph transition or a
// duplicate acknowledgment.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string {
	return e.Reason
}
