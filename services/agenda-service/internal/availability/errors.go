package availability

import (
	"errors"
	"fmt"
)

// ErrSlotConflict is returned by the write path when the requested slot
// overlaps a scheduled appointment at commit time.
var ErrSlotConflict = errors.New("slot already taken")

// ValidationError marks caller input that can never resolve, regardless of
// calendar state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError marks a reference to an entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// UpstreamError wraps a dependency failure (database, broker) so handlers can
// distinguish it from caller mistakes.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
