package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// ValidationError rejects a single raw record during ingestion. It names the
// offending field so callers can surface it; it never aborts the batch.
type ValidationError struct {
	NameID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert %q: field %s: %s", e.NameID, e.Field, e.Reason)
}

// InvalidTransitionError rejects a status change, including the self-transition
// no-op case.
type InvalidTransitionError struct {
	AlertID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("alert %s: transition to %q is a no-op", e.AlertID, e.To)
	}
	return fmt.Sprintf("alert %s: transition %q -> %q not allowed", e.AlertID, e.From, e.To)
}

// ConflictTimeoutError reports that a transition could not acquire the
// per-alert serialization scope within its bounded wait.
type ConflictTimeoutError struct {
	AlertID string
}

func (e *ConflictTimeoutError) Error() string {
	return fmt.Sprintf("alert %s: timed out waiting for a concurrent write to finish", e.AlertID)
}
