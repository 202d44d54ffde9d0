/*
errors.go - Error taxonomy for the reconciliation engine

ERROR CATEGORIES:
  1. Parse errors      - statement file yielded nothing usable
  2. Import errors     - the store rejected a batch insert
  3. Transition errors - a line was not in the required starting state
  4. Store errors      - any remote-call failure; retry by resubmission

Batch operations stop at the first failing line and report how many
preceding lines succeeded; earlier lines are NOT rolled back. Callers
re-query and retry the remainder.
*/
package recon

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a statement file produced zero usable
	// records. The user must be told the file is unreadable or empty.
	ErrParse = errors.New("statement produced no usable records")

	// ErrInvalidTransition is returned when a line is not in the
	// starting status an operation requires.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLineNotFound is returned when a referenced statement line
	// does not exist.
	ErrLineNotFound = errors.New("statement line not found")

	// ErrAccountNotFound is returned when a referenced account does
	// not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoOrganization is returned when the acting user has no
	// organization membership to stamp on imported lines.
	ErrNoOrganization = errors.New("user has no organization")
)

// ImportError wraps a store failure that aborted an import batch.
// Nothing from the failing insert call was committed.
type ImportError struct {
	AccountID string
	Err       error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import into account %s failed: %v", e.AccountID, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// InvalidTransitionError reports the offending line and the status it
// was actually in.
type InvalidTransitionError struct {
	LineID   string
	Status   LineStatus
	Required LineStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("line %s is %s, operation requires %s", e.LineID, e.Status, e.Required)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// BatchError reports a state-transition batch that stopped mid-way.
// Succeeded lines stay applied; the caller should re-query and retry
// just the remainder.
type BatchError struct {
	Op        string // "reconcile", "unreconcile", "post", "discard"
	Succeeded int
	LineID    string // the line whose sub-operation failed
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s stopped at line %s after %d succeeded: %v",
		e.Op, e.LineID, e.Succeeded, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsClientError reports whether the failure is the caller's fault
// (bad input or precondition) rather than a store problem.
func IsClientError(err error) bool {
	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether the failure refers to a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrNoOrganization)
}
