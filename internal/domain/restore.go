package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Typed outcomes of a restore attempt. Callers render exact messages from
// these, so restore failures are never collapsed into a generic error.
var (
	// ErrNotFound means no delete entry exists for the requested record.
	ErrNotFound = errors.New("no delete entry found for record")

	// ErrUnauthorized means the caller does not match the ownership recorded
	// in the pre-deletion snapshot.
	ErrUnauthorized = errors.New("caller does not match recorded ownership")
)

// ConflictKind classifies restore collisions.
type ConflictKind string

const (
	// ConflictAlreadyExists: the record is already live. Typically a
	// concurrent restore won the re-insert race; this conflict is the
	// intended arbitration for duplicate restore delivery.
	ConflictAlreadyExists ConflictKind = "ALREADY_EXISTS"

	// ConflictUnique: a natural key captured in the snapshot is now used by
	// another record.
	ConflictUnique ConflictKind = "UNIQUE_CONFLICT"

	// ConflictMissingReference: the restored record points at something that
	// has since been deleted.
	ConflictMissingReference ConflictKind = "MISSING_REFERENCE"
)

// ConflictError reports a restore collision with enough detail for the caller
// to render a precise message.
type ConflictError struct {
	Kind       ConflictKind
	EntityType string
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("restore conflict %s on %s (%s)", e.Kind, e.EntityType, e.Constraint)
	}
	return fmt.Sprintf("restore conflict %s on %s", e.Kind, e.EntityType)
}

// AsConflict unwraps err into a ConflictError, if it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// RestoreOutcome is the result of one successful restore attempt.
type RestoreOutcome struct {
	RecordID uuid.UUID `json:"record_id"`
}
