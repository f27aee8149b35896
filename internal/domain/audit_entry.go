package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction enumerates the change kinds recorded in the audit log.
type AuditAction string

const (
	ActionInsert  AuditAction = "INSERT"
	ActionUpdate  AuditAction = "UPDATE"
	ActionDelete  AuditAction = "DELETE"
	ActionRestore AuditAction = "RESTORE"
)

// Valid reports whether the action is one of the known audit actions.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete, ActionRestore:
		return true
	}
	return false
}

// AuditEntry is one immutable row describing a single mutation of a record.
//
// ActorID is never a foreign key: deleting an actor's own account must not
// block writing or keeping history. Snapshot presence follows the action:
// INSERT carries no before snapshot, DELETE carries no after snapshot, and a
// RESTORE entry's before snapshot is back-filled once, immediately after the
// restore insert, by the restore orchestrator. No other mutation of a stored
// entry exists anywhere in the system.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	RecordID   uuid.UUID      `json:"record_id"`
	Action     AuditAction    `json:"action"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
}

// VisibleTo reports whether the caller may see this entry. A caller matches
// when it is the recorded actor, or when it matches the ownership field
// extracted from either snapshot. Extraction is defensive: a malformed or
// missing value in a snapshot is treated as "no match", never as an error,
// so one garbage entry cannot poison a whole result set.
func (e AuditEntry) VisibleTo(callerID uuid.UUID, ownershipField string) bool {
	if callerID == uuid.Nil {
		return false
	}
	if e.ActorID != nil && *e.ActorID == callerID {
		return true
	}
	if owner, ok := OwnerFromSnapshot(e.Before, ownershipField); ok && owner == callerID {
		return true
	}
	if owner, ok := OwnerFromSnapshot(e.After, ownershipField); ok && owner == callerID {
		return true
	}
	return false
}
