// Package capture builds the single audit entry that accompanies every
// mutation of a live record. The storage layer invokes it inside the same
// transaction as the row write, so "exactly one entry per mutation" is
// checkable by inspection: there is one call site per mutation kind in
// repository.RecordRepository and nothing else appends to the log.
package capture

import (
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/domain"
)

// ResolveInsertAction validates a requested override for an insert-shaped
// write. Only INSERT and RESTORE are legal; anything else falls back to
// INSERT, so a stray override from unrelated code can never mislabel history.
func ResolveInsertAction(requested domain.AuditAction) domain.AuditAction {
	if requested == domain.ActionRestore {
		return domain.ActionRestore
	}
	return domain.ActionInsert
}

// ForInsert shapes the entry for a newly inserted record. The before snapshot
// is absent; a RESTORE entry's before snapshot is back-filled afterwards by
// the restore orchestrator, never written here.
func ForInsert(rec domain.Record, actorID *uuid.UUID, requested domain.AuditAction) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: rec.EntityType,
		RecordID:   rec.ID,
		Action:     ResolveInsertAction(requested),
		ActorID:    actorID,
		OccurredAt: time.Now(),
		After:      rec.Snapshot(),
	}
}

// ForUpdate shapes the entry for an update. It returns ok=false when the
// before and after states are identical field by field; no-op writes must
// not spam the log.
func ForUpdate(before, after domain.Record, actorID *uuid.UUID) (domain.AuditEntry, bool) {
	if domain.SnapshotsEqual(before.Properties, after.Properties) {
		return domain.AuditEntry{}, false
	}
	return domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: after.EntityType,
		RecordID:   after.ID,
		Action:     domain.ActionUpdate,
		ActorID:    actorID,
		OccurredAt: time.Now(),
		Before:     before.Snapshot(),
		After:      after.Snapshot(),
	}, true
}

// ForDelete shapes the entry for a deletion, capturing the last live state.
func ForDelete(last domain.Record, actorID *uuid.UUID) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: last.EntityType,
		RecordID:   last.ID,
		Action:     domain.ActionDelete,
		ActorID:    actorID,
		OccurredAt: time.Now(),
		Before:     last.Snapshot(),
	}
}
