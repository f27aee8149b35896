package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/domain"
)

// ErrRecordNotFound is returned when a live record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// RecordStore is the only write path to live records. Every mutation writes
// the row and exactly one audit entry within the same transaction; reads
// never bypass it.
//
// Insert takes the requested audit action as an explicit parameter threaded
// through the one call that performs the write — never ambient per-session
// state — so a concurrent or later insert can never inherit a RESTORE label.
// The capture hook validates it: anything other than RESTORE is recorded as
// INSERT.
type RecordStore interface {
	Insert(ctx context.Context, rec domain.Record, actorID *uuid.UUID, action domain.AuditAction) (domain.Record, error)
	Update(ctx context.Context, rec domain.Record, actorID *uuid.UUID) (domain.Record, error)
	Delete(ctx context.Context, entityType string, id uuid.UUID, actorID *uuid.UUID) error
	GetByID(ctx context.Context, entityType string, id uuid.UUID) (domain.Record, error)
}

// AuditLogStore reads the append-only audit log. BackfillRestoreSnapshot is
// the single sanctioned exception to append-only: one scoped update of the
// just-written RESTORE entry's before snapshot.
type AuditLogStore interface {
	ListByRecord(ctx context.Context, entityType string, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error)
	ListDeletes(ctx context.Context, entityType string, limit int) ([]domain.AuditEntry, error)
	LatestDelete(ctx context.Context, entityType string, recordID uuid.UUID) (domain.AuditEntry, error)
	BackfillRestoreSnapshot(ctx context.Context, entityType string, recordID uuid.UUID, actorID *uuid.UUID, before map[string]any) error
}

// EventPublisher receives committed audit entries for downstream consumers.
// Publishing is best-effort and happens strictly after commit.
type EventPublisher interface {
	Publish(ctx context.Context, entry domain.AuditEntry) error
}
