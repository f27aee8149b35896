package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/capture"
	"github.com/rpattn/chronicle/internal/db"
	"github.com/rpattn/chronicle/internal/domain"
)

// Postgres error codes mapped to restore conflict kinds.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// recordRepository implements RecordStore over Postgres. All writes pass
// through the capture hook: the row mutation and its audit entry commit in
// one transaction, or neither does.
type recordRepository struct {
	conn      *db.Connection
	publisher EventPublisher
}

// NewRecordRepository creates a new record repository. The publisher is
// optional; pass nil to disable post-commit event publishing.
func NewRecordRepository(conn *db.Connection, publisher EventPublisher) RecordStore {
	return &recordRepository{conn: conn, publisher: publisher}
}

// Insert creates a live record. Callers pass the audit action they intend;
// the capture hook honours only RESTORE as an override and records anything
// else as INSERT.
func (r *recordRepository) Insert(ctx context.Context, rec domain.Record, actorID *uuid.UUID, action domain.AuditAction) (domain.Record, error) {
	if rec.ID == uuid.Nil {
		rec = domain.NewRecord(rec.EntityType, rec.Properties)
	}
	propertiesJSON, err := rec.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	entry := capture.ForInsert(rec, actorID, action)
	created := rec
	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO records (id, entity_type, properties)
			VALUES ($1, $2, $3)
			RETURNING created_at, updated_at`,
			rec.ID, rec.EntityType, propertiesJSON)
		if err := row.Scan(&created.CreatedAt, &created.UpdatedAt); err != nil {
			return mapWriteError(rec.EntityType, err)
		}
		return appendAuditEntry(ctx, tx, entry)
	})
	if err != nil {
		return domain.Record{}, err
	}

	r.publish(ctx, entry)
	return created, nil
}

// Update rewrites a record's properties. When the stored state equals the new
// state field by field, nothing is written and no entry is appended.
func (r *recordRepository) Update(ctx context.Context, rec domain.Record, actorID *uuid.UUID) (domain.Record, error) {
	propertiesJSON, err := rec.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	var entry domain.AuditEntry
	var changed bool
	updated := rec
	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		before, err := lockRecord(ctx, tx, rec.EntityType, rec.ID)
		if err != nil {
			return err
		}

		after := before.WithProperties(rec.Properties)
		entry, changed = capture.ForUpdate(before, after, actorID)
		if !changed {
			updated = before
			return nil
		}

		row := tx.QueryRow(ctx, `
			UPDATE records SET properties = $1, updated_at = NOW()
			WHERE entity_type = $2 AND id = $3
			RETURNING created_at, updated_at`,
			propertiesJSON, rec.EntityType, rec.ID)
		updated = after
		if err := row.Scan(&updated.CreatedAt, &updated.UpdatedAt); err != nil {
			return mapWriteError(rec.EntityType, err)
		}
		return appendAuditEntry(ctx, tx, entry)
	})
	if err != nil {
		return domain.Record{}, err
	}

	if changed {
		r.publish(ctx, entry)
	}
	return updated, nil
}

// Delete removes a record, capturing its last state in the DELETE entry.
func (r *recordRepository) Delete(ctx context.Context, entityType string, id uuid.UUID, actorID *uuid.UUID) error {
	var entry domain.AuditEntry
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		last, err := lockRecord(ctx, tx, entityType, id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM records WHERE entity_type = $1 AND id = $2`, entityType, id); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		entry = capture.ForDelete(last, actorID)
		return appendAuditEntry(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	r.publish(ctx, entry)
	return nil
}

// GetByID retrieves a live record.
func (r *recordRepository) GetByID(ctx context.Context, entityType string, id uuid.UUID) (domain.Record, error) {
	row := r.conn.Pool.QueryRow(ctx, `
		SELECT id, entity_type, properties, created_at, updated_at
		FROM records WHERE entity_type = $1 AND id = $2`,
		entityType, id)
	return scanRecord(row)
}

func lockRecord(ctx context.Context, tx pgx.Tx, entityType string, id uuid.UUID) (domain.Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, entity_type, properties, created_at, updated_at
		FROM records WHERE entity_type = $1 AND id = $2
		FOR UPDATE`,
		entityType, id)
	return scanRecord(row)
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var rec domain.Record
	var propertiesJSON []byte
	if err := row.Scan(&rec.ID, &rec.EntityType, &propertiesJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, ErrRecordNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to get record: %w", err)
	}

	properties, err := domain.FromJSONBProperties(propertiesJSON)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode properties for record %s: %w", rec.ID, err)
	}
	rec.Properties = properties
	return rec, nil
}

// mapWriteError classifies Postgres constraint violations into the restore
// conflict taxonomy. A primary-key collision means the record is already
// live; other unique constraints are natural-key conflicts; foreign-key
// violations mean the snapshot references something since deleted.
func mapWriteError(entityType string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to write record: %w", err)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		kind := domain.ConflictUnique
		if pgErr.ConstraintName == "records_pkey" {
			kind = domain.ConflictAlreadyExists
		}
		return &domain.ConflictError{Kind: kind, EntityType: entityType, Constraint: pgErr.ConstraintName}
	case pgForeignKeyViolation:
		return &domain.ConflictError{Kind: domain.ConflictMissingReference, EntityType: entityType, Constraint: pgErr.ConstraintName}
	default:
		return fmt.Errorf("failed to write record: %w", err)
	}
}

// publish hands the committed entry to the configured publisher. Failures are
// logged and swallowed: the log row is the source of truth, the event stream
// is not.
func (r *recordRepository) publish(ctx context.Context, entry domain.AuditEntry) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, entry); err != nil {
		log.WithFields(log.Fields{
			"entity_type": entry.EntityType,
			"record_id":   entry.RecordID,
			"action":      entry.Action,
		}).WithError(err).Warn("failed to publish audit event")
	}
}
