package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/chronicle/internal/domain"
)

const auditEntryColumns = "id, entity_type, record_id, action, actor_id, occurred_at, before_snapshot, after_snapshot"

// auditLogRepository implements AuditLogStore over Postgres.
type auditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(pool *pgxpool.Pool) AuditLogStore {
	return &auditLogRepository{pool: pool}
}

// ListByRecord returns a record's entries, newest first. The log is keyed by
// (entity_type, record_id), so entries remain queryable after the live row
// is gone.
func (r *auditLogRepository) ListByRecord(ctx context.Context, entityType string, recordID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE entity_type = $1 AND record_id = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`, auditEntryColumns),
		entityType, recordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ListDeletes returns the newest DELETE entries for one entity type, capped
// at limit. The cap bounds per-source work for the global recently-deleted
// merge.
func (r *auditLogRepository) ListDeletes(ctx context.Context, entityType string, limit int) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE entity_type = $1 AND action = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`, auditEntryColumns),
		entityType, domain.ActionDelete, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delete entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// LatestDelete returns the most recent DELETE entry for a record, or
// domain.ErrNotFound when the record was never deleted.
func (r *auditLogRepository) LatestDelete(ctx context.Context, entityType string, recordID uuid.UUID) (domain.AuditEntry, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_entries
		WHERE entity_type = $1 AND record_id = $2 AND action = $3
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1`, auditEntryColumns),
		entityType, recordID, domain.ActionDelete)

	entry, err := scanAuditEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AuditEntry{}, domain.ErrNotFound
		}
		return domain.AuditEntry{}, fmt.Errorf("failed to load latest delete entry: %w", err)
	}
	return entry, nil
}

// BackfillRestoreSnapshot performs the single sanctioned update of the audit
// log: it locates the newest RESTORE entry for the record written by the
// given actor whose before snapshot is still empty, and fills it with the
// pre-deletion snapshot. The subquery scoping keeps every other entry
// untouchable through this path.
func (r *auditLogRepository) BackfillRestoreSnapshot(ctx context.Context, entityType string, recordID uuid.UUID, actorID *uuid.UUID, before map[string]any) error {
	beforeJSON, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("failed to marshal pre-deletion snapshot: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE audit_entries SET before_snapshot = $1
		WHERE id = (
			SELECT id FROM audit_entries
			WHERE entity_type = $2 AND record_id = $3 AND action = $4
			  AND actor_id IS NOT DISTINCT FROM $5
			  AND before_snapshot IS NULL
			ORDER BY occurred_at DESC, id DESC
			LIMIT 1
		)`,
		beforeJSON, entityType, recordID, domain.ActionRestore, actorID)
	if err != nil {
		return fmt.Errorf("failed to back-fill restore snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no restore entry found to back-fill for record %s", recordID)
	}
	return nil
}

// appendAuditEntry writes one entry within the caller's transaction. It is
// the only insert path into audit_entries.
func appendAuditEntry(ctx context.Context, tx pgx.Tx, entry domain.AuditEntry) error {
	beforeJSON, afterJSON, err := marshalSnapshots(entry)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (id, entity_type, record_id, action, actor_id, occurred_at, before_snapshot, after_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.EntityType, entry.RecordID, entry.Action, entry.ActorID, entry.OccurredAt, beforeJSON, afterJSON)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func marshalSnapshots(entry domain.AuditEntry) (json.RawMessage, json.RawMessage, error) {
	var beforeJSON, afterJSON json.RawMessage
	if entry.Before != nil {
		encoded, err := json.Marshal(entry.Before)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal before snapshot: %w", err)
		}
		beforeJSON = encoded
	}
	if entry.After != nil {
		encoded, err := json.Marshal(entry.After)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal after snapshot: %w", err)
		}
		afterJSON = encoded
	}
	return beforeJSON, afterJSON, nil
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	entries := []domain.AuditEntry{}
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit entries: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.Row) (domain.AuditEntry, error) {
	var (
		entry      domain.AuditEntry
		action     string
		occurredAt time.Time
		beforeJSON []byte
		afterJSON  []byte
	)
	if err := row.Scan(&entry.ID, &entry.EntityType, &entry.RecordID, &action, &entry.ActorID, &occurredAt, &beforeJSON, &afterJSON); err != nil {
		return domain.AuditEntry{}, err
	}
	entry.Action = domain.AuditAction(action)
	entry.OccurredAt = occurredAt

	if len(beforeJSON) > 0 {
		before, err := domain.FromJSONBProperties(beforeJSON)
		if err != nil {
			return domain.AuditEntry{}, fmt.Errorf("failed to decode before snapshot for entry %s: %w", entry.ID, err)
		}
		entry.Before = before
	}
	if len(afterJSON) > 0 {
		after, err := domain.FromJSONBProperties(afterJSON)
		if err != nil {
			return domain.AuditEntry{}, fmt.Errorf("failed to decode after snapshot for entry %s: %w", entry.ID, err)
		}
		entry.After = after
	}
	return entry, nil
}
