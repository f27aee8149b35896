// Package tombstone keeps client-local delete intents durable until the
// remote store confirms them. The store is a single SQLite file so a delete
// and its tombstone commit or roll back together, and the queue survives
// process restarts.
package tombstone

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rpattn/chronicle/internal/domain"
)

// Store provides durable local records and their tombstones.
type Store struct {
	db *sql.DB
}

// Open creates or opens the client store at the given path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenMemory creates an in-memory store (useful for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory store: %w", err)
	}
	// A single connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS local_records (
    id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
    PRIMARY KEY(entity_type, id)
);

CREATE TABLE IF NOT EXISTS tombstones (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    record_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT
);

CREATE INDEX IF NOT EXISTS idx_tombstones_created ON tombstones(created_at);
`

// PutLocalRecord upserts a locally mirrored record. The sync engine that
// fills this table is an external collaborator; the store only needs the row
// present so a delete has something to remove atomically.
func (s *Store) PutLocalRecord(ctx context.Context, rec domain.Record) error {
	propertiesJSON, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO local_records (id, entity_type, properties, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(entity_type, id) DO UPDATE SET properties = excluded.properties, updated_at = excluded.updated_at`,
		rec.ID.String(), rec.EntityType, string(propertiesJSON))
	if err != nil {
		return fmt.Errorf("upserting local record: %w", err)
	}
	return nil
}

// DeleteLocalRecord removes a local record and enqueues its tombstone in one
// transaction: both succeed or both roll back. No record disappears without a
// tracked intent, and no intent exists for a record that was not removed.
func (s *Store) DeleteLocalRecord(ctx context.Context, entityType string, recordID uuid.UUID) (domain.Tombstone, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tombstone{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM local_records WHERE entity_type = ? AND id = ?`,
		entityType, recordID.String())
	if err != nil {
		return domain.Tombstone{}, fmt.Errorf("removing local record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Tombstone{}, fmt.Errorf("checking removal: %w", err)
	}
	if affected == 0 {
		return domain.Tombstone{}, fmt.Errorf("local record %s/%s: %w", entityType, recordID, domain.ErrNotFound)
	}

	t := domain.Tombstone{
		ID:         uuid.New(),
		EntityType: entityType,
		RecordID:   recordID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tombstones (id, entity_type, record_id, created_at)
		VALUES (?, ?, ?, ?)`,
		t.ID.String(), t.EntityType, t.RecordID.String(), t.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return domain.Tombstone{}, fmt.Errorf("enqueueing tombstone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Tombstone{}, fmt.Errorf("committing delete: %w", err)
	}
	return t, nil
}

// ListPending returns tombstones still eligible for automatic retry, oldest
// first so delete ordering is preserved for related records.
func (s *Store) ListPending(ctx context.Context, maxRetries int) ([]domain.Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, record_id, created_at, retry_count, last_error
		FROM tombstones
		WHERE retry_count <= ?
		ORDER BY created_at ASC, id ASC`,
		maxRetries)
	if err != nil {
		return nil, fmt.Errorf("listing pending tombstones: %w", err)
	}
	defer rows.Close()
	return scanTombstones(rows)
}

// ListStuck returns tombstones past the retry ceiling, retained for manual
// surfacing.
func (s *Store) ListStuck(ctx context.Context, maxRetries int) ([]domain.Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, record_id, created_at, retry_count, last_error
		FROM tombstones
		WHERE retry_count > ?
		ORDER BY created_at ASC, id ASC`,
		maxRetries)
	if err != nil {
		return nil, fmt.Errorf("listing stuck tombstones: %w", err)
	}
	defer rows.Close()
	return scanTombstones(rows)
}

// Remove destroys a tombstone after its delete was confirmed remotely.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tombstones WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("removing tombstone: %w", err)
	}
	return nil
}

// RecordFailure increments the retry count and stores the delivery error in
// one statement, so an interrupted drain can never leave a half-updated row.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, deliveryErr string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE tombstones SET retry_count = retry_count + 1, last_error = ?
		WHERE id = ?`,
		deliveryErr, id.String()); err != nil {
		return fmt.Errorf("recording tombstone failure: %w", err)
	}
	return nil
}

func scanTombstones(rows *sql.Rows) ([]domain.Tombstone, error) {
	tombstones := []domain.Tombstone{}
	for rows.Next() {
		var (
			t         domain.Tombstone
			id        string
			recordID  string
			createdAt string
			lastError sql.NullString
		)
		if err := rows.Scan(&id, &t.EntityType, &recordID, &createdAt, &t.RetryCount, &lastError); err != nil {
			return nil, fmt.Errorf("scanning tombstone: %w", err)
		}
		parsedID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing tombstone id %q: %w", id, err)
		}
		parsedRecordID, err := uuid.Parse(recordID)
		if err != nil {
			return nil, fmt.Errorf("parsing tombstone record id %q: %w", recordID, err)
		}
		t.ID = parsedID
		t.RecordID = parsedRecordID
		parsedCreatedAt, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			parsedCreatedAt, err = time.Parse("2006-01-02 15:04:05", createdAt)
		}
		if err != nil {
			// A zero CreatedAt would silently reorder the queue.
			return nil, fmt.Errorf("parsing tombstone created_at %q: %w", createdAt, err)
		}
		t.CreatedAt = parsedCreatedAt
		if lastError.Valid {
			value := lastError.String
			t.LastError = &value
		}
		tombstones = append(tombstones, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading tombstones: %w", err)
	}
	return tombstones, nil
}
