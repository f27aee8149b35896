package domain

import (
	"time"

	"github.com/google/uuid"
)

// TombstoneState describes where a tombstone is in its delivery lifecycle.
type TombstoneState string

const (
	// TombstonePending: awaiting (re)delivery by the drain loop.
	TombstonePending TombstoneState = "PENDING"

	// TombstoneStuck: exhausted automatic retries; retained for manual
	// surfacing, never silently dropped.
	TombstoneStuck TombstoneState = "STUCK"
)

// Tombstone is a client-local, durable marker of a delete that has not yet
// been confirmed by the remote store. It is created in the same local
// transaction that removes the record, and destroyed only on confirmed
// remote deletion.
type Tombstone struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type"`
	RecordID   uuid.UUID `json:"record_id"`
	CreatedAt  time.Time `json:"created_at"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error,omitempty"`
}

// State derives the lifecycle state from the retry count. Stuck is not a
// stored column, so raising the ceiling retroactively re-qualifies stuck
// tombstones for automatic retry.
func (t Tombstone) State(maxRetries int) TombstoneState {
	if t.RetryCount > maxRetries {
		return TombstoneStuck
	}
	return TombstonePending
}
