package trash

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/domain"
)

// Restore recreates a deleted record from its last pre-deletion snapshot.
//
// The attempt walks Requested → AuthorizationChecked → Inserted →
// HistoryBackfilled → Restored, with early exits mapped to the typed
// outcomes: domain.ErrNotFound, domain.ErrUnauthorized, or a
// domain.ConflictError. Two concurrent restores of the same record race on
// the re-insert; exactly one wins and the other observes
// Conflict(ALREADY_EXISTS) — that conflict is the arbitration mechanism, so
// no locking sits above it.
func (s *Service) Restore(ctx context.Context, entityType string, recordID uuid.UUID, callerID uuid.UUID) (domain.RestoreOutcome, error) {
	// Requested: find the most recent delete. Its before snapshot is both the
	// state to recreate and the authority we authorize against.
	deleteEntry, err := s.audit.LatestDelete(ctx, entityType, recordID)
	if err != nil {
		return domain.RestoreOutcome{}, err
	}

	// AuthorizationChecked: authorize purely from the recorded snapshot. The
	// live record is gone, so there is nothing else to authorize from, and an
	// unextractable owner means no one may restore it.
	field := s.cfg.OwnershipField(entityType)
	owner, ok := domain.OwnerFromSnapshot(deleteEntry.Before, field)
	if !ok || owner != callerID {
		return domain.RestoreOutcome{}, domain.ErrUnauthorized
	}

	// Inserted: re-insert from the snapshot. The RESTORE action is threaded
	// as an explicit per-call argument, never ambient state, so a concurrent
	// or subsequent insert can never inherit the label. A pre-existing row
	// surfaces as Conflict(ALREADY_EXISTS) rather than an overwrite.
	rec := domain.Record{
		ID:         recordID,
		EntityType: entityType,
		Properties: domain.CloneSnapshot(deleteEntry.Before),
	}
	actorID := callerID
	if _, err := s.records.Insert(ctx, rec, &actorID, domain.ActionRestore); err != nil {
		return domain.RestoreOutcome{}, err
	}

	// HistoryBackfilled: the capture hook just wrote a RESTORE entry that is,
	// mechanically, an insert — its before snapshot is empty. Fill it with
	// the pre-deletion snapshot so the restore event keeps a meaningful
	// before/after diff. This is the one sanctioned mutation of the log.
	if err := s.audit.BackfillRestoreSnapshot(ctx, entityType, recordID, &actorID, deleteEntry.Before); err != nil {
		// The record is live and correctly labeled; only the forensic before
		// snapshot is missing. Surface the failure instead of unwinding a
		// successful restore.
		log.WithFields(log.Fields{
			"entity_type": entityType,
			"record_id":   recordID,
		}).WithError(err).Error("restore back-fill failed")
		return domain.RestoreOutcome{}, fmt.Errorf("restored record %s but failed to back-fill history: %w", recordID, err)
	}

	return domain.RestoreOutcome{RecordID: recordID}, nil
}
