package tombstone

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/domain"
)

// ErrRemoteGone signals that the remote record is already absent. The drain
// loop treats it as delivered: a prior attempt may have succeeded while its
// confirmation was lost, and retrying forever would pin local and remote
// state apart.
var ErrRemoteGone = errors.New("remote record already absent")

// RemoteDeleter issues the remote delete for a tombstone. Implementations
// return ErrRemoteGone when the record no longer exists remotely.
type RemoteDeleter interface {
	DeleteRecord(ctx context.Context, entityType string, recordID uuid.UUID) error
}

// Drainer is the single logical delivery worker for one client's queue.
// Multiple trigger sources (startup, enqueue, reconnect) coalesce into one
// pending re-run instead of overlapping drains.
type Drainer struct {
	store      *Store
	remote     RemoteDeleter
	maxRetries int
	inflight   *InFlightSet
	kick       chan struct{}
}

// NewDrainer creates a drainer over the given store and remote.
func NewDrainer(store *Store, remote RemoteDeleter, maxRetries int, inflight *InFlightSet) *Drainer {
	if inflight == nil {
		inflight = NewInFlightSet()
	}
	return &Drainer{
		store:      store,
		remote:     remote,
		maxRetries: maxRetries,
		inflight:   inflight,
		// Buffer of one: a kick during an active drain is remembered exactly
		// once, never queued unboundedly.
		kick: make(chan struct{}, 1),
	}
}

// Kick requests a drain pass. Safe from any goroutine; requests arriving
// while a drain runs coalesce into a single follow-up pass.
func (d *Drainer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Enqueue removes the local record, creates its tombstone atomically, and
// kicks the drain.
func (d *Drainer) Enqueue(ctx context.Context, entityType string, recordID uuid.UUID) error {
	if _, err := d.store.DeleteLocalRecord(ctx, entityType, recordID); err != nil {
		return err
	}
	d.Kick()
	return nil
}

// Run drains the queue until ctx is cancelled. The first pass runs
// immediately to flush anything left over from a prior process.
func (d *Drainer) Run(ctx context.Context) error {
	for {
		if err := d.drainOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("drain pass aborted")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.kick:
		}
	}
}

// drainOnce processes pending tombstones oldest-first. Each item settles
// independently: delivery failure is recorded on that tombstone alone and the
// pass moves on, so partial progress never corrupts later items.
func (d *Drainer) drainOnce(ctx context.Context) error {
	pending, err := d.store.ListPending(ctx, d.maxRetries)
	if err != nil {
		return fmt.Errorf("failed to list pending tombstones: %w", err)
	}

	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.deliver(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *Drainer) deliver(ctx context.Context, t domain.Tombstone) error {
	release := d.inflight.Track(t.RecordID)
	defer release()

	err := d.remote.DeleteRecord(ctx, t.EntityType, t.RecordID)
	switch {
	case err == nil, errors.Is(err, ErrRemoteGone):
		if err := d.store.Remove(ctx, t.ID); err != nil {
			return fmt.Errorf("failed to remove delivered tombstone %s: %w", t.ID, err)
		}
		log.WithFields(log.Fields{
			"entity_type": t.EntityType,
			"record_id":   t.RecordID,
		}).Debug("tombstone delivered")
		return nil
	case ctx.Err() != nil:
		// Interrupted mid-item: leave the tombstone untouched for the next
		// run rather than counting the cancellation as a delivery failure.
		return ctx.Err()
	default:
		if recordErr := d.store.RecordFailure(ctx, t.ID, err.Error()); recordErr != nil {
			return fmt.Errorf("failed to record tombstone failure for %s: %w", t.ID, recordErr)
		}
		if t.RetryCount+1 > d.maxRetries {
			log.WithFields(log.Fields{
				"entity_type": t.EntityType,
				"record_id":   t.RecordID,
				"retries":     t.RetryCount + 1,
			}).WithError(err).Error("tombstone stuck after retry ceiling, awaiting manual resolution")
		} else {
			log.WithFields(log.Fields{
				"entity_type": t.EntityType,
				"record_id":   t.RecordID,
				"retries":     t.RetryCount + 1,
			}).WithError(err).Warn("tombstone delivery failed, will retry")
		}
		return nil
	}
}
