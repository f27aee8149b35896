package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/config"
	"github.com/rpattn/chronicle/internal/domain"
)

type stubAuditLog struct {
	byRecord []domain.AuditEntry
	limit    int
}

func (s *stubAuditLog) ListByRecord(_ context.Context, _ string, _ uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	s.limit = limit
	return s.byRecord, nil
}

func (s *stubAuditLog) ListDeletes(context.Context, string, int) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (s *stubAuditLog) LatestDelete(context.Context, string, uuid.UUID) (domain.AuditEntry, error) {
	return domain.AuditEntry{}, domain.ErrNotFound
}

func (s *stubAuditLog) BackfillRestoreSnapshot(context.Context, string, uuid.UUID, *uuid.UUID, map[string]any) error {
	return nil
}

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{
		Ownership:    map[string]string{"note": "owner"},
		DefaultLimit: 50,
		MaxLimit:     200,
	}
}

func TestGetEntityHistory_AuthorizesFromSnapshotNotLiveState(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	recordID := uuid.New()

	// The record is deleted: only the log knows who owned it.
	deleteEntry := domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionDelete,
		OccurredAt: time.Now(),
		Before:     map[string]any{"owner": owner.String(), "title": "gone"},
	}
	audit := &stubAuditLog{byRecord: []domain.AuditEntry{deleteEntry}}
	service := NewService(audit, testAuditConfig())

	entries, err := service.GetEntityHistory(context.Background(), "note", recordID, 10, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != deleteEntry.ID {
		t.Fatalf("expected owner to see the delete entry, got %v", entries)
	}

	entries, err = service.GetEntityHistory(context.Background(), "note", recordID, 10, stranger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected non-owner to see nothing, got %v", entries)
	}
}

func TestGetEntityHistory_GarbageOwnershipFieldExcludedNotFatal(t *testing.T) {
	caller := uuid.New()
	recordID := uuid.New()

	garbage := domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionUpdate,
		OccurredAt: time.Now(),
		Before:     map[string]any{"owner": "not-an-identifier"},
		After:      map[string]any{"owner": 12345},
	}
	wellFormed := domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionInsert,
		OccurredAt: time.Now().Add(-time.Minute),
		After:      map[string]any{"owner": caller.String()},
	}
	audit := &stubAuditLog{byRecord: []domain.AuditEntry{garbage, wellFormed}}
	service := NewService(audit, testAuditConfig())

	entries, err := service.GetEntityHistory(context.Background(), "note", recordID, 10, caller)
	if err != nil {
		t.Fatalf("query must not fail on malformed snapshot fields: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != wellFormed.ID {
		t.Fatalf("expected only the well-formed entry, got %v", entries)
	}
}

func TestGetEntityHistory_ActorSeesOwnEntries(t *testing.T) {
	actor := uuid.New()
	recordID := uuid.New()

	entry := domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionUpdate,
		ActorID:    &actor,
		OccurredAt: time.Now(),
		Before:     map[string]any{"owner": uuid.NewString()},
		After:      map[string]any{"owner": uuid.NewString()},
	}
	audit := &stubAuditLog{byRecord: []domain.AuditEntry{entry}}
	service := NewService(audit, testAuditConfig())

	entries, err := service.GetEntityHistory(context.Background(), "note", recordID, 10, actor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected actor to see their own entry, got %v", entries)
	}
}

func TestGetEntityHistory_LimitClamping(t *testing.T) {
	caller := uuid.New()
	recordID := uuid.New()

	entries := make([]domain.AuditEntry, 0, 5)
	for i := 0; i < 5; i++ {
		entries = append(entries, domain.AuditEntry{
			ID:         uuid.New(),
			EntityType: "note",
			RecordID:   recordID,
			Action:     domain.ActionUpdate,
			OccurredAt: time.Now().Add(-time.Duration(i) * time.Minute),
			After:      map[string]any{"owner": caller.String()},
		})
	}
	audit := &stubAuditLog{byRecord: entries}
	service := NewService(audit, testAuditConfig())

	got, err := service.GetEntityHistory(context.Background(), "note", recordID, 2, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2 entries, got %d", len(got))
	}
	if audit.limit != testAuditConfig().MaxLimit {
		t.Fatalf("expected candidate fetch capped at max limit, got %d", audit.limit)
	}

	// Zero limit falls back to the configured default.
	got, err = service.GetEntityHistory(context.Background(), "note", recordID, 0, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected all 5 entries under default limit, got %d", len(got))
	}
}
