package capture

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/domain"
)

func TestResolveInsertAction(t *testing.T) {
	if got := ResolveInsertAction(domain.ActionRestore); got != domain.ActionRestore {
		t.Fatalf("expected RESTORE override to be honoured, got %s", got)
	}
	if got := ResolveInsertAction(domain.ActionInsert); got != domain.ActionInsert {
		t.Fatalf("expected INSERT to resolve to INSERT, got %s", got)
	}

	// A stray override left by unrelated code must never mislabel history.
	for _, requested := range []domain.AuditAction{domain.ActionUpdate, domain.ActionDelete, domain.AuditAction("BOGUS"), domain.AuditAction("")} {
		if got := ResolveInsertAction(requested); got != domain.ActionInsert {
			t.Errorf("expected %q to fall back to INSERT, got %s", requested, got)
		}
	}
}

func TestForInsert(t *testing.T) {
	actorID := uuid.New()
	rec := domain.NewRecord("note", map[string]any{"title": "hello"})

	entry := ForInsert(rec, &actorID, domain.ActionInsert)

	if entry.Action != domain.ActionInsert {
		t.Fatalf("expected INSERT action, got %s", entry.Action)
	}
	if entry.Before != nil {
		t.Fatalf("insert entry must not carry a before snapshot, got %v", entry.Before)
	}
	if entry.After["title"] != "hello" {
		t.Fatalf("after snapshot missing new state: %v", entry.After)
	}
	if entry.RecordID != rec.ID || entry.EntityType != "note" {
		t.Fatalf("entry not keyed to record: %+v", entry)
	}
	if entry.ActorID == nil || *entry.ActorID != actorID {
		t.Fatalf("expected actor %s, got %v", actorID, entry.ActorID)
	}
}

func TestForInsert_RestoreOverrideLeavesBeforeEmpty(t *testing.T) {
	rec := domain.NewRecord("note", map[string]any{"title": "hello"})

	entry := ForInsert(rec, nil, domain.ActionRestore)

	if entry.Action != domain.ActionRestore {
		t.Fatalf("expected RESTORE action, got %s", entry.Action)
	}
	// The before snapshot is back-filled by the restore orchestrator, not
	// written here.
	if entry.Before != nil {
		t.Fatalf("restore entry must start with an empty before snapshot, got %v", entry.Before)
	}
	if entry.ActorID != nil {
		t.Fatalf("expected system-originated entry to carry no actor")
	}
}

func TestForUpdate_NoOpSuppressed(t *testing.T) {
	before := domain.NewRecord("note", map[string]any{"title": "same", "meta": map[string]any{"rev": float64(1)}})
	after := before.WithProperties(map[string]any{"title": "same", "meta": map[string]any{"rev": float64(1)}})

	if _, changed := ForUpdate(before, after, nil); changed {
		t.Fatalf("expected field-identical update to be suppressed")
	}
}

func TestForUpdate_RecordsBothSnapshots(t *testing.T) {
	before := domain.NewRecord("note", map[string]any{"title": "old"})
	after := before.WithProperties(map[string]any{"title": "new"})

	entry, changed := ForUpdate(before, after, nil)
	if !changed {
		t.Fatalf("expected changed update to produce an entry")
	}
	if entry.Action != domain.ActionUpdate {
		t.Fatalf("expected UPDATE action, got %s", entry.Action)
	}
	if entry.Before["title"] != "old" || entry.After["title"] != "new" {
		t.Fatalf("expected both snapshots recorded, got before=%v after=%v", entry.Before, entry.After)
	}
}

func TestForDelete(t *testing.T) {
	last := domain.NewRecord("note", map[string]any{"title": "bye"})

	entry := ForDelete(last, nil)

	if entry.Action != domain.ActionDelete {
		t.Fatalf("expected DELETE action, got %s", entry.Action)
	}
	if entry.After != nil {
		t.Fatalf("delete entry must not carry an after snapshot, got %v", entry.After)
	}
	if entry.Before["title"] != "bye" {
		t.Fatalf("before snapshot missing last state: %v", entry.Before)
	}
}

func TestForDelete_SnapshotIsCopy(t *testing.T) {
	last := domain.NewRecord("note", map[string]any{"title": "bye"})
	entry := ForDelete(last, nil)

	last.Properties["title"] = "mutated"
	if entry.Before["title"] != "bye" {
		t.Fatalf("captured snapshot must not alias the live record")
	}
}
