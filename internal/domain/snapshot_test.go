package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestOwnerFromSnapshot(t *testing.T) {
	owner := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	got, ok := OwnerFromSnapshot(map[string]any{"owner": owner.String()}, "owner")
	if !ok || got != owner {
		t.Fatalf("expected owner %s, got %s (ok=%v)", owner, got, ok)
	}
}

func TestOwnerFromSnapshot_NestedPath(t *testing.T) {
	owner := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	snapshot := map[string]any{
		"metadata": map[string]any{
			"owner": "  " + owner.String() + "  ",
		},
	}

	got, ok := OwnerFromSnapshot(snapshot, "metadata.owner")
	if !ok || got != owner {
		t.Fatalf("expected owner %s from nested path, got %s (ok=%v)", owner, got, ok)
	}
}

func TestOwnerFromSnapshot_DefensiveExtraction(t *testing.T) {
	cases := map[string]struct {
		snapshot map[string]any
		field    string
	}{
		"nil snapshot":      {nil, "owner"},
		"missing field":     {map[string]any{"name": "x"}, "owner"},
		"empty field path":  {map[string]any{"owner": uuid.NewString()}, ""},
		"garbage value":     {map[string]any{"owner": "DROP TABLE records"}, "owner"},
		"non-string value":  {map[string]any{"owner": float64(42)}, "owner"},
		"nil uuid":          {map[string]any{"owner": uuid.Nil.String()}, "owner"},
		"path through leaf": {map[string]any{"owner": "abc"}, "owner.nested"},
	}

	for name, tc := range cases {
		if got, ok := OwnerFromSnapshot(tc.snapshot, tc.field); ok {
			t.Errorf("%s: expected no match, got %s", name, got)
		}
	}
}

func TestSnapshotsEqual(t *testing.T) {
	a := map[string]any{
		"name": "base",
		"metadata": map[string]any{
			"color": "red",
			"size":  float64(10),
		},
		"tags": []any{"alpha", "beta"},
	}
	b := map[string]any{
		"tags": []any{"alpha", "beta"},
		"metadata": map[string]any{
			"size":  float64(10),
			"color": "red",
		},
		"name": "base",
	}

	if !SnapshotsEqual(a, b) {
		t.Fatalf("expected snapshots to be equal regardless of key order")
	}

	b["metadata"].(map[string]any)["color"] = "blue"
	if SnapshotsEqual(a, b) {
		t.Fatalf("expected snapshots to differ on nested field change")
	}
}

func TestSnapshotsEqual_MissingField(t *testing.T) {
	a := map[string]any{"name": "x", "count": float64(1)}
	b := map[string]any{"name": "x"}

	if SnapshotsEqual(a, b) {
		t.Fatalf("expected snapshots with different field sets to differ")
	}
}

func TestAuditEntryVisibleTo(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	actor := uuid.New()

	entry := AuditEntry{
		Action: ActionDelete,
		Before: map[string]any{"owner": owner.String()},
	}

	if !entry.VisibleTo(owner, "owner") {
		t.Fatalf("expected delete entry visible to snapshot owner")
	}
	if entry.VisibleTo(stranger, "owner") {
		t.Fatalf("expected delete entry hidden from non-owner")
	}

	entry.ActorID = &actor
	if !entry.VisibleTo(actor, "owner") {
		t.Fatalf("expected entry visible to its actor")
	}

	if entry.VisibleTo(uuid.Nil, "owner") {
		t.Fatalf("expected entry hidden from nil caller")
	}
}
