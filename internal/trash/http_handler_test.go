package trash

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/auth"
	"github.com/rpattn/chronicle/internal/domain"
)

func restoreRequest(t *testing.T, entityType string, recordID uuid.UUID, caller *uuid.UUID) *http.Request {
	t.Helper()
	body := `{"entityType":"` + entityType + `","recordId":"` + recordID.String() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/trash/restore", strings.NewReader(body))
	if caller != nil {
		req = req.WithContext(auth.ContextWithActorID(req.Context(), *caller))
	}
	return req
}

func TestRestoreHandler_StatusMapping(t *testing.T) {
	owner := uuid.New()
	recordID := uuid.New()
	deleteEntry := domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionDelete,
		OccurredAt: time.Now(),
		Before:     map[string]any{"owner": owner.String()},
	}

	cases := []struct {
		name       string
		audit      *stubAuditLog
		records    *stubRecordStore
		caller     *uuid.UUID
		wantStatus int
	}{
		{
			name:       "no caller identity",
			audit:      &stubAuditLog{latest: deleteEntry},
			records:    &stubRecordStore{},
			caller:     nil,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no delete on record",
			audit:      &stubAuditLog{latestErr: domain.ErrNotFound},
			records:    &stubRecordStore{},
			caller:     &owner,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "caller does not own the snapshot",
			audit:      &stubAuditLog{latest: deleteEntry},
			records:    &stubRecordStore{},
			caller:     ptrTo(uuid.New()),
			wantStatus: http.StatusForbidden,
		},
		{
			name:  "record already live",
			audit: &stubAuditLog{latest: deleteEntry},
			records: &stubRecordStore{insertErr: &domain.ConflictError{
				Kind:       domain.ConflictAlreadyExists,
				EntityType: "note",
				Constraint: "records_pkey",
			}},
			caller:     &owner,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "restored",
			audit:      &stubAuditLog{latest: deleteEntry},
			records:    &stubRecordStore{},
			caller:     &owner,
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHTTPHandler(NewService(tc.audit, tc.records, testAuditConfig("note")))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, restoreRequest(t, "note", recordID, tc.caller))
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRestoreHandler_ConflictBodyNamesTheKind(t *testing.T) {
	owner := uuid.New()
	recordID := uuid.New()
	audit := &stubAuditLog{latest: domain.AuditEntry{
		ID:         uuid.New(),
		EntityType: "note",
		RecordID:   recordID,
		Action:     domain.ActionDelete,
		OccurredAt: time.Now(),
		Before:     map[string]any{"owner": owner.String()},
	}}
	records := &stubRecordStore{insertErr: &domain.ConflictError{
		Kind:       domain.ConflictMissingReference,
		EntityType: "note",
		Constraint: "records_parent_fkey",
	}}
	handler := NewHTTPHandler(NewService(audit, records, testAuditConfig("note")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, restoreRequest(t, "note", recordID, &owner))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body restoreConflict
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Kind != domain.ConflictMissingReference || body.Constraint != "records_parent_fkey" {
		t.Fatalf("unexpected conflict body: %+v", body)
	}
}

func TestRestoreHandler_RejectsMalformedPayload(t *testing.T) {
	handler := NewHTTPHandler(NewService(&stubAuditLog{}, &stubRecordStore{}, testAuditConfig("note")))
	caller := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/trash/restore", strings.NewReader(`{"entityType":"note","recordId":"not-a-uuid"}`))
	req = req.WithContext(auth.ContextWithActorID(req.Context(), caller))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed record id, got %d", rec.Code)
	}
}

func ptrTo(id uuid.UUID) *uuid.UUID { return &id }
