package trash

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/auth"
	"github.com/rpattn/chronicle/internal/domain"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		h.handleList(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/restore"):
		h.handleRestore(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entityType := strings.TrimSpace(r.URL.Query().Get("entityType"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid limit: %v", err), http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	callerID, _ := auth.ActorIDFromContext(r.Context())

	entries, err := h.service.RecentlyDeleted(r.Context(), entityType, limit, callerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type restorePayload struct {
	EntityType string `json:"entityType"`
	RecordID   string `json:"recordId"`
}

type restoreConflict struct {
	Kind       domain.ConflictKind `json:"kind"`
	EntityType string              `json:"entityType"`
	Constraint string              `json:"constraint,omitempty"`
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload restorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.EntityType) == "" {
		http.Error(w, "entityType is required", http.StatusBadRequest)
		return
	}
	recordID, err := uuid.Parse(strings.TrimSpace(payload.RecordID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid recordId: %v", err), http.StatusBadRequest)
		return
	}

	callerID, ok := auth.ActorIDFromContext(r.Context())
	if !ok {
		http.Error(w, "caller identity required", http.StatusForbidden)
		return
	}

	outcome, err := h.service.Restore(r.Context(), payload.EntityType, recordID, callerID)
	if err != nil {
		h.writeRestoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// writeRestoreError maps the typed restore outcomes onto HTTP statuses, so
// the caller can render an exact message for each failure kind.
func (h *Handler) writeRestoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		if conflict, ok := domain.AsConflict(err); ok {
			writeJSON(w, http.StatusConflict, restoreConflict{
				Kind:       conflict.Kind,
				EntityType: conflict.EntityType,
				Constraint: conflict.Constraint,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
