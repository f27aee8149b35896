// Package records exposes the capture-wrapped mutation surface for live
// records. Every write here funnels through repository.RecordStore, so each
// committed mutation carries exactly one audit entry.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/auth"
	"github.com/rpattn/chronicle/internal/domain"
	"github.com/rpattn/chronicle/internal/repository"
)

type Handler struct {
	store repository.RecordStore
}

func NewHTTPHandler(store repository.RecordStore) http.Handler {
	return &Handler{store: store}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodPut:
		h.handleUpdate(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createPayload struct {
	EntityType string         `json:"entityType"`
	Properties map[string]any `json:"properties"`
}

type updatePayload struct {
	Properties map[string]any `json:"properties"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.EntityType) == "" {
		http.Error(w, "entityType is required", http.StatusBadRequest)
		return
	}

	rec := domain.NewRecord(payload.EntityType, payload.Properties)
	created, err := h.store.Insert(r.Context(), rec, actorPtr(r), domain.ActionInsert)
	if err != nil {
		h.writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := h.readPath(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	rec := domain.Record{ID: id, EntityType: entityType, Properties: payload.Properties}
	updated, err := h.store.Update(r.Context(), rec, actorPtr(r))
	if err != nil {
		h.writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDelete removes a record. Deleting an absent record returns 404; the
// client drain loop relies on that status to treat redelivered deletes as
// already applied.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := h.readPath(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), entityType, id, actorPtr(r)); err != nil {
		h.writeWriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entityType, id, ok := h.readPath(w, r)
	if !ok {
		return
	}
	rec, err := h.store.GetByID(r.Context(), entityType, id)
	if err != nil {
		h.writeWriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// readPath parses /records/{entityType}/{id}.
func (h *Handler) readPath(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/records"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "expected /records/{entityType}/{id}", http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid record id: %v", err), http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	return parts[0], id, true
}

func (h *Handler) writeWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		if conflict, ok := domain.AsConflict(err); ok {
			writeJSON(w, http.StatusConflict, conflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func actorPtr(r *http.Request) *uuid.UUID {
	if actorID, ok := auth.ActorIDFromContext(r.Context()); ok {
		return &actorID
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
