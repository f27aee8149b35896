package history

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/auth"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/export") {
		h.handleExport(w, r)
		return
	}
	h.handleList(w, r)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entityType, recordID, limit, ok := h.readQuery(w, r)
	if !ok {
		return
	}
	callerID, _ := auth.ActorIDFromContext(r.Context())

	entries, err := h.service.GetEntityHistory(r.Context(), entityType, recordID, limit, callerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	entityType, recordID, limit, ok := h.readQuery(w, r)
	if !ok {
		return
	}
	callerID, _ := auth.ActorIDFromContext(r.Context())

	entries, err := h.service.GetEntityHistory(r.Context(), entityType, recordID, limit, callerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	workbook, err := Workbook(entries)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("history-%s.xlsx", recordID)))
	if err := workbook.Write(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) readQuery(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, int, bool) {
	entityType := strings.TrimSpace(r.URL.Query().Get("entityType"))
	if entityType == "" {
		http.Error(w, "entityType is required", http.StatusBadRequest)
		return "", uuid.Nil, 0, false
	}
	recordID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("recordId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid recordId: %v", err), http.StatusBadRequest)
		return "", uuid.Nil, 0, false
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid limit: %v", err), http.StatusBadRequest)
			return "", uuid.Nil, 0, false
		}
	}
	return entityType, recordID, limit, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
