// Package history serves a record's ordered change history. Authorization is
// computed from the stored snapshots, never from a live-table lookup, so
// entries for deleted records stay visible to their owners.
package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/config"
	"github.com/rpattn/chronicle/internal/domain"
	"github.com/rpattn/chronicle/internal/repository"
)

// Service answers history queries against the audit log.
type Service struct {
	audit repository.AuditLogStore
	cfg   config.AuditConfig
}

// NewService creates a new history service.
func NewService(audit repository.AuditLogStore, cfg config.AuditConfig) *Service {
	return &Service{audit: audit, cfg: cfg}
}

// GetEntityHistory returns a record's entries, newest first, capped at limit.
// An entry is visible when the caller is its actor or matches the ownership
// field in either snapshot; entries the caller may not see are excluded, not
// errors.
func (s *Service) GetEntityHistory(ctx context.Context, entityType string, recordID uuid.UUID, limit int, callerID uuid.UUID) ([]domain.AuditEntry, error) {
	limit = clampLimit(limit, s.cfg)

	// Candidates are fetched newest-first up to the configured ceiling, then
	// filtered by visibility. A record whose newest max_limit entries are all
	// invisible to the caller yields fewer than limit results; acceptable for
	// the same reason as the recently-deleted pre-limit window.
	candidates, err := s.audit.ListByRecord(ctx, entityType, recordID, s.cfg.MaxLimit)
	if err != nil {
		return nil, err
	}

	field := s.cfg.OwnershipField(entityType)
	visible := make([]domain.AuditEntry, 0, limit)
	for _, entry := range candidates {
		if !entry.VisibleTo(callerID, field) {
			continue
		}
		visible = append(visible, entry)
		if len(visible) == limit {
			break
		}
	}
	return visible, nil
}

func clampLimit(limit int, cfg config.AuditConfig) int {
	if limit <= 0 {
		return cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		return cfg.MaxLimit
	}
	return limit
}
