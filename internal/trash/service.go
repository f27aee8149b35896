// Package trash serves the recently-deleted view and restores deleted
// records from their last snapshot.
package trash

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/rpattn/chronicle/internal/config"
	"github.com/rpattn/chronicle/internal/domain"
	"github.com/rpattn/chronicle/internal/repository"
)

// Service lists delete events and orchestrates restores.
type Service struct {
	audit   repository.AuditLogStore
	records repository.RecordStore
	cfg     config.AuditConfig
}

// NewService creates a new trash service.
func NewService(audit repository.AuditLogStore, records repository.RecordStore, cfg config.AuditConfig) *Service {
	return &Service{audit: audit, records: records, cfg: cfg}
}

// RecentlyDeleted returns the caller's visible DELETE entries, newest first,
// capped at limit. An empty entityType merges across all configured types.
//
// The all-types merge pre-limits each per-type source to limit candidates
// before unioning and re-sorting. That bounds per-source work to O(limit) but
// can omit a true global top-limit item when one source is far more skewed
// toward recent deletes than its own window allows. The limit is chosen large
// relative to per-type delete velocity, so the window loss is accepted rather
// than paying for an exact k-way merge.
func (s *Service) RecentlyDeleted(ctx context.Context, entityType string, limit int, callerID uuid.UUID) ([]domain.AuditEntry, error) {
	limit = clampLimit(limit, s.cfg)

	types := []string{entityType}
	if entityType == "" {
		types = s.cfg.EntityTypes()
	}

	merged := make([]domain.AuditEntry, 0, limit*len(types))
	for _, t := range types {
		candidates, err := s.audit.ListDeletes(ctx, t, limit)
		if err != nil {
			return nil, err
		}
		field := s.cfg.OwnershipField(t)
		for _, entry := range candidates {
			if entry.VisibleTo(callerID, field) {
				merged = append(merged, entry)
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].OccurredAt.Equal(merged[j].OccurredAt) {
			return merged[i].OccurredAt.After(merged[j].OccurredAt)
		}
		return merged[i].ID.String() > merged[j].ID.String()
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
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
