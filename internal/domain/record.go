package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record represents a live application record with semi-structured properties
type Record struct {
	ID         uuid.UUID      `json:"id"`
	EntityType string         `json:"entity_type"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewRecord creates a new record with immutable pattern
func NewRecord(entityType string, properties map[string]any) Record {
	now := time.Now()
	return Record{
		ID:         uuid.New(),
		EntityType: entityType,
		Properties: CloneSnapshot(properties),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithProperties returns a new record with replaced properties
func (r Record) WithProperties(properties map[string]any) Record {
	return Record{
		ID:         r.ID,
		EntityType: r.EntityType,
		Properties: CloneSnapshot(properties),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  time.Now(),
	}
}

// Snapshot returns a point-in-time copy of the record's properties suitable
// for storage inside an audit entry.
func (r Record) Snapshot() map[string]any {
	return CloneSnapshot(r.Properties)
}

func (r *Record) GetPropertiesAsJSONB() (json.RawMessage, error) {
	if r.Properties == nil {
		r.Properties = make(map[string]any)
	}
	return json.Marshal(r.Properties)
}

// FromJSONBProperties creates a properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	var properties map[string]any
	err := json.Unmarshal(propertiesJSON, &properties)
	return properties, err
}
