package tombstone

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HTTPRemote delivers deletes to the chronicle server over HTTP.
type HTTPRemote struct {
	baseURL string
	actorID uuid.UUID
	client  *http.Client
}

// NewHTTPRemote creates a remote against the given base URL, acting as the
// given caller.
func NewHTTPRemote(baseURL string, actorID uuid.UUID) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		actorID: actorID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// DeleteRecord issues DELETE /records/{entityType}/{id}. A 404 maps to
// ErrRemoteGone: the record is already absent remotely, which the drain loop
// counts as success.
func (r *HTTPRemote) DeleteRecord(ctx context.Context, entityType string, recordID uuid.UUID) error {
	url := fmt.Sprintf("%s/records/%s/%s", r.baseURL, entityType, recordID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building delete request: %w", err)
	}
	if r.actorID != uuid.Nil {
		req.Header.Set("X-Actor-ID", r.actorID.String())
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", entityType, recordID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrRemoteGone
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delete %s/%s: unexpected status %d: %s", entityType, recordID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
