// Package syncclient streams scanned media items to the Taura backend and
// asks which ones are already indexed. All requests carry a bearer token kept
// fresh through the auth orchestrator.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taura/pkg/metrics"
	"taura/pkg/scanner"
	"taura/pkg/session"

	"github.com/rs/zerolog"
)

// SessionSource provides a session whose access token is guaranteed fresh.
// Satisfied by *auth.Orchestrator.
type SessionSource interface {
	EnsureFresh(ctx context.Context) (*session.Session, error)
}

// Item is one media record in a sync batch, in the backend's wire format.
type Item struct {
	UserID   string  `json:"user_id"`
	Modality string  `json:"modality"`
	URI      string  `json:"uri"`
	TS       *string `json:"ts,omitempty"`
}

type syncRequest struct {
	Items []Item `json:"items"`
}

type syncResponse struct {
	Upserted int `json:"upserted"`
}

type missingProbe struct {
	URI string  `json:"uri"`
	TS  *string `json:"ts,omitempty"`
}

type missingRequest struct {
	UserID string         `json:"user_id"`
	Items  []missingProbe `json:"items"`
}

type missingResponse struct {
	Missing []string `json:"missing"`
}

// Client talks to the backend sync API.
type Client struct {
	baseURL  string
	sessions SessionSource
	http     *http.Client
	log      zerolog.Logger
}

// New creates a sync client for the backend at baseURL.
func New(baseURL string, sessions SessionSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log.With().Str("component", "sync").Logger(),
	}
}

// ItemsFromScan converts scanner output to sync items for the given user.
func ItemsFromScan(userID string, result *scanner.Result) []Item {
	items := make([]Item, 0, len(result.Items))
	for _, it := range result.Items {
		item := Item{
			UserID:   userID,
			Modality: it.Modality,
			URI:      it.Path,
		}
		if it.Modified != nil {
			ts := it.Modified.UTC().Format(time.RFC3339)
			item.TS = &ts
		}
		items = append(items, item)
	}
	return items
}

// Sync posts one batch of items and returns how many the backend upserted.
func (c *Client) Sync(ctx context.Context, items []Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	var resp syncResponse
	if err := c.post(ctx, "/sync", syncRequest{Items: items}, &resp); err != nil {
		metrics.RecordSyncBatch("failure")
		return 0, err
	}

	metrics.RecordSyncBatch("success")
	metrics.ItemsUpserted.Add(float64(resp.Upserted))
	c.log.Info().Int("sent", len(items)).Int("upserted", resp.Upserted).Msg("batch synced")
	return resp.Upserted, nil
}

// Missing returns the subset of URIs the backend has not indexed yet, so the
// caller can skip re-uploading known items.
func (c *Client) Missing(ctx context.Context, userID string, items []Item) ([]string, error) {
	probes := make([]missingProbe, 0, len(items))
	for _, it := range items {
		probes = append(probes, missingProbe{URI: it.URI, TS: it.TS})
	}

	var resp missingResponse
	if err := c.post(ctx, "/sync/missing", missingRequest{UserID: userID, Items: probes}, &resp); err != nil {
		return nil, err
	}
	return resp.Missing, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	sess, err := c.sessions.EnsureFresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain fresh session: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}
