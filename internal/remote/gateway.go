// Package remote provides the gateway to the authoritative backend.
//
// The gateway is a pure I/O boundary: it pushes batches of dirty records,
// pulls cursor-ordered pages of remote changes, and classifies failures
// into the transient/permanent taxonomy. It holds no sync policy; conflict
// resolution and cursor bookkeeping live in the engine and the store.
//
// Incoming rows are validated against the schema registry before they are
// returned, so loosely-shaped backend payloads never reach the local store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

// PushAck is the server's acknowledgement of one accepted record. If the
// server re-timestamps on write, UpdatedAt carries the authoritative value.
type PushAck struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushReject is the server's refusal of one record with a reason.
type PushReject struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PushResult is the per-record outcome of a push batch.
type PushResult struct {
	Accepted []PushAck    `json:"accepted"`
	Rejected []PushReject `json:"rejected"`
}

// PullPage is one cursor-resumable page of remote changes.
type PullPage struct {
	Records    []*schema.Record `json:"records"`
	DeletedIDs []string         `json:"deleted_ids"`
	NextCursor string           `json:"next_cursor"`
}

// pushRequest is the wire shape of a push batch.
type pushRequest struct {
	Records []*schema.Record `json:"records"`
}

// Gateway talks to the remote backend over the authenticated HTTP
// transport. It is safe for concurrent use.
type Gateway struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewGateway creates a gateway for the given backend base URL.
// If httpClient is nil a client with a 30 second timeout is used.
func NewGateway(httpClient *http.Client, baseURL, token string) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
	}
}

// Push sends a batch of dirty records to the table's endpoint.
//
// Pushing is idempotent on (id, updated_at): retrying the same batch after
// a transient failure is safe, the server treats an already-applied record
// as accepted.
func (g *Gateway) Push(ctx context.Context, table string, records []*schema.Record) (*PushResult, error) {
	if !schema.KnownTable(table) {
		return nil, &PermanentError{Op: "push", Err: fmt.Errorf("unknown table %q", table)}
	}
	if len(records) == 0 {
		return &PushResult{}, nil
	}

	var out PushResult
	op := "push " + table
	if err := g.do(ctx, op, http.MethodPost, "/sync/"+table+"/push", pushRequest{Records: records}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull fetches the next page of remote changes after cursor. An empty
// cursor pulls from the beginning of the table's history.
//
// Every returned record has passed envelope and domain validation; a page
// containing an invalid record is rejected whole as a PermanentError.
func (g *Gateway) Pull(ctx context.Context, table, cursor string, limit int) (*PullPage, error) {
	if !schema.KnownTable(table) {
		return nil, &PermanentError{Op: "pull", Err: fmt.Errorf("unknown table %q", table)}
	}

	q := url.Values{}
	q.Set("cursor", cursor)
	q.Set("limit", strconv.Itoa(limit))

	var out PullPage
	op := "pull " + table
	if err := g.do(ctx, op, http.MethodGet, "/sync/"+table+"/pull?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	for _, rec := range out.Records {
		if err := schema.ValidateRecord(table, rec); err != nil {
			return nil, &PermanentError{Op: op, Err: err}
		}
	}
	return &out, nil
}

// do performs one authenticated JSON round trip.
func (g *Gateway) do(ctx context.Context, op, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &PermanentError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, r)
	if err != nil {
		return &PermanentError{Op: op, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(op, resp.StatusCode,
			fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data))))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PermanentError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
