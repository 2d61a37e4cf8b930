package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clubops/clubsync/internal/schema"
)

func testRecord(t *testing.T, id string) *schema.Record {
	t.Helper()

	rec := &schema.Record{ID: id, UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if err := rec.Encode(&schema.Team{Name: "Reds"}); err != nil {
		t.Fatalf("failed to encode team: %v", err)
	}
	return rec
}

func TestPush(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody pushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode push body: %v", err)
		}
		json.NewEncoder(w).Encode(PushResult{
			Accepted: []PushAck{{ID: "t-1", UpdatedAt: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)}},
			Rejected: []PushReject{{ID: "t-2", Reason: "duplicate name"}},
		})
	}))
	defer srv.Close()

	gw := NewGateway(nil, srv.URL, "secret")
	res, err := gw.Push(context.Background(), schema.TableTeams,
		[]*schema.Record{testRecord(t, "t-1"), testRecord(t, "t-2")})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if gotPath != "/sync/teams/push" {
		t.Errorf("path = %q, want /sync/teams/push", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q, want bearer token", gotAuth)
	}
	if len(gotBody.Records) != 2 {
		t.Errorf("pushed %d records, want 2", len(gotBody.Records))
	}
	if len(res.Accepted) != 1 || res.Accepted[0].ID != "t-1" {
		t.Errorf("Accepted = %+v", res.Accepted)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != "duplicate name" {
		t.Errorf("Rejected = %+v", res.Rejected)
	}
}

func TestPushEmptyBatchSkipsNetwork(t *testing.T) {
	gw := NewGateway(nil, "http://127.0.0.1:1", "")
	res, err := gw.Push(context.Background(), schema.TableTeams, nil)
	if err != nil {
		t.Fatalf("Push of empty batch failed: %v", err)
	}
	if len(res.Accepted) != 0 || len(res.Rejected) != 0 {
		t.Errorf("empty push returned %+v", res)
	}
}

func TestPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cursor"); got != "tm-7" {
			t.Errorf("cursor = %q, want tm-7", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		json.NewEncoder(w).Encode(PullPage{
			Records: []*schema.Record{{
				ID:        "t-3",
				UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Fields:    json.RawMessage(`{"name":"Greens"}`),
			}},
			DeletedIDs: []string{"t-9"},
			NextCursor: "tm-8",
		})
	}))
	defer srv.Close()

	gw := NewGateway(nil, srv.URL, "")
	page, err := gw.Pull(context.Background(), schema.TableTeams, "tm-7", 50)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(page.Records) != 1 || page.Records[0].ID != "t-3" {
		t.Errorf("Records = %+v", page.Records)
	}
	if len(page.DeletedIDs) != 1 || page.DeletedIDs[0] != "t-9" {
		t.Errorf("DeletedIDs = %+v", page.DeletedIDs)
	}
	if page.NextCursor != "tm-8" {
		t.Errorf("NextCursor = %q, want tm-8", page.NextCursor)
	}
}

func TestPullRejectsInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Record without a name fails teams validation at the boundary.
		json.NewEncoder(w).Encode(PullPage{
			Records: []*schema.Record{{
				ID:        "t-3",
				UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				Fields:    json.RawMessage(`{"season":"2026"}`),
			}},
		})
	}))
	defer srv.Close()

	gw := NewGateway(nil, srv.URL, "")
	_, err := gw.Pull(context.Background(), schema.TableTeams, "", 50)
	if !IsPermanent(err) {
		t.Errorf("Pull of invalid payload = %v, want PermanentError", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"server error is transient", http.StatusInternalServerError, true},
		{"bad gateway is transient", http.StatusBadGateway, true},
		{"throttling is transient", http.StatusTooManyRequests, true},
		{"request timeout is transient", http.StatusRequestTimeout, true},
		{"bad request is permanent", http.StatusBadRequest, false},
		{"unauthorized is permanent", http.StatusUnauthorized, false},
		{"conflict is permanent", http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			gw := NewGateway(nil, srv.URL, "")
			_, err := gw.Pull(context.Background(), schema.TableTeams, "", 10)
			if err == nil {
				t.Fatal("Pull succeeded against failing server")
			}
			if IsTransient(err) != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", IsTransient(err), tt.wantTransient, err)
			}
			if IsPermanent(err) == tt.wantTransient {
				t.Errorf("IsPermanent = %v, want %v", IsPermanent(err), !tt.wantTransient)
			}
		})
	}
}

func TestUnreachableServerIsTransient(t *testing.T) {
	gw := NewGateway(&http.Client{Timeout: 100 * time.Millisecond}, "http://127.0.0.1:1", "")
	_, err := gw.Pull(context.Background(), schema.TableTeams, "", 10)
	if !IsTransient(err) {
		t.Errorf("connection refused = %v, want TransientError", err)
	}
}

func TestCancellationPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := NewGateway(nil, srv.URL, "")
	_, err := gw.Pull(ctx, schema.TableTeams, "", 10)
	if err == nil {
		t.Fatal("Pull succeeded with cancelled context")
	}
	if IsTransient(err) || IsPermanent(err) {
		t.Errorf("cancellation was classified as sync error: %v", err)
	}
}
