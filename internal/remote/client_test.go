package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mmcdole/pickflix/internal/domain"
	"github.com/mmcdole/pickflix/internal/server"
	"github.com/mmcdole/pickflix/internal/sqlstore"
)

type recordedRequest struct {
	method string
	query  string
	body   string
	header http.Header
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method: r.Method,
		query:  r.URL.RawQuery,
		body:   string(body),
		header: r.Header.Clone(),
	})
	status, respBody := f.status, f.body
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, respBody)
}

func (f *fakeBackend) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFake(t *testing.T, status int, body string) (*fakeBackend, *Client) {
	t.Helper()
	fake := &fakeBackend{status: status, body: body}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return fake, NewClient(Options{URL: ts.URL + "/", APIKey: "anon-key", ClientID: "abc"})
}

func TestFetchAll(t *testing.T) {
	fake, c := newFake(t, http.StatusOK,
		`[{"id":5,"picked_at":"2024-01-02T00:00:00Z"},{"id":"x"},{"id":2.5},{"id":1,"picked_at":"2024-01-01T00:00:00Z"}]`)

	ids, err := c.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 1 {
		t.Errorf("ids = %v, want [5 1]", ids)
	}

	req := fake.last()
	if req.method != http.MethodGet {
		t.Errorf("method = %s", req.method)
	}
	if !strings.Contains(req.query, "order=picked_at.desc") || !strings.Contains(req.query, "select=id%2Cpicked_at") {
		t.Errorf("query = %s", req.query)
	}
	if req.header.Get("apikey") != "anon-key" || req.header.Get("Authorization") != "Bearer anon-key" {
		t.Errorf("auth headers = %v", req.header)
	}
	if req.header.Get("X-Client-Info") != "pickflix/abc" {
		t.Errorf("X-Client-Info = %q", req.header.Get("X-Client-Info"))
	}
}

func TestRecordSendsMinimalInsert(t *testing.T) {
	fake, c := newFake(t, http.StatusCreated, "")

	if err := c.Record(context.Background(), 7); err != nil {
		t.Fatalf("Record: %v", err)
	}
	req := fake.last()
	if req.method != http.MethodPost || req.body != `{"id":7}` {
		t.Errorf("request = %s %s", req.method, req.body)
	}
	if req.header.Get("Prefer") != "return=minimal" {
		t.Errorf("Prefer = %q", req.header.Get("Prefer"))
	}
}

func TestClearAllUsesFilter(t *testing.T) {
	fake, c := newFake(t, http.StatusNoContent, "")

	if err := c.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	req := fake.last()
	if req.method != http.MethodDelete || req.query != "id=neq.-1" {
		t.Errorf("request = %s ?%s", req.method, req.query)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.ErrorKind
		msg    string
	}{
		{"unique code", 409, `{"code":"23505","message":"duplicate key value violates unique constraint \"picks_pkey\""}`, domain.KindConflict, ""},
		{"duplicate message only", 400, `{"message":"ERROR: Duplicate Key found"}`, domain.KindConflict, ""},
		{"undefined table", 404, `{"code":"42P01","message":"relation \"public.picks\" does not exist"}`, domain.KindSchemaMissing, ""},
		{"schema cache", 404, `{"code":"PGRST205","message":"Could not find the table 'public.picks' in the schema cache"}`, domain.KindSchemaMissing, ""},
		{"relation message only", 500, `{"message":"relation public.picks does not exist"}`, domain.KindSchemaMissing, ""},
		{"other", 500, `{"code":"XX000","message":"disk full"}`, domain.KindOther, "disk full"},
		{"plain text", 502, `bad gateway`, domain.KindOther, "bad gateway"},
		{"empty body", 503, ``, domain.KindOther, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newFake(t, tt.status, tt.body)
			err := c.Record(context.Background(), 1)
			if got := domain.KindOf(err); got != tt.want {
				t.Fatalf("kind = %v (%v), want %v", got, err, tt.want)
			}
			if tt.msg != "" && err.Error() != tt.msg {
				t.Errorf("message = %q, want %q", err.Error(), tt.msg)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(Options{URL: "  "})
	if c.Configured() {
		t.Error("Configured() = true")
	}
	if _, err := c.FetchAll(context.Background()); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("FetchAll err = %v", err)
	}
	if err := c.Record(context.Background(), 1); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("Record err = %v", err)
	}
}

func TestBreakerOpensOnServerFailures(t *testing.T) {
	fake := &fakeBackend{status: http.StatusInternalServerError, body: `{"message":"boom"}`}
	ts := httptest.NewServer(fake)
	defer ts.Close()
	c := NewClient(Options{URL: ts.URL, FailureThreshold: 2})

	ctx := context.Background()
	c.Ping(ctx)
	c.Ping(ctx)

	err := c.Ping(ctx)
	if err == nil || !strings.Contains(err.Error(), "unavailable") {
		t.Fatalf("err = %v, want open breaker", err)
	}
	fake.mu.Lock()
	n := len(fake.requests)
	fake.mu.Unlock()
	if n != 2 {
		t.Errorf("backend saw %d requests, want 2", n)
	}
}

func TestConflictsDoNotTripBreaker(t *testing.T) {
	fake, c := newFake(t, http.StatusConflict, `{"code":"23505","message":"duplicate key"}`)
	c.breaker = NewClient(Options{URL: "http://unused", FailureThreshold: 1}).breaker

	for range 3 {
		if err := c.Record(context.Background(), 1); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("err = %v, want conflict", err)
		}
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.requests) != 3 {
		t.Errorf("backend saw %d requests, want 3", len(fake.requests))
	}
}

// Round-trip against the bundled server.
func TestAgainstPicksServer(t *testing.T) {
	store, err := sqlstore.Open(filepath.Join(t.TempDir(), "picks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ts := httptest.NewServer(server.New(store, server.Options{}).Handler())
	defer ts.Close()

	c := NewClient(Options{URL: ts.URL})
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := c.Record(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if err := c.Record(ctx, 3); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate err = %v", err)
	}
	if err := c.Record(ctx, 9); err != nil {
		t.Fatal(err)
	}

	ids, err := c.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 9 || ids[1] != 3 {
		t.Errorf("ids = %v, want [9 3]", ids)
	}

	if err := c.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	ids, _ = c.FetchAll(ctx)
	if len(ids) != 0 {
		t.Errorf("after clear ids = %v", ids)
	}
}
