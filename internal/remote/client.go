// Package remote talks to a PostgREST-style picks table, either a hosted
// backend-as-a-service project or a pickflix server.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "pickflix/1.0"
	picksPath      = "/rest/v1/picks"
)

// Options configures a Client.
type Options struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	ClientID string // sent as X-Client-Info for server-side correlation
	Logger   *slog.Logger

	// Breaker trips after this many consecutive transport or server failures.
	// Zero uses 5.
	FailureThreshold uint32
	// BreakerTimeout is how long the breaker stays open. Zero uses 30s.
	BreakerTimeout time.Duration
}

// Client implements domain.HistoryStore over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	clientID   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

var _ domain.HistoryStore = (*Client)(nil)

// NewClient creates a client. An empty URL yields a client whose every
// operation fails with domain.ErrNotConfigured.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.URL), "/"),
		apiKey:   opts.APIKey,
		clientID: opts.ClientID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "picks-remote",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Store-level answers mean the backend is up.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch domain.KindOf(err) {
			case domain.KindConflict, domain.KindSchemaMissing:
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return c
}

func (c *Client) Mode() domain.StoreMode { return domain.ModeShared }

// Configured reports whether a backend URL is set
func (c *Client) Configured() bool { return c.baseURL != "" }

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type pickRow struct {
	ID json.RawMessage `json:"id"`
}

// FetchAll returns recorded ids, most recent first. Rows whose id is not an
// integer are skipped.
func (c *Client) FetchAll(ctx context.Context) ([]int, error) {
	query := url.Values{}
	query.Set("select", "id,picked_at")
	query.Set("order", "picked_at.desc")

	body, err := c.doRequest(ctx, http.MethodGet, query, nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []pickRow
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, domain.OtherError("failed to parse picks: %w", err)
	}

	ids := make([]int, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.Atoi(string(bytes.TrimSpace(row.ID)))
		if err != nil {
			c.logger.Debug("skipping non-integer pick id", "id", string(row.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Record inserts id. A duplicate fails with domain.ErrConflict.
func (c *Client) Record(ctx context.Context, id int) error {
	payload, err := json.Marshal(map[string]int{"id": id})
	if err != nil {
		return domain.OtherError("failed to encode pick: %w", err)
	}
	headers := http.Header{}
	headers.Set("Prefer", "return=minimal")
	_, err = c.doRequest(ctx, http.MethodPost, nil, payload, headers)
	return err
}

// ClearAll deletes every pick. The backend requires a filter on DELETE, so
// the request matches every row with id != -1.
func (c *Client) ClearAll(ctx context.Context) error {
	query := url.Values{}
	query.Set("id", "neq.-1")
	_, err := c.doRequest(ctx, http.MethodDelete, query, nil, nil)
	return err
}

// Ping probes the picks table.
func (c *Client) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")
	_, err := c.doRequest(ctx, http.MethodGet, query, nil, nil)
	return err
}

// doRequest performs a request through the circuit breaker and maps failures
// onto the store error taxonomy.
func (c *Client) doRequest(ctx context.Context, method string, query url.Values, payload []byte, headers http.Header) ([]byte, error) {
	if c.baseURL == "" {
		return nil, domain.ErrNotConfigured
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, method, query, payload, headers)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.OtherError("history backend unavailable: %w", err)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, method string, query url.Values, payload []byte, headers http.Header) ([]byte, error) {
	reqURL := c.baseURL + picksPath
	if len(query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, domain.OtherError("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-Info", "pickflix/"+c.clientID)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("remote request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("remote request failed", "error", err)
		return nil, domain.OtherError("failed to reach history backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.OtherError("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		storeErr := parseError(resp.StatusCode, body)
		if storeErr.Kind == domain.KindOther {
			c.logger.Error("remote request error", "status", resp.StatusCode, "body", string(body))
		}
		return nil, storeErr
	}

	return body, nil
}
