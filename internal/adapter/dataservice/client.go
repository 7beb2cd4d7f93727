// Package dataservice fetches focus windows from a remote migration-paths
// instance instead of a local grid file.
package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

// Client implements view.WindowSource against the /api/window endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	radars     int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a data-service client rooted at baseURL. Fetched windows
// are checked against the radar network of cs.
func NewClient(baseURL string, cs *domain.CaseStudy, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		radars:  len(cs.Radars),
		metrics: metrics,
		logger:  logger,
	}
}

// Window requests the window for q.
func (c *Client) Window(ctx context.Context, q domain.FocusQuery) (*domain.Window, error) {
	params := url.Values{
		"focus":    {q.Focus.UTC().Format(time.RFC3339)},
		"duration": {q.Duration.String()},
	}
	if q.StrataCount > 0 {
		params.Set("strata", strconv.Itoa(q.StrataCount))
	}

	start := time.Now()
	w, err := c.doRequest(ctx, c.baseURL+"/api/window?"+params.Encode())
	if err == nil && q.StrataCount > 0 && w.StrataCount != q.StrataCount {
		w, err = nil, fmt.Errorf("window has %d strata, requested %d", w.StrataCount, q.StrataCount)
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.DataServiceDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	return w, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*domain.Window, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("window request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp.StatusCode, body)
	}

	var w domain.Window
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, fmt.Errorf("decode window: %w", err)
	}
	if err := w.Validate(c.radars); err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}
	c.logger.Debug("window fetched", "focus", w.Focus, "intervals", w.IntervalCount, "strata", w.StrataCount)
	return &w, nil
}

// statusError maps the server's status codes back onto domain sentinels.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	switch status {
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrWindowOutOfRange, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("data service error: status %d: %s", status, msg)
	}
}
