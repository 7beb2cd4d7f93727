package dataservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string, timeout time.Duration) *Client {
	cs := &domain.CaseStudy{Radars: []domain.Radar{{ID: "a"}, {ID: "b"}}}
	return NewClient(baseURL, cs, timeout, testMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleGrid(vals ...domain.Cell) domain.ScalarGrid {
	return domain.ScalarGrid{
		{{vals[0], vals[1]}},
		{{vals[2], vals[3]}},
	}
}

func sampleWindow(q domain.FocusQuery) domain.Window {
	speed := sampleGrid(domain.Some(5), domain.Some(5), domain.Some(5), domain.Some(5))
	return domain.Window{
		CaseStudyID:     "cs",
		Focus:           q.Focus,
		FocusIndex:      54,
		IntervalCount:   2,
		IntervalMinutes: 20,
		StrataCount:     1,
		Densities:       sampleGrid(domain.Some(1), domain.Cell{}, domain.Some(2), domain.Some(3)),
		USpeeds:         sampleGrid(domain.Some(-3), domain.Some(-3), domain.Some(-3), domain.Some(-3)),
		VSpeeds:         sampleGrid(domain.Some(-4), domain.Some(-4), domain.Some(-4), domain.Some(-4)),
		Speeds:          speed,
		AvDensities:     []domain.Field{{domain.Some(10), domain.Some(20)}},
	}
}

func TestClient_Window_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/window", r.URL.Path)
		assert.Equal(t, "2016-09-19T18:00:00Z", r.URL.Query().Get("focus"))
		assert.Equal(t, "40m0s", r.URL.Query().Get("duration"))
		assert.Equal(t, "1", r.URL.Query().Get("strata"))

		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(sampleWindow(domain.FocusQuery{Focus: focus})))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/", 5*time.Second)
	win, err := c.Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: 40 * time.Minute, StrataCount: 1})
	require.NoError(t, err)

	assert.Equal(t, 54, win.FocusIndex)
	assert.True(t, focus.Equal(win.Focus))
	require.Len(t, win.Densities, 2)
	assert.True(t, win.Densities[0][0][0].Valid)
	assert.False(t, win.Densities[0][0][1].Valid, "null cells stay absent")
	assert.InDelta(t, 3.0, win.Densities[1][0][1].Value, 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.metrics.DataServiceDuration))
}

func TestClient_Window_OmitsZeroStrata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("strata"))
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(sampleWindow(domain.FocusQuery{Focus: focus})))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour})
	require.NoError(t, err)
}

func TestClient_Window_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"out of range", http.StatusUnprocessableEntity, `{"error":"segments [70, 73) not within [0, 72)"}`, domain.ErrWindowOutOfRange},
		{"bad request", http.StatusBadRequest, `{"error":"invalid duration"}`, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testClient(srv.URL, 5*time.Second).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestClient_Window_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_Window_DimensionMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *domain.Window)
		array  string
	}{
		{"interval count", func(w *domain.Window) { w.IntervalCount = 3 }, "densities"},
		{"short uSpeeds", func(w *domain.Window) { w.USpeeds = w.USpeeds[:1] }, "uSpeeds"},
		{"strata in vSpeeds", func(w *domain.Window) { w.VSpeeds[1] = nil }, "vSpeeds[1]"},
		{"radars in speeds", func(w *domain.Window) { w.Speeds[0][0] = w.Speeds[0][0][:1] }, "speeds[0][0]"},
		{"avDensities radars", func(w *domain.Window) { w.AvDensities[0] = append(w.AvDensities[0], domain.Some(1)) }, "avDensities[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				win := sampleWindow(domain.FocusQuery{Focus: focus})
				tt.mutate(&win)
				w.Header().Set(headerContentType, contentTypeJSON)
				require.NoError(t, json.NewEncoder(w).Encode(win))
			}))
			defer srv.Close()

			win, err := testClient(srv.URL, 5*time.Second).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour})
			assert.Nil(t, win)
			var dimErr *domain.DimensionError
			require.ErrorAs(t, err, &dimErr)
			assert.Equal(t, tt.array, dimErr.Array)
		})
	}
}

func TestClient_Window_StrataMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(sampleWindow(domain.FocusQuery{Focus: focus})))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour, StrataCount: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested 2")
}

func TestClient_Window_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).Window(context.Background(), domain.FocusQuery{Focus: focus, Duration: time.Hour})
	require.Error(t, err)
}
