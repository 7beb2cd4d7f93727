package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")

	logger.Debug("window sliced", "from", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "window sliced", line["msg"])
	assert.Equal(t, "DEBUG", line["level"])
	assert.InDelta(t, 3.0, line["from"], 0)
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")

	logger.Info("dropped")
	logger.Warn("kept", "session_id", "s1")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "msg=kept")
	assert.Contains(t, out, "session_id=s1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FramesProduced.Inc()
	a.PathsBuilt.WithLabelValues("0").Add(3)

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.FramesProduced), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.FramesProduced), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(a.PathsBuilt.WithLabelValues("0")), 0)
}
