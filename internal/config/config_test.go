package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker  = "localhost:9092"
	testCaseStudy  = "testdata/case.yaml"
	testGrid       = "testdata/grid.json"
	testServiceURL = "http://data-service:8080"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CASE_STUDY_PATH", testCaseStudy)
	t.Setenv("GRID_PATH", testGrid)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testCaseStudy, cfg.CaseStudyPath)
	assert.Equal(t, testGrid, cfg.GridPath)
	assert.True(t, cfg.PipelineEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "frame-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "path-frames", cfg.KafkaSinkTopic)
	assert.Equal(t, "migration-paths", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Empty(t, cfg.DataServiceURL)
	assert.Equal(t, 5*time.Second, cfg.DataServiceTimeout)
	assert.Equal(t, 64, cfg.WindowCacheSize)
	assert.InDelta(t, 75.0, cfg.RadarAnchorRadiusKm, 0)
	assert.InDelta(t, 10.0, cfg.AnchorIntervalKm, 0)
	assert.InDelta(t, 50000.0, cfg.BirdsPerPath, 0)
	assert.Equal(t, "ENRAM", cfg.PathSeed)
	assert.Equal(t, 4, cfg.FrameWorkers)
	assert.Equal(t, 1024, cfg.MaxSessions)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("PIPELINE_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("DATA_SERVICE_URL", testServiceURL)
	t.Setenv("DATA_SERVICE_TIMEOUT", "2s")
	t.Setenv("WINDOW_CACHE_SIZE", "8")
	t.Setenv("RADAR_ANCHOR_RADIUS_KM", "50")
	t.Setenv("ANCHOR_INTERVAL_KM", "5")
	t.Setenv("BIRDS_PER_PATH", "25000")
	t.Setenv("PATH_SEED", "other")
	t.Setenv("FRAME_WORKERS", "16")
	t.Setenv("MAX_SESSIONS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.PipelineEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, testServiceURL, cfg.DataServiceURL)
	assert.Equal(t, 2*time.Second, cfg.DataServiceTimeout)
	assert.Equal(t, 8, cfg.WindowCacheSize)
	assert.InDelta(t, 50.0, cfg.RadarAnchorRadiusKm, 0)
	assert.InDelta(t, 5.0, cfg.AnchorIntervalKm, 0)
	assert.InDelta(t, 25000.0, cfg.BirdsPerPath, 0)
	assert.Equal(t, "other", cfg.PathSeed)
	assert.Equal(t, 16, cfg.FrameWorkers)
	assert.Equal(t, 10, cfg.MaxSessions)
}

func TestLoad_RequiresCaseStudy(t *testing.T) {
	t.Setenv("GRID_PATH", testGrid)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CASE_STUDY_PATH")
}

func TestLoad_RequiresGridWithoutDataService(t *testing.T) {
	t.Setenv("CASE_STUDY_PATH", testCaseStudy)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_PATH")
}

func TestLoad_DataServiceReplacesGrid(t *testing.T) {
	t.Setenv("CASE_STUDY_PATH", testCaseStudy)
	t.Setenv("DATA_SERVICE_URL", testServiceURL)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.GridPath)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"BATCH_FLUSH_INTERVAL", "not-a-duration"},
		{"DATA_SERVICE_TIMEOUT", "bad"},
		{"RADAR_ANCHOR_RADIUS_KM", "-5"},
		{"ANCHOR_INTERVAL_KM", "zero"},
		{"BIRDS_PER_PATH", "0"},
		{"FRAME_WORKERS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("WINDOW_CACHE_SIZE", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.WindowCacheSize)
}
