//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/flow"
	"github.com/couchcryptid/migration-paths/internal/geo"
	"github.com/couchcryptid/migration-paths/internal/observability"
	"github.com/couchcryptid/migration-paths/internal/store"
	"github.com/couchcryptid/migration-paths/internal/view"
)

var caseStart = time.Date(2016, time.September, 19, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("migration-paths-test"),
	)
	testcontainers.CleanupContainer(t, kc)
	require.NoError(t, err, "start kafka container")

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// testCaseStudy is a 12-hour, two-band episode over four radars.
func testCaseStudy() *domain.CaseStudy {
	return &domain.CaseStudy{
		ID:              "integration",
		DateMin:         caseStart,
		DateMax:         caseStart.Add(12 * time.Hour),
		SegmentInterval: 20,
		StrataCounts:    []int{2, 1},
		MaxAltitude:     4000,
		MapCenter:       geo.Point{Lon: 5, Lat: 52},
		MapScaleFactor:  8,
		Radars: []domain.Radar{
			{ID: "nw", Coordinate: []float64{4.5, 52.5}},
			{ID: "ne", Coordinate: []float64{5.5, 52.5}},
			{ID: "sw", Coordinate: []float64{4.5, 51.5}},
			{ID: "se", Coordinate: []float64{5.5, 51.5}},
		},
	}
}

// testGrid is dense enough that every anchor emits a path.
func testGrid(cs *domain.CaseStudy) *domain.Grid {
	segn, strn, radn := cs.SegmentCount(), cs.NativeStrata(), len(cs.Radars)
	fill := func(v float64) domain.ScalarGrid {
		g := domain.NewScalarGrid(segn, strn, radn)
		for segi := range g {
			for stri := range g[segi] {
				for radi := range g[segi][stri] {
					g[segi][stri][radi] = domain.Some(v)
				}
			}
		}
		return g
	}
	av := make([]domain.Field, strn)
	for stri := range av {
		av[stri] = make(domain.Field, radn)
		for radi := range av[stri] {
			av[stri][radi] = domain.Some(1000)
		}
	}
	return &domain.Grid{
		Densities:   fill(500),
		USpeeds:     fill(-6),
		VSpeeds:     fill(-8),
		Speeds:      fill(10),
		AvDensities: av,
	}
}

func newRegistry(t *testing.T) *view.Registry {
	t.Helper()
	cs := testCaseStudy()
	s, err := store.New(cs, testGrid(cs), discardLogger())
	require.NoError(t, err)

	settings := view.Settings{
		RadiusKm:     75,
		IntervalKm:   10,
		BirdsPerPath: 50000,
		Seed:         flow.DefaultSeed,
		Workers:      4,
		IDW:          flow.DefaultIDW,
	}
	return view.NewRegistry(cs, s, settings, discardLogger(), observability.NewMetricsForTesting())
}

func frameRequest(session string, seq uint64, focusOffset time.Duration) domain.FrameRequest {
	return domain.FrameRequest{
		SessionID:     session,
		Seq:           seq,
		Focus:         caseStart.Add(focusOffset),
		DurationHours: 2,
		StrataCount:   2,
		Viewport:      domain.Viewport{Width: 400, Height: 300},
	}
}
