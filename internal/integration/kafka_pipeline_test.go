//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/migration-paths/internal/adapter/kafka"
	"github.com/couchcryptid/migration-paths/internal/config"
	"github.com/couchcryptid/migration-paths/internal/domain"
	"github.com/couchcryptid/migration-paths/internal/observability"
	"github.com/couchcryptid/migration-paths/internal/pipeline"
)

const (
	testSourceTopic = "test-frame-requests"
	testSinkTopic   = "test-path-frames"
)

// publishedFrame holds a deserialized message read from the sink topic.
type publishedFrame struct {
	Frame   domain.Frame
	Key     string
	Headers map[string]string
}

// readFrame reads a single message from the sink consumer and deserializes it.
func readFrame(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedFrame {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var frame domain.Frame
	require.NoError(t, json.Unmarshal(msg.Value, &frame), "unmarshal sink message")

	return publishedFrame{Frame: frame, Key: string(msg.Key), Headers: headers}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func requestMessage(t *testing.T, req domain.FrameRequest) kafkago.Message {
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(req.SessionID), Value: payload}
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader and
// kafka.Writer round-trip a frame request and its frame through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msg := requestMessage(t, frameRequest("s1", 1, 3*time.Hour))
	require.NoError(t, producer.WriteMessages(ctx, msg))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("s1"), raw.Key)
	assert.Equal(t, msg.Value, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	transformer := pipeline.NewTransformer(newRegistry(t), discardLogger())
	out, err := transformer.Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.OutputEvent{out}))

	pf := readFrame(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "s1", pf.Key)
	assert.Equal(t, pf.Frame.ID, pf.Headers["frame_id"])
	assert.Equal(t, "1", pf.Headers["seq"])
	_, err = time.Parse(time.RFC3339, pf.Headers["rendered_at"])
	assert.NoError(t, err, "rendered_at should be valid RFC3339")

	assert.Equal(t, "integration", pf.Frame.CaseStudyID)
	assert.Equal(t, 6, pf.Frame.IntervalCount)
	require.NotEmpty(t, pf.Frame.Paths)
	for _, p := range pf.Frame.Paths {
		assert.Len(t, p.Samples, 7)
	}
}

// TestPipelineEndToEnd wires Reader → FrameTransformer → Writer against real
// Kafka and checks one frame is published per session request.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	sessions := []string{"alpha", "bravo", "charlie"}
	msgs := make([]kafkago.Message, 0, len(sessions))
	for i, s := range sessions {
		msgs = append(msgs, requestMessage(t, frameRequest(s, 1, time.Duration(i+1)*time.Hour)))
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(newRegistry(t), discardLogger())
	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := map[string]publishedFrame{}
	for len(received) < len(sessions) {
		pf := readFrame(ctx, t, consumer)
		received[pf.Key] = pf
	}

	pipelineCancel()
	require.NoError(t, <-errCh)

	for i, s := range sessions {
		pf, ok := received[s]
		require.True(t, ok, "missing frame for session %s", s)
		assert.Equal(t, s, pf.Frame.SessionID)
		assert.True(t, caseStart.Add(time.Duration(i+1)*time.Hour).Equal(pf.Frame.Focus))
		assert.Positive(t, pf.Frame.AnchorCount)
		assert.NotEmpty(t, pf.Frame.Paths)
	}
	assert.NoError(t, p.CheckReadiness(ctx))
}

// TestPipelineTransformError verifies that poison pills, out-of-range and
// superseded requests are skipped and the pipeline keeps publishing valid frames.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	// s1's newest request is out of range and its older one is stale, whether
	// or not they land in the same batch. Only s2 gets a frame.
	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")},
		requestMessage(t, frameRequest("s1", 2, 11*time.Hour)),
		requestMessage(t, frameRequest("s1", 1, 2*time.Hour)),
		requestMessage(t, frameRequest("s2", 2, time.Hour)),
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(newRegistry(t), discardLogger())
	p := pipeline.New(reader, transformer, writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	pf := readFrame(ctx, t, consumer)
	assert.Equal(t, "s2", pf.Frame.SessionID)
	assert.Equal(t, uint64(2), pf.Frame.Seq)

	// Verify no second message arrives.
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err := consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
