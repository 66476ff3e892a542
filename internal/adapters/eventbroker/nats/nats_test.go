package nats_test

import (
	"context"
	"encoding/json"
	"io"
	nats2 "ion-upload/internal/adapters/eventbroker/nats"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingHandler struct {
	mu       sync.Mutex
	messages [][]byte
	received chan struct{}
	err      error
}

func newRecordingHandler(err error) *recordingHandler {
	return &recordingHandler{received: make(chan struct{}, 16), err: err}
}

func (h *recordingHandler) HandleMessage(_ context.Context, data []byte) error {
	h.mu.Lock()
	h.messages = append(h.messages, data)
	h.mu.Unlock()
	h.received <- struct{}{}
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func (h *recordingHandler) first() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages[0]
}

func (h *recordingHandler) wait(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-h.received:
		case <-deadline:
			t.Fatalf("received %d of %d deliveries", i, n)
		}
	}
}

// startNATS runs a JetStream enabled server and returns its url and a client
func startNATS(t *testing.T) (string, jetstream.JetStream) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"-js"},
			WaitingFor:   wait.ForLog("Server is ready"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)
	url := "nats://" + host + ":" + port.Port()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	return url, js
}

func bucketStream(t *testing.T, js jetstream.JetStream, name, subject string) config.NATSConfig {
	t.Helper()
	_, err := js.CreateStream(context.Background(), jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
	})
	require.NoError(t, err)
	return config.NATSConfig{
		StreamName:   name,
		Subject:      subject,
		ConsumerName: name + "-reconciler",
	}
}

func TestConsumer_Subscribe(t *testing.T) {
	// Arrange
	url, js := startNATS(t)
	cfg := bucketStream(t, js, "MINIO", "minio.bucket.events")
	cfg.URL = url

	consumer, err := nats2.NewNATSConsumer(cfg, discardLogger)
	require.NoError(t, err)
	defer consumer.Close()

	handler := newRecordingHandler(nil)
	payload := []byte(`{"EventName":"` + domain.BucketEventMultipartComplete + `","Key":"videos/raw/a.mp4"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Act
	require.NoError(t, consumer.Subscribe(ctx, handler))
	_, err = js.Publish(ctx, cfg.Subject, payload)
	require.NoError(t, err)
	handler.wait(t, 1, 3*time.Second)

	// Assert
	assert.Equal(t, payload, handler.first())
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, handler.count(), "acked message is not redelivered")
}

func TestConsumer_Subscribe_HandlerErrorIsRedeliveredUpToLimit(t *testing.T) {
	// Arrange
	url, js := startNATS(t)
	cfg := bucketStream(t, js, "RETRY", "retry.events")
	cfg.URL = url

	consumer, err := nats2.NewNATSConsumer(cfg, discardLogger)
	require.NoError(t, err)
	defer consumer.Close()

	handler := newRecordingHandler(assert.AnError)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act
	require.NoError(t, consumer.Subscribe(ctx, handler))
	_, err = js.Publish(ctx, cfg.Subject, []byte("fail"))
	require.NoError(t, err)

	// Assert
	handler.wait(t, 5, 10*time.Second)
	time.Sleep(time.Second)
	assert.Equal(t, 5, handler.count())
}

func TestConsumer_Close_StopsDelivery(t *testing.T) {
	// Arrange
	url, js := startNATS(t)
	cfg := bucketStream(t, js, "SHUTDOWN", "shutdown.events")
	cfg.URL = url

	consumer, err := nats2.NewNATSConsumer(cfg, discardLogger)
	require.NoError(t, err)
	handler := newRecordingHandler(nil)

	// Act
	require.NoError(t, consumer.Subscribe(context.Background(), handler))
	require.NoError(t, consumer.Close())
	_, err = js.Publish(context.Background(), cfg.Subject, []byte("late"))
	require.NoError(t, err)

	// Assert
	select {
	case <-handler.received:
		t.Fatal("message processed after Close")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestPublisher_Publish(t *testing.T) {
	// Arrange
	url, js := startNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.NATSConfig{
		URL:           url,
		ConsumerName:  "api",
		EventsStream:  "UPLOAD_EVENTS",
		EventsSubject: "uploads.events",
	}
	publisher, err := nats2.NewNATSPublisher(ctx, cfg, discardLogger)
	require.NoError(t, err)
	defer publisher.Close()

	event := domain.SessionEvent{
		Type:       domain.SessionEventCompleted,
		SessionID:  uuid.New(),
		StorageKey: "raw/a.mp4",
		UploadID:   "upload-1",
		Status:     domain.UploadSessionStatusCompleted,
		TotalSize:  25,
		PartCount:  3,
		OccurredAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	// Act
	require.NoError(t, publisher.Publish(ctx, event))
	require.NoError(t, publisher.Publish(ctx, event))

	// Assert
	stream, err := js.Stream(ctx, "UPLOAD_EVENTS")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs, "duplicate publish is dropped")

	msg, err := stream.GetMsg(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "uploads.events", msg.Subject)
	var got domain.SessionEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, event, got)
}
