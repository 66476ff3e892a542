package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"ion-upload/internal/adapters/eventbroker"
	"ion-upload/internal/adapters/repository"
	"ion-upload/internal/adapters/repository/memory"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/service/reconcile"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// part digests of "part-1".."part-3" and the tag of the object assembled from them
var (
	partETags     = map[int]string{1: "78429f7462d636a84d9c922f495599c5", 2: "bca7c72402361f2a3af235b051ce87f4", 3: "6d063ffc152b9b78c048d4f25a3ff703"}
	assembledETag = "5cc5d14cf6f197a202f6c885586d9ca7-3"
)

func bucketEvent(t *testing.T, eventName, key string, size int64) []byte {
	t.Helper()
	return bucketEventWithETag(t, eventName, key, size, assembledETag)
}

func bucketEventWithETag(t *testing.T, eventName, key string, size int64, etag string) []byte {
	t.Helper()
	payload := map[string]any{
		"EventName": eventName,
		"Key":       "videos/" + key,
		"Records": []map[string]any{{
			"eventName": eventName,
			"s3": map[string]any{
				"bucket": map[string]any{"name": "videos"},
				"object": map[string]any{"key": url.QueryEscape(key), "size": size, "eTag": etag},
			},
		}},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func createSession(t *testing.T, store *memory.SessionStore, key string, acknowledged ...int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id, err := store.Create(ctx, domain.UploadSession{
		StorageKey: key,
		TotalSize:  25,
		PartSize:   10,
		PartCount:  3,
		Status:     domain.UploadSessionStatusInitiated,
		UploadID:   "upload-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	for _, n := range acknowledged {
		_, err := store.RecordPart(ctx, id, n, partETags[n])
		require.NoError(t, err)
	}
	return id
}

func TestReconcileService_HandleMessage_FinalizesSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewSessionStore()
	publisher := eventbroker.NewMockPublisher()
	service := reconcile.NewReconcileService(store, publisher, discardLogger)

	id := createSession(t, store, "raw/my video.mp4", 1, 2, 3)
	publisher.On("Publish", ctx, mock.MatchedBy(func(e domain.SessionEvent) bool {
		return e.Type == domain.SessionEventCompleted && e.SessionID == id
	})).Return(nil)

	// Act
	err := service.HandleMessage(ctx, bucketEvent(t, domain.BucketEventMultipartComplete, "raw/my video.mp4", 25))

	// Assert
	require.NoError(t, err)
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusCompleted, session.Status)
	publisher.AssertExpectations(t)
}

func TestReconcileService_HandleMessage_SizeMismatchFailsSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewSessionStore()
	publisher := eventbroker.NewMockPublisher()
	service := reconcile.NewReconcileService(store, publisher, discardLogger)

	id := createSession(t, store, "raw/a.mp4", 1, 2, 3)
	publisher.On("Publish", ctx, mock.MatchedBy(func(e domain.SessionEvent) bool {
		return e.Type == domain.SessionEventFailed
	})).Return(nil)

	// Act
	err := service.HandleMessage(ctx, bucketEvent(t, domain.BucketEventMultipartComplete, "raw/a.mp4", 24))

	// Assert
	require.NoError(t, err)
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusFailed, session.Status)
}

func TestReconcileService_HandleMessage_IgnoresObjectFromAnotherUpload(t *testing.T) {
	tests := []struct {
		name string
		etag string
		size int64
	}{
		{name: "other part count", etag: "5cc5d14cf6f197a202f6c885586d9ca7-2", size: 25},
		{name: "other digest", etag: "0123456789abcdef0123456789abcdef-3", size: 25},
		{name: "single part upload", etag: "78429f7462d636a84d9c922f495599c5", size: 25},
		{name: "other size and part count", etag: "5cc5d14cf6f197a202f6c885586d9ca7-2", size: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			store := memory.NewSessionStore()
			publisher := eventbroker.NewMockPublisher()
			service := reconcile.NewReconcileService(store, publisher, discardLogger)
			id := createSession(t, store, "raw/a.mp4", 1, 2, 3)

			// Act
			err := service.HandleMessage(ctx, bucketEventWithETag(t, domain.BucketEventMultipartComplete, "raw/a.mp4", tt.size, tt.etag))

			// Assert
			require.NoError(t, err)
			session, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.UploadSessionStatusInProgress, session.Status)
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestReconcileService_HandleMessage_MissingPartsLeavesSessionOpen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewSessionStore()
	publisher := eventbroker.NewMockPublisher()
	service := reconcile.NewReconcileService(store, publisher, discardLogger)

	id := createSession(t, store, "raw/a.mp4", 1)

	// Act
	err := service.HandleMessage(ctx, bucketEvent(t, domain.BucketEventMultipartComplete, "raw/a.mp4", 25))

	// Assert
	require.NoError(t, err)
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusInProgress, session.Status)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestReconcileService_HandleMessage_Ignored(t *testing.T) {
	tests := []struct {
		name  string
		event string
		key   string
		setup func(t *testing.T, store *memory.SessionStore)
	}{
		{
			name:  "other event",
			event: "s3:ObjectCreated:Put",
			key:   "raw/a.mp4",
			setup: func(t *testing.T, store *memory.SessionStore) { createSession(t, store, "raw/a.mp4", 1, 2, 3) },
		},
		{
			name:  "unknown key",
			event: domain.BucketEventMultipartComplete,
			key:   "raw/unknown.mp4",
			setup: func(*testing.T, *memory.SessionStore) {},
		},
		{
			name:  "session already completed",
			event: domain.BucketEventMultipartComplete,
			key:   "raw/a.mp4",
			setup: func(t *testing.T, store *memory.SessionStore) {
				id := createSession(t, store, "raw/a.mp4", 1, 2, 3)
				_, err := store.Finalize(context.Background(), id)
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store := memory.NewSessionStore()
			publisher := eventbroker.NewMockPublisher()
			service := reconcile.NewReconcileService(store, publisher, discardLogger)
			tt.setup(t, store)

			// Act
			err := service.HandleMessage(context.Background(), bucketEvent(t, tt.event, tt.key, 25))

			// Assert
			require.NoError(t, err)
			publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestReconcileService_HandleMessage_InvalidPayload(t *testing.T) {
	service := reconcile.NewReconcileService(memory.NewSessionStore(), nil, discardLogger)

	assert.Error(t, service.HandleMessage(context.Background(), []byte("{not json")))
	assert.Error(t, service.HandleMessage(context.Background(), []byte(`{"Records":[]}`)))
}

func TestReconcileService_HandleMessage_StoreErrorIsReturned(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := repository.NewMockUploadSessionStore()
	service := reconcile.NewReconcileService(store, nil, discardLogger)
	store.On("FindByStorageKey", ctx, "raw/a.mp4").
		Return(nil, &domain.StorageError{Op: "session.find_by_key", Err: errors.New("db down")})

	// Act
	err := service.HandleMessage(ctx, bucketEvent(t, domain.BucketEventMultipartComplete, "raw/a.mp4", 25))

	// Assert
	require.ErrorIs(t, err, domain.ErrStorage)
}

func TestReconcileService_HandleMessage_ClosedConcurrently(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := repository.NewMockUploadSessionStore()
	service := reconcile.NewReconcileService(store, nil, discardLogger)

	session := &domain.UploadSession{
		ID:         uuid.New(),
		StorageKey: "raw/a.mp4",
		TotalSize:  25,
		PartSize:   10,
		PartCount:  3,
		Parts:      partETags,
		Status:     domain.UploadSessionStatusInProgress,
	}
	store.On("FindByStorageKey", ctx, "raw/a.mp4").Return(session, nil)
	store.On("Finalize", ctx, session.ID).
		Return(nil, domain.NewTerminalStateError(session.ID, domain.UploadSessionStatusCompleted))

	// Act
	err := service.HandleMessage(ctx, bucketEvent(t, domain.BucketEventMultipartComplete, "raw/a.mp4", 25))

	// Assert
	require.NoError(t, err)
	store.AssertExpectations(t)
}
