package cleanup_test

import (
	"context"
	"errors"
	"io"
	"ion-upload/internal/adapters/eventbroker"
	"ion-upload/internal/adapters/repository"
	"ion-upload/internal/adapters/repository/memory"
	"ion-upload/internal/adapters/storage"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/service/cleanup"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSession(key string, expiresAt time.Time) domain.UploadSession {
	return domain.UploadSession{
		StorageKey: key,
		TotalSize:  10,
		PartSize:   10,
		PartCount:  1,
		Status:     domain.UploadSessionStatusInitiated,
		UploadID:   "upload-" + key,
		ExpiresAt:  expiresAt,
	}
}

func TestCleanupService_SweepExpiredSessions_NoExpiredSessions(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := repository.NewMockUploadSessionStore()
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(store, mockStorage, nil, discardLogger)

	now := time.Now()
	store.On("FindExpired", ctx, now).Return([]domain.UploadSession{}, nil)

	// Act
	swept, err := service.SweepExpiredSessions(ctx, now)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, 0, swept)
	store.AssertExpectations(t)
	mockStorage.AssertNotCalled(t, "AbortMultipartUpload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupService_SweepExpiredSessions(t *testing.T) {
	// Arrange
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewSessionStore().WithClock(func() time.Time { return now })
	mockStorage := storage.NewMockStorage()
	publisher := eventbroker.NewMockPublisher()
	service := cleanup.NewCleanupService(store, mockStorage, publisher, discardLogger)

	expiredID, err := store.Create(ctx, newSession("expired", now.Add(-time.Minute)))
	require.NoError(t, err)
	openID, err := store.Create(ctx, newSession("open", now.Add(time.Hour)))
	require.NoError(t, err)

	mockStorage.On("AbortMultipartUpload", ctx, "expired", "upload-expired").Return(nil)
	publisher.On("Publish", ctx, mock.MatchedBy(func(e domain.SessionEvent) bool {
		return e.Type == domain.SessionEventFailed && e.SessionID == expiredID
	})).Return(nil)

	// Act
	swept, err := service.SweepExpiredSessions(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	expired, err := store.Get(ctx, expiredID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusFailed, expired.Status)
	open, err := store.Get(ctx, openID)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusInitiated, open.Status)

	mockStorage.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCleanupService_SweepExpiredSessions_ProviderAbortFailureIsNotFatal(t *testing.T) {
	// Arrange
	ctx := context.Background()
	now := time.Now()
	store := memory.NewSessionStore().WithClock(func() time.Time { return now })
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(store, mockStorage, nil, discardLogger)

	id, err := store.Create(ctx, newSession("expired", now.Add(-time.Minute)))
	require.NoError(t, err)
	mockStorage.On("AbortMultipartUpload", ctx, "expired", "upload-expired").
		Return(&domain.StorageError{Op: "multipart.abort", Code: "NoSuchUpload", StatusCode: 404})

	// Act
	swept, err := service.SweepExpiredSessions(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	session, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStatusFailed, session.Status)
}

func TestCleanupService_SweepExpiredSessions_SkipsSessionsClosedMeanwhile(t *testing.T) {
	// Arrange
	ctx := context.Background()
	now := time.Now()
	store := repository.NewMockUploadSessionStore()
	mockStorage := storage.NewMockStorage()
	service := cleanup.NewCleanupService(store, mockStorage, nil, discardLogger)

	completed := newSession("done", now.Add(-time.Minute))
	completed.ID = uuid.New()
	store.On("FindExpired", ctx, now).Return([]domain.UploadSession{completed}, nil)
	store.On("MarkFailed", ctx, completed.ID).
		Return(nil, false, domain.NewTerminalStateError(completed.ID, domain.UploadSessionStatusCompleted))

	// Act
	swept, err := service.SweepExpiredSessions(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	mockStorage.AssertNotCalled(t, "AbortMultipartUpload", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupService_SweepExpiredSessions_SkipsSessionsExpiredByAnotherCaller(t *testing.T) {
	// Arrange
	ctx := context.Background()
	now := time.Now()
	store := repository.NewMockUploadSessionStore()
	mockStorage := storage.NewMockStorage()
	publisher := eventbroker.NewMockPublisher()
	service := cleanup.NewCleanupService(store, mockStorage, publisher, discardLogger)

	listed := newSession("expired", now.Add(-time.Minute))
	listed.ID = uuid.New()
	failed := listed
	failed.Status = domain.UploadSessionStatusFailed
	store.On("FindExpired", ctx, now).Return([]domain.UploadSession{listed}, nil)
	store.On("MarkFailed", ctx, listed.ID).Return(&failed, false, nil)

	// Act
	swept, err := service.SweepExpiredSessions(ctx, now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	mockStorage.AssertNotCalled(t, "AbortMultipartUpload", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCleanupService_SweepExpiredSessions_FindError(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := repository.NewMockUploadSessionStore()
	service := cleanup.NewCleanupService(store, storage.NewMockStorage(), nil, discardLogger)
	store.On("FindExpired", ctx, now).Return(nil, &domain.StorageError{Op: "session.find_expired", Err: errors.New("db down")})

	_, err := service.SweepExpiredSessions(ctx, now)

	require.ErrorIs(t, err, domain.ErrStorage)
}
