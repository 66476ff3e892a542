package port

import (
	"context"
	"ion-upload/internal/core/domain"
	"time"

	"github.com/google/uuid"
)

// UploadSessionStore is an interface to interact with upload session stores.
// Every mutation is atomic per session id.
type UploadSessionStore interface {
	Create(ctx context.Context, session domain.UploadSession) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error)
	RecordPart(ctx context.Context, id uuid.UUID, partNumber int, etag string) (*domain.UploadSession, error)
	Finalize(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error)
	// Abort and MarkFailed are idempotent. changed is false when the session
	// already had the target status, so concurrent callers can elect one winner.
	Abort(ctx context.Context, id uuid.UUID) (session *domain.UploadSession, changed bool, err error)
	MarkFailed(ctx context.Context, id uuid.UUID) (session *domain.UploadSession, changed bool, err error)
	FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error)
	FindByStorageKey(ctx context.Context, storageKey string) (*domain.UploadSession, error)
}
