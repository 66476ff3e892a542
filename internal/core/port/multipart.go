package port

import (
	"context"
	"ion-upload/internal/core/domain"

	"github.com/google/uuid"
)

// MultipartService is the client-facing upload protocol
type MultipartService interface {
	InitiateUpload(ctx context.Context, req domain.InitiateUploadRequest) (*domain.InitiatedUpload, error)
	GetPartUploadURL(ctx context.Context, sessionID uuid.UUID, partNumber int) (*domain.PartUploadURL, error)
	GetPartUploadURLs(ctx context.Context, sessionID uuid.UUID, partNumbers []int) ([]domain.PartUploadURL, error)
	AcknowledgePart(ctx context.Context, sessionID uuid.UUID, partNumber int, etag string) (*domain.SessionSummary, error)
	CompleteUpload(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error)
	AbortUpload(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.UploadSession, error)
}
