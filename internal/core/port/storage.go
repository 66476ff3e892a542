package port

import (
	"context"
	"ion-upload/internal/core/domain"
)

// MultipartStorage is an interface to drive multipart uploads on an object store.
// Failures are returned as *domain.StorageError.
type MultipartStorage interface {
	CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error)
	CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error
	AbortMultipartUpload(ctx context.Context, storageKey string, uploadID string) error
}
