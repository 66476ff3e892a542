package minio

import (
	"context"
	"errors"
	"fmt"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultContentType = "application/octet-stream"

// Adapter is an adapter for minio
type Adapter struct {
	client *minio.Client
	core   *minio.Core
	bucket string
	logger *slog.Logger
}

var _ port.MultipartStorage = (*Adapter)(nil)

// NewAdapter returns Adapter. Retries are disabled in the client, the retry
// decorator owns them.
func NewAdapter(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Adapter, error) {
	endpoint, err := cfg.EndpointURL()
	if err != nil {
		return nil, err
	}

	lookup := minio.BucketLookupDNS
	if cfg.UsePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure:       endpoint.Scheme == "https",
		Region:       cfg.Region,
		BucketLookup: lookup,
		MaxRetries:   1,
	})
	if err != nil {
		return nil, domain.NewConfigurationError("STORAGE_ENDPOINT", fmt.Sprintf("failed to create minio client: %v", err))
	}

	if cfg.CreateBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, storageError("bucket.exists", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, storageError("bucket.create", err)
			}
			logger.Info("bucket created", slog.String("bucket", cfg.Bucket))
		}
	}

	core := minio.Core{Client: client}
	return &Adapter{client: client, core: &core, bucket: cfg.Bucket, logger: logger}, nil
}

// CreateMultipartUpload inits a multi part upload
func (a *Adapter) CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	uploadID, err := a.core.NewMultipartUpload(ctx, a.bucket, storageKey, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", storageError("multipart.create", err)
	}
	return uploadID, nil
}

// CompleteMultipartUpload marks the minio multipart as complete. parts must be sorted.
func (a *Adapter) CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error {
	completeParts := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completeParts = append(completeParts, minio.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       domain.NormalizeETag(part.ETag),
		})
	}

	_, err := a.core.CompleteMultipartUpload(ctx, a.bucket, storageKey, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		return storageError("multipart.complete", err)
	}

	a.logger.Info("multipart upload completed",
		slog.String("storageKey", storageKey),
		slog.String("uploadID", uploadID),
		slog.Int("parts", len(parts)))
	return nil
}

// AbortMultipartUpload discards the parts uploaded so far
func (a *Adapter) AbortMultipartUpload(ctx context.Context, storageKey string, uploadID string) error {
	err := a.core.AbortMultipartUpload(ctx, a.bucket, storageKey, uploadID)
	if err != nil {
		return storageError("multipart.abort", err)
	}

	a.logger.Info("multipart upload aborted",
		slog.String("storageKey", storageKey),
		slog.String("uploadID", uploadID))
	return nil
}

func storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.StorageError{Op: op, Err: err}
	}
	resp := minio.ToErrorResponse(err)
	return &domain.StorageError{
		Op:         op,
		Code:       resp.Code,
		StatusCode: resp.StatusCode,
		Retryable:  domain.RetryableFailure(resp.StatusCode, err),
		Err:        err,
	}
}
