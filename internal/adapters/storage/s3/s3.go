// Package s3 drives multipart uploads through the AWS SDK.
package s3

import (
	"context"
	"errors"
	"fmt"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const defaultContentType = "application/octet-stream"

// Client is the subset of the SDK client the adapter calls
type Client interface {
	CreateMultipartUpload(ctx context.Context, params *awss3.CreateMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *awss3.CompleteMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *awss3.AbortMultipartUploadInput, optFns ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

// Adapter implements port.MultipartStorage with aws-sdk-go-v2
type Adapter struct {
	client Client
	bucket string
	logger *slog.Logger
}

var _ port.MultipartStorage = (*Adapter)(nil)

// NewClient builds an SDK client for cfg with SDK retries turned off
func NewClient(ctx context.Context, cfg config.StorageConfig) (*awss3.Client, error) {
	endpoint, err := cfg.EndpointURL()
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, domain.NewConfigurationError("STORAGE_*", fmt.Sprintf("failed to load aws config: %v", err))
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(endpoint.String())
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// NewAdapter creates an Adapter, creating the bucket first when configured to
func NewAdapter(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Adapter, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.CreateBucket {
		_, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		switch {
		case err == nil:
			logger.Info("bucket created", slog.String("bucket", cfg.Bucket))
		case errors.As(err, &owned), errors.As(err, &exists):
		default:
			return nil, storageError("bucket.create", err)
		}
	}

	return NewAdapterWithClient(client, cfg.Bucket, logger), nil
}

// NewAdapterWithClient creates an Adapter on an existing client
func NewAdapterWithClient(client Client, bucket string, logger *slog.Logger) *Adapter {
	return &Adapter{client: client, bucket: bucket, logger: logger}
}

// CreateMultipartUpload starts a multipart upload and returns its id
func (a *Adapter) CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	out, err := a.client.CreateMultipartUpload(ctx, &awss3.CreateMultipartUploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(storageKey),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", storageError("multipart.create", err)
	}
	uploadID := aws.ToString(out.UploadId)
	if uploadID == "" {
		return "", &domain.StorageError{Op: "multipart.create", Err: errors.New("provider returned an empty upload id")}
	}
	return uploadID, nil
}

// CompleteMultipartUpload assembles the object from parts, which must be sorted
func (a *Adapter) CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(int32(part.PartNumber)),
			ETag:       aws.String(domain.NormalizeETag(part.ETag)),
		})
	}

	_, err := a.client.CompleteMultipartUpload(ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(storageKey),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
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
	_, err := a.client.AbortMultipartUpload(ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(storageKey),
		UploadId: aws.String(uploadID),
	})
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

	se := &domain.StorageError{Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Code = apiErr.ErrorCode()
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		se.StatusCode = respErr.HTTPStatusCode()
	}
	se.Retryable = domain.RetryableFailure(se.StatusCode, err)
	return se
}
