// Package retry wraps a multipart storage with bounded exponential backoff.
// Only failures marked retryable are attempted again.
package retry

import (
	"context"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Storage decorates a port.MultipartStorage with retries
type Storage struct {
	next   port.MultipartStorage
	cfg    config.RetryConfig
	logger *slog.Logger
}

var _ port.MultipartStorage = (*Storage)(nil)

// NewStorage wraps next. cfg.MaxAttempts counts the first call.
func NewStorage(next port.MultipartStorage, cfg config.RetryConfig, logger *slog.Logger) *Storage {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Storage{next: next, cfg: cfg, logger: logger}
}

func (s *Storage) CreateMultipartUpload(ctx context.Context, storageKey string, contentType string) (string, error) {
	var uploadID string
	err := s.retry(ctx, "multipart.create", func() error {
		var err error
		uploadID, err = s.next.CreateMultipartUpload(ctx, storageKey, contentType)
		return err
	})
	return uploadID, err
}

func (s *Storage) CompleteMultipartUpload(ctx context.Context, storageKey string, uploadID string, parts []domain.CompletedPart) error {
	return s.retry(ctx, "multipart.complete", func() error {
		return s.next.CompleteMultipartUpload(ctx, storageKey, uploadID, parts)
	})
}

func (s *Storage) AbortMultipartUpload(ctx context.Context, storageKey string, uploadID string) error {
	return s.retry(ctx, "multipart.abort", func() error {
		return s.next.AbortMultipartUpload(ctx, storageKey, uploadID)
	})
}

func (s *Storage) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx)
}

func (s *Storage) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("storage call failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("err", err))
	}
	return backoff.RetryNotify(operation, s.policy(ctx), notify)
}
