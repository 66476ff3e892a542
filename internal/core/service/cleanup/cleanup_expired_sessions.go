package cleanup

import (
	"context"
	"errors"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"
	"time"
)

// SweepExpiredSessions marks every open session expired at now as failed and
// aborts its provider upload. It returns the number of sessions swept.
func (c *cleanupService) SweepExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	sessions, err := c.store.FindExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, session := range sessions {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}

		failed, changed, err := c.store.MarkFailed(ctx, session.ID)
		if errors.Is(err, domain.ErrSessionAlreadyTerminal) {
			// completed or aborted since it was listed
			continue
		}
		if err != nil {
			c.logger.Error("failed to mark expired session failed",
				slog.String("sessionID", session.ID.String()),
				slog.Any("err", err))
			continue
		}
		if !changed {
			// expired by a client read since it was listed
			continue
		}

		if err := c.storage.AbortMultipartUpload(ctx, session.StorageKey, session.UploadID); err != nil {
			c.logger.Warn("failed to abort expired provider upload",
				slog.String("sessionID", session.ID.String()),
				slog.String("uploadID", session.UploadID),
				slog.Any("err", err))
		}

		event := domain.NewSessionEvent(domain.SessionEventFailed, failed, now)
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.logger.Warn("failed to publish session event",
				slog.String("sessionID", session.ID.String()),
				slog.Any("err", err))
		}
		swept++
	}
	return swept, nil
}

// RunSweeper calls SweepExpiredSessions every interval until ctx is done
func RunSweeper(ctx context.Context, service port.CleanupService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("expiry sweep initialized", "interval", every)

	for {
		select {
		case <-ticker.C:
			swept, err := service.SweepExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.Error("expiry sweep failed", "error", err)
			} else if swept > 0 {
				logger.Info("expiry sweep completed", "swept", swept)
			}
		case <-ctx.Done():
			logger.Info("expiry sweep stopped")
			return
		}
	}
}
