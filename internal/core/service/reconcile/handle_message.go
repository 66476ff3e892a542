package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ion-upload/internal/core/domain"
	"log/slog"
	"net/url"
)

func (r *reconcileService) HandleMessage(ctx context.Context, data []byte) error {
	var event domain.BucketEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("could not unmarshal bucket event: %v", err)
	}
	if len(event.Records) == 0 {
		return fmt.Errorf("no records in bucket event")
	}

	for _, record := range event.Records {
		if record.EventName != domain.BucketEventMultipartComplete {
			r.logger.Debug("ignoring bucket event", slog.String("eventName", record.EventName))
			continue
		}

		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return err
		}
		if err := r.reconcile(ctx, key, record.S3.Object.Size, record.S3.Object.ETag); err != nil {
			return err
		}
	}
	return nil
}

func (r *reconcileService) reconcile(ctx context.Context, storageKey string, size int64, etag string) error {
	session, err := r.store.FindByStorageKey(ctx, storageKey)
	if errors.Is(err, domain.ErrSessionNotFound) {
		r.logger.Debug("no open session for object", slog.String("storageKey", storageKey))
		return nil
	}
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return nil
	}

	logger := r.logger.With(
		slog.String("sessionID", session.ID.String()),
		slog.String("storageKey", storageKey))

	if !session.MatchesAssembledObject(etag) {
		logger.Info("ignoring object completed from another upload", slog.String("eTag", etag))
		return nil
	}
	if size != session.TotalSize {
		logger.Warn("assembled object size mismatch",
			slog.Int64("expected", session.TotalSize),
			slog.Int64("actual", size))
		failed, changed, err := r.store.MarkFailed(ctx, session.ID)
		if err == nil && !changed {
			return nil
		}
		return r.close(ctx, failed, err)
	}
	if missing := session.MissingParts(); len(missing) > 0 {
		logger.Warn("object assembled before every part was acknowledged",
			slog.Any("missingParts", missing))
		return nil
	}

	logger.Info("finalizing session from bucket notification")
	completed, err := r.store.Finalize(ctx, session.ID)
	return r.close(ctx, completed, err)
}

// close publishes the terminal event of a store transition. Sessions closed
// concurrently by the coordinator are not an error.
func (r *reconcileService) close(ctx context.Context, session *domain.UploadSession, err error) error {
	if errors.Is(err, domain.ErrSessionAlreadyTerminal) {
		return nil
	}
	if err != nil {
		return err
	}

	event := domain.NewSessionEvent(domain.EventTypeForStatus(session.Status), session, r.now())
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("could not publish session event",
			slog.String("sessionID", session.ID.String()),
			slog.Any("err", err))
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }
