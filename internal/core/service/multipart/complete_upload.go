package multipart

import (
	"context"
	"errors"
	"ion-upload/internal/core/domain"
	"log/slog"

	"github.com/google/uuid"
)

// CompleteUpload asks the provider to assemble the object, then finalizes the
// session. A provider failure leaves the session open so the call can be retried.
func (s *multipartService) CompleteUpload(ctx context.Context, sessionID uuid.UUID) (_ *domain.SessionSummary, err error) {
	ctx, end := s.begin(ctx, "complete_upload", sessionID)
	defer func() { end(err) }()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if missing := session.MissingParts(); len(missing) > 0 {
		return nil, &domain.IncompleteUploadError{MissingParts: missing}
	}

	if err := s.storage.CompleteMultipartUpload(ctx, session.StorageKey, session.UploadID, session.OrderedParts()); err != nil {
		return nil, err
	}

	completed, err := s.store.Finalize(ctx, sessionID)
	var terminal *domain.TerminalStateError
	if errors.As(err, &terminal) && terminal.Status == domain.UploadSessionStatusCompleted {
		// finalized by the reconciler from the bucket notification
		completed, err = s.store.Get(ctx, sessionID)
		if err == nil {
			return completed.Summary(), nil
		}
	}
	if err != nil {
		s.logger.Error("object assembled but session not finalized",
			slog.String("sessionID", sessionID.String()),
			slog.String("storageKey", session.StorageKey),
			slog.Any("err", err))
		return nil, err
	}

	s.logger.Info("upload session completed",
		slog.String("sessionID", sessionID.String()),
		slog.String("storageKey", completed.StorageKey),
		slog.Int("parts", completed.PartCount))
	s.transitioned(ctx, completed)
	return completed.Summary(), nil
}
