package multipart

import (
	"context"
	"ion-upload/internal/core/domain"
	"log/slog"

	"github.com/google/uuid"
)

// AbortUpload abandons an open session. The provider abort is best effort.
// Of concurrent calls only the one that moves the session to aborted succeeds.
func (s *multipartService) AbortUpload(ctx context.Context, sessionID uuid.UUID) (_ *domain.SessionSummary, err error) {
	ctx, end := s.begin(ctx, "abort_upload", sessionID)
	defer func() { end(err) }()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.abortProvider(ctx, session)

	aborted, changed, err := s.store.Abort(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, domain.NewTerminalStateError(sessionID, aborted.Status)
	}

	s.logger.Info("upload session aborted", slog.String("sessionID", sessionID.String()))
	s.transitioned(ctx, aborted)
	return aborted.Summary(), nil
}
