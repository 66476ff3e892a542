package multipart

import (
	"context"
	"ion-upload/internal/core/domain"

	"github.com/google/uuid"
)

// AcknowledgePart records the entity tag the client got back for a part
func (s *multipartService) AcknowledgePart(ctx context.Context, sessionID uuid.UUID, partNumber int, etag string) (_ *domain.SessionSummary, err error) {
	ctx, end := s.begin(ctx, "acknowledge_part", sessionID)
	defer func() { end(err) }()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.RecordPart(ctx, sessionID, partNumber, etag)
	if err != nil {
		return nil, err
	}
	if session.Status != updated.Status {
		s.transitioned(ctx, updated)
	}
	return updated.Summary(), nil
}
