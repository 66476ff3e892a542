package multipart

import (
	"context"
	"ion-upload/internal/core/domain"

	"github.com/google/uuid"
)

// GetSession returns the session so a client can resume it
func (s *multipartService) GetSession(ctx context.Context, sessionID uuid.UUID) (_ *domain.UploadSession, err error) {
	ctx, end := s.begin(ctx, "get_session", sessionID)
	defer func() { end(err) }()

	return s.load(ctx, sessionID)
}
