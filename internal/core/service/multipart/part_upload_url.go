package multipart

import (
	"context"
	"fmt"
	"ion-upload/internal/core/domain"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// GetPartUploadURL signs a PUT for one part. The session is not modified.
func (s *multipartService) GetPartUploadURL(ctx context.Context, sessionID uuid.UUID, partNumber int) (_ *domain.PartUploadURL, err error) {
	ctx, end := s.begin(ctx, "get_part_upload_url", sessionID)
	defer func() { end(err) }()

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.ValidatePartNumber(partNumber); err != nil {
		return nil, err
	}

	part, err := s.presignPart(session, partNumber, s.now())
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// GetPartUploadURLs signs PUTs for several parts, in the requested order
func (s *multipartService) GetPartUploadURLs(ctx context.Context, sessionID uuid.UUID, partNumbers []int) (_ []domain.PartUploadURL, err error) {
	ctx, end := s.begin(ctx, "get_part_upload_urls", sessionID)
	defer func() { end(err) }()

	if len(partNumbers) == 0 {
		return nil, domain.NewValidationError("part_numbers", "must not be empty")
	}

	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(partNumbers))
	for _, n := range partNumbers {
		if err := session.ValidatePartNumber(n); err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			return nil, domain.NewValidationError("part_numbers", fmt.Sprintf("part %d requested twice", n))
		}
		seen[n] = struct{}{}
	}

	now := s.now()
	urls := make([]domain.PartUploadURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		part, err := s.presignPart(session, n, now)
		if err != nil {
			return nil, err
		}
		urls = append(urls, part)
	}
	return urls, nil
}

// openSession loads a session that still accepts parts
func (s *multipartService) openSession(ctx context.Context, id uuid.UUID) (*domain.UploadSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, domain.NewTerminalStateError(session.ID, session.Status)
	}
	return session, nil
}

// presignPart signs the part PUT. The URL never outlives the session.
func (s *multipartService) presignPart(session *domain.UploadSession, partNumber int, now time.Time) (domain.PartUploadURL, error) {
	expires := min(s.cfg.PartURLExpiry, session.ExpiresAt.Sub(now)).Truncate(time.Second)
	if expires < time.Second {
		expires = time.Second
	}

	query := url.Values{}
	query.Set("partNumber", strconv.Itoa(partNumber))
	query.Set("uploadId", session.UploadID)

	signed, err := s.signer.PresignObject(http.MethodPut, session.StorageKey, query, expires, now)
	if err != nil {
		return domain.PartUploadURL{}, err
	}
	return domain.PartUploadURL{
		PartNumber: partNumber,
		Method:     http.MethodPut,
		URL:        signed,
		ExpiresAt:  now.Add(expires),
	}, nil
}
