package multipart

import (
	"context"
	"ion-upload/internal/core/domain"
	"log/slog"

	"github.com/google/uuid"
)

// InitiateUpload plans the parts, opens the provider upload and records the session.
// When the session cannot be stored the provider upload is aborted.
func (s *multipartService) InitiateUpload(ctx context.Context, req domain.InitiateUploadRequest) (_ *domain.InitiatedUpload, err error) {
	ctx, end := s.begin(ctx, "initiate_upload", uuid.Nil)
	defer func() { end(err) }()

	if err := validateStorageKey(req.StorageKey); err != nil {
		return nil, err
	}
	contentType, err := normalizeContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	partSize, partCount, err := planParts(req.TotalSize, req.PartSizeHint, s.cfg)
	if err != nil {
		return nil, err
	}

	uploadID, err := s.storage.CreateMultipartUpload(ctx, req.StorageKey, contentType)
	if err != nil {
		return nil, err
	}

	session := domain.UploadSession{
		StorageKey:  req.StorageKey,
		ContentType: contentType,
		TotalSize:   req.TotalSize,
		PartSize:    partSize,
		PartCount:   partCount,
		Parts:       map[int]string{},
		Status:      domain.UploadSessionStatusInitiated,
		UploadID:    uploadID,
		ExpiresAt:   s.now().Add(s.cfg.SessionTTL),
	}

	id, err := s.store.Create(ctx, session)
	if err != nil {
		if abortErr := s.storage.AbortMultipartUpload(context.WithoutCancel(ctx), req.StorageKey, uploadID); abortErr != nil {
			s.logger.Warn("failed to abort orphaned multipart upload",
				slog.String("storageKey", req.StorageKey),
				slog.String("uploadID", uploadID),
				slog.Any("err", abortErr))
		}
		return nil, err
	}
	session.ID = id

	s.logger.Info("upload session initiated",
		slog.String("sessionID", id.String()),
		slog.String("storageKey", req.StorageKey),
		slog.Int64("partSize", partSize),
		slog.Int("partCount", partCount))
	s.transitioned(ctx, &session)

	return &domain.InitiatedUpload{
		SessionID: id,
		UploadID:  uploadID,
		PartSize:  partSize,
		PartCount: partCount,
		ExpiresAt: session.ExpiresAt,
	}, nil
}
