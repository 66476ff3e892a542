package upload

import (
	"ion-upload/internal/core/domain"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type V1InitiateUploadRequest struct {
	StorageKey  string `json:"storage_key"`
	TotalSize   int64  `json:"total_size"`
	ContentType string `json:"content_type"`
	PartSize    int64  `json:"part_size,omitempty"`
}

type V1InitiateUploadResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	UploadID  string    `json:"upload_id"`
	PartSize  int64     `json:"part_size"`
	PartCount int       `json:"part_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *HandlerV1) InitiateUploadV1(w http.ResponseWriter, r *http.Request) {
	var req V1InitiateUploadRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	initiated, err := h.uploadService.InitiateUpload(r.Context(), domain.InitiateUploadRequest{
		StorageKey:   req.StorageKey,
		TotalSize:    req.TotalSize,
		ContentType:  req.ContentType,
		PartSizeHint: req.PartSize,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, V1InitiateUploadResponse{
		SessionID: initiated.SessionID,
		UploadID:  initiated.UploadID,
		PartSize:  initiated.PartSize,
		PartCount: initiated.PartCount,
		ExpiresAt: initiated.ExpiresAt,
	})
}
