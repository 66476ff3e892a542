package upload

import (
	"ion-upload/internal/core/domain"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type V1Part struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

type V1SessionResponse struct {
	SessionID    uuid.UUID                  `json:"session_id"`
	StorageKey   string                     `json:"storage_key"`
	ContentType  string                     `json:"content_type"`
	TotalSize    int64                      `json:"total_size"`
	PartSize     int64                      `json:"part_size"`
	PartCount    int                        `json:"part_count"`
	Status       domain.UploadSessionStatus `json:"status"`
	UploadID     string                     `json:"upload_id"`
	Parts        []V1Part                   `json:"parts"`
	MissingParts []int                      `json:"missing_parts"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
	ExpiresAt    time.Time                  `json:"expires_at"`
}

// GetSessionV1 lets a client resume: it lists acknowledged and missing parts
func (h *HandlerV1) GetSessionV1(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.uploadService.GetSession(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	parts := make([]V1Part, 0, len(session.Parts))
	for _, p := range session.OrderedParts() {
		parts = append(parts, V1Part{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	missing := session.MissingParts()
	if missing == nil {
		missing = []int{}
	}

	h.writeJSON(w, http.StatusOK, V1SessionResponse{
		SessionID:    session.ID,
		StorageKey:   session.StorageKey,
		ContentType:  session.ContentType,
		TotalSize:    session.TotalSize,
		PartSize:     session.PartSize,
		PartCount:    session.PartCount,
		Status:       session.Status,
		UploadID:     session.UploadID,
		Parts:        parts,
		MissingParts: missing,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		ExpiresAt:    session.ExpiresAt,
	})
}
