package upload

import (
	"encoding/json"
	"errors"
	"ion-upload/internal/core/domain"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type V1Error struct {
	Kind         domain.ErrorKind `json:"kind"`
	Message      string           `json:"message"`
	MissingParts []int            `json:"missing_parts,omitempty"`
	ProviderCode string           `json:"provider_code,omitempty"`
}

type V1ErrorResponse struct {
	Error V1Error `json:"error"`
}

type V1SessionSummaryResponse struct {
	SessionID      uuid.UUID                  `json:"session_id"`
	Status         domain.UploadSessionStatus `json:"status"`
	PartsCompleted int                        `json:"parts_completed"`
	PartCount      int                        `json:"part_count"`
	MissingParts   []int                      `json:"missing_parts"`
}

type V1PartUploadURLResponse struct {
	PartNumber int       `json:"part_number"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toSummaryResponse(s *domain.SessionSummary) V1SessionSummaryResponse {
	missing := s.MissingParts
	if missing == nil {
		missing = []int{}
	}
	return V1SessionSummaryResponse{
		SessionID:      s.SessionID,
		Status:         s.Status,
		PartsCompleted: s.PartsCompleted,
		PartCount:      s.PartCount,
		MissingParts:   missing,
	}
}

func toPartURLResponse(u domain.PartUploadURL) V1PartUploadURLResponse {
	return V1PartUploadURLResponse{
		PartNumber: u.PartNumber,
		Method:     u.Method,
		URL:        u.URL,
		ExpiresAt:  u.ExpiresAt,
	}
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindIncompleteUpload:
		return http.StatusConflict
	case domain.KindSessionTerminal:
		return http.StatusGone
	case domain.KindStorage:
		if domain.IsRetryable(err) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *HandlerV1) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := V1Error{
		Kind:    domain.KindOf(err),
		Message: err.Error(),
	}

	var incomplete *domain.IncompleteUploadError
	if errors.As(err, &incomplete) {
		body.MissingParts = incomplete.MissingParts
	}
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		body.ProviderCode = storageErr.Code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("upload request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(body.Kind)),
			slog.Any("err", err))
		if status == http.StatusInternalServerError {
			body.Message = http.StatusText(status)
		}
	}

	h.writeJSON(w, status, V1ErrorResponse{Error: body})
}

// writeJSON encodes v before writing the header so a marshalling failure
// still yields a well-formed 500.
func (h *HandlerV1) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("error encoding response", slog.Any("err", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Warn("error writing response", slog.Any("err", err))
	}
}

func sessionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("sessionID", "must be a UUID")
	}
	return id, nil
}

func partNumberParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil {
		return 0, domain.NewValidationError("partNumber", "must be an integer")
	}
	return n, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}
