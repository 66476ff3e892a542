package upload_test

import (
	"encoding/json"
	"fmt"
	"ion-upload/internal/adapters/handlers/http/chi/v1/upload"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/service/multipart"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetSessionV1(t *testing.T) {
	t.Run("success - lists parts in order", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		mockService := multipart.NewMockMultipartService()
		mockService.On("GetSession", mock.Anything, sessionID).Return(&domain.UploadSession{
			ID:         sessionID,
			StorageKey: "raw/a.mp4",
			TotalSize:  25,
			PartSize:   10,
			PartCount:  3,
			Parts:      map[int]string{3: "c", 1: "a"},
			Status:     domain.UploadSessionStatusInProgress,
			UploadID:   "upload-1",
		}, nil)

		// Act
		w := serve(t, mockService, http.MethodGet, "/api/v1/uploads/"+sessionID.String(), nil)

		// Assert
		assert.Equal(t, http.StatusOK, w.Code)
		var resp upload.V1SessionResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, []upload.V1Part{{PartNumber: 1, ETag: "a"}, {PartNumber: 3, ETag: "c"}}, resp.Parts)
		assert.Equal(t, []int{2}, resp.MissingParts)
		assert.Equal(t, domain.UploadSessionStatusInProgress, resp.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("error - session not found", func(t *testing.T) {
		// Arrange
		sessionID := uuid.New()
		mockService := multipart.NewMockMultipartService()
		mockService.On("GetSession", mock.Anything, sessionID).
			Return(nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID))

		// Act
		w := serve(t, mockService, http.MethodGet, "/api/v1/uploads/"+sessionID.String(), nil)

		// Assert
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, domain.KindNotFound, decodeError(t, w).Kind)
	})

	t.Run("error - invalid session ID format", func(t *testing.T) {
		mockService := multipart.NewMockMultipartService()

		w := serve(t, mockService, http.MethodGet, "/api/v1/uploads/invalid-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	})
}
