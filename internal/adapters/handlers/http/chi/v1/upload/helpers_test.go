package upload_test

import (
	"bytes"
	"encoding/json"
	"io"
	"ion-upload/internal/adapters/handlers/http/chi"
	"ion-upload/internal/adapters/handlers/http/chi/v1/upload"
	"ion-upload/internal/core/service/multipart"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func serve(t *testing.T, service *multipart.MockMultipartService, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	handler := upload.NewUploadHandlerV1(service, discardLogger)
	h := chi.NewRouter(discardLogger, handler, nil, "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) upload.V1Error {
	t.Helper()
	var resp upload.V1ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

