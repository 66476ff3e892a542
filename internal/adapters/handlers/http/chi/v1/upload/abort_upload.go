package upload

import (
	"net/http"
)

// AbortUploadV1 cancels the session and releases the provider upload
func (h *HandlerV1) AbortUploadV1(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.uploadService.AbortUpload(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}
