package upload

import (
	"net/http"
)

func (h *HandlerV1) CompleteUploadV1(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.uploadService.CompleteUpload(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}
