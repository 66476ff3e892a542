package upload

import (
	"net/http"
)

type V1AcknowledgePartRequest struct {
	ETag string `json:"etag"`
}

// AcknowledgePartV1 records the entity tag storage returned for an uploaded part
func (h *HandlerV1) AcknowledgePartV1(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	partNumber, err := partNumberParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req V1AcknowledgePartRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.uploadService.AcknowledgePart(r.Context(), sessionID, partNumber, req.ETag)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}
