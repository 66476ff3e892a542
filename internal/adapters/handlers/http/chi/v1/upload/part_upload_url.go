package upload

import (
	"net/http"
)

type V1PartUploadURLsRequest struct {
	PartNumbers []int `json:"part_numbers"`
}

type V1PartUploadURLsResponse struct {
	URLs []V1PartUploadURLResponse `json:"urls"`
}

func (h *HandlerV1) GetPartUploadURLV1(w http.ResponseWriter, r *http.Request) {
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

	u, err := h.uploadService.GetPartUploadURL(r.Context(), sessionID, partNumber)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPartURLResponse(*u))
}

func (h *HandlerV1) GetPartUploadURLsV1(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req V1PartUploadURLsRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	urls, err := h.uploadService.GetPartUploadURLs(r.Context(), sessionID, req.PartNumbers)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := V1PartUploadURLsResponse{URLs: make([]V1PartUploadURLResponse, 0, len(urls))}
	for _, u := range urls {
		resp.URLs = append(resp.URLs, toPartURLResponse(u))
	}
	h.writeJSON(w, http.StatusOK, resp)
}
