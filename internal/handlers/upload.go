package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/lehigh-university-libraries/siteobserver/internal/analysis"
	"github.com/lehigh-university-libraries/siteobserver/internal/imaging"
)

// multipartOverhead leaves room for the form fields around the image
const multipartOverhead = 1 << 20

// HandleAnalyze accepts a multipart upload with an "image" file and an
// optional "keyword" field.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, h.tooLargeMessage(), http.StatusBadRequest)
			return
		}
		h.writeError(w, "Failed to read image: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := imaging.ValidateContentType(contentType); err != nil {
		h.writeError(w, "Only JPG and PNG images are supported", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		h.writeError(w, h.tooLargeMessage(), http.StatusBadRequest)
		return
	}

	resp, err := h.service.Analyze(r.Context(), analysis.AnalyzeInput{
		Data:        data,
		ContentType: contentType,
		Filename:    header.Filename,
		Keyword:     r.FormValue("keyword"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) tooLargeMessage() string {
	return fmt.Sprintf("File too large (max %s)", humanize.IBytes(uint64(h.maxUploadBytes)))
}
