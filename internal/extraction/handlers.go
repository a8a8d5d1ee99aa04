package extraction

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/lexiflow-mocks/internal/httpapi"
)

const (
	// maxFormSize matches the limit of the receipt upload in the main app (50MB)
	maxFormSize = int64(50 << 20)

	// sourceHeader tells clients whether the result was parsed or made up
	sourceHeader = "X-OCR-Source"
)

// handleExtract extracts receipt fields from an upload or a named sample
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)

	err := r.ParseMultipartForm(maxFormSize)
	if errors.Is(err, http.ErrNotMultipart) {
		// Plain urlencoded forms can still name a sample
		err = r.ParseForm()
	}
	if err != nil {
		slog.Error("Error parsing form", "error", err)
		httpapi.WriteError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	var result *Result
	if sampleName := r.PostFormValue("sample_name"); sampleName != "" {
		result, err = s.service.ExtractSample(r.Context(), sampleName)
	} else {
		result, err = s.extractUpload(r)
	}
	if err != nil {
		s.writeExtractError(w, err)
		return
	}

	s.extractions.WithLabelValues(string(result.Source)).Inc()
	w.Header().Set(sourceHeader, string(result.Source))
	httpapi.WriteJSON(w, http.StatusOK, result)
}

// extractUpload reads the "file" part and hands it to the service
func (s *Server) extractUpload(r *http.Request) (*Result, error) {
	f, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, ErrNoInput
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return s.service.ExtractUpload(r.Context(), header.Filename, data, header.Header.Get("Content-Type"))
}

// writeExtractError maps service errors to status codes
func (s *Server) writeExtractError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoInput):
		httpapi.WriteError(w, http.StatusBadRequest, "Provide a file upload or sample_name.")
	case errors.Is(err, ErrEmptyFile):
		httpapi.WriteError(w, http.StatusBadRequest, "Empty file")
	case errors.Is(err, ErrSampleNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "Sample not found")
	default:
		slog.Error("Error extracting receipt", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
