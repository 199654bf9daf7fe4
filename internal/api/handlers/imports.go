package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
)

// multipartSlack covers the multipart framing around the file part.
const multipartSlack = 1 << 20

type ImportHandler struct {
	imports  *imports.Service
	maxBytes int64
	logger   *slog.Logger
}

func NewImportHandler(importSvc *imports.Service, maxBytes int64, logger *slog.Logger) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = imports.MaxFileSize
	}
	return &ImportHandler{imports: importSvc, maxBytes: maxBytes, logger: logger}
}

func jobResponse(job *models.ImportJob) dto.ImportJobResponse {
	step := imports.StepProgress
	if job.Finished() {
		step = imports.StepResults
	}
	return dto.ImportJobResponse{ImportJob: job, Step: string(step)}
}

// Upload accepts a multipart form with "file", an optional "mode" and, for
// advanced imports, a JSON "mapping" of header to field.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(h.maxBytes + multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, imports.ErrFileTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Please select a file to import")
		return
	}
	defer file.Close()

	var mapping map[string]string
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			writeValidation(w, map[string]string{"mapping": "must be a JSON object of header to field"})
			return
		}
	}

	job, err := h.imports.Submit(r.Context(), session(r), imports.SubmitInput{
		FileName: header.Filename,
		Size:     header.Size,
		Body:     file,
		Mode:     r.FormValue("mode"),
		Mapping:  mapping,
	})
	if err != nil {
		h.writeImportError(w, err)
		return
	}

	status := http.StatusOK
	if !job.Finished() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, jobResponse(job))
}

func (h *ImportHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "import job")
	if !ok {
		return
	}

	job, err := h.imports.Status(r.Context(), middleware.GetOrganizationID(r.Context()), id)
	if err != nil {
		h.writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

// Template serves the sample CSV with the expected columns.
func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+imports.TemplateFileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(imports.Template())
}

func (h *ImportHandler) writeImportError(w http.ResponseWriter, err error) {
	var mapErr *imports.MappingError
	switch {
	case errors.As(err, &mapErr):
		details := make(map[string]string, len(mapErr.Missing))
		for _, field := range mapErr.Missing {
			details[field] = "is required"
		}
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: mapErr.Error(), Details: details})
	case errors.Is(err, imports.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, imports.ErrUnsupportedFile),
		errors.Is(err, imports.ErrLegacyExcel),
		errors.Is(err, imports.ErrNoHeader),
		errors.Is(err, imports.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, imports.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Import job not found")
	default:
		h.logger.Error("import request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to import leads")
	}
}
