package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/validation"
)

var validate = validation.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}

func writeValidation(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: details})
}

// decode reads a JSON body into v and runs struct validation. It writes the
// error response itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid request body")
		}
		return false
	}
	if details := validate.Struct(v); len(details) > 0 {
		writeValidation(w, details)
		return false
	}
	return true
}

// pathID parses the named URL parameter as a uuid, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}

// queryID parses an optional uuid query parameter. ok is false when the
// parameter is present but malformed.
func queryID(r *http.Request, keys ...string) (*uuid.UUID, bool) {
	for _, key := range keys {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, false
		}
		return &id, true
	}
	return nil, true
}
