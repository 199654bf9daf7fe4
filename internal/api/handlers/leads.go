package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
)

type LeadHandler struct {
	leads  *leads.Service
	logger *slog.Logger
}

func NewLeadHandler(leadSvc *leads.Service, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{leads: leadSvc, logger: logger}
}

func session(r *http.Request) auth.Session {
	s, _ := middleware.SessionFrom(r.Context())
	return s
}

// writeLeadError maps lead service errors to responses.
func (h *LeadHandler) writeLeadError(w http.ResponseWriter, err error, action string) {
	var verr *leads.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Fields)
	case errors.Is(err, leads.ErrNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
	case errors.Is(err, leads.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, leads.ErrInvalidTransition),
		errors.Is(err, leads.ErrUseConvert),
		errors.Is(err, leads.ErrLeadLost):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("lead request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func first(q map[string][]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(firstValue(q[k])); v != "" {
			return v
		}
	}
	return ""
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// leadFilter reads list and export filters from the query string. The short
// names (status, source) are accepted alongside the canonical ones.
func leadFilter(r *http.Request) leads.Filter {
	q := r.URL.Query()
	year, _ := strconv.Atoi(q.Get("year"))
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	return leads.Filter{
		EnquiryStatus: first(q, "enquiry_status", "status"),
		CompanyName:   first(q, "company_name", "company"),
		EnquiryType:   first(q, "enquiry_type", "source"),
		City:          first(q, "city"),
		ContactName:   first(q, "contact_name", "name"),
		ContactEmail:  first(q, "contact_email", "email"),
		Search:        first(q, "search"),
		Year:          year,
		FollowUpDue:   parseBool(q.Get("follow_up_due")),
		SortBy:        first(q, "sort_by"),
		SortOrder:     first(q, "sort_order"),
		Page:          page,
		PerPage:       perPage,
	}
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	f := leadFilter(r)
	p := dto.PaginationParams{Page: f.Page, PerPage: f.PerPage}
	p.Normalize()
	f.Page, f.PerPage = p.Page, p.PerPage

	items, total, err := h.leads.List(r.Context(), middleware.GetOrganizationID(r.Context()), f)
	if err != nil {
		h.writeLeadError(w, err, "list leads")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(leads.ToResponses(items), total, p))
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p leads.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lead, err := h.leads.Create(r.Context(), session(r), p)
	if err != nil {
		h.writeLeadError(w, err, "create lead")
		return
	}
	writeJSON(w, http.StatusCreated, leads.ToResponse(*lead))
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	lead, err := h.leads.Get(r.Context(), middleware.GetOrganizationID(r.Context()), id)
	if err != nil {
		h.writeLeadError(w, err, "get lead")
		return
	}
	writeJSON(w, http.StatusOK, leads.ToResponse(*lead))
}

// Update serves both PUT and PATCH. Only fields present in the body change.
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	var p leads.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lead, err := h.leads.Update(r.Context(), session(r), id, p)
	if err != nil {
		h.writeLeadError(w, err, "update lead")
		return
	}
	writeJSON(w, http.StatusOK, leads.ToResponse(*lead))
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	if err := h.leads.Delete(r.Context(), middleware.GetOrganizationID(r.Context()), id); err != nil {
		h.writeLeadError(w, err, "delete lead")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Lead deleted"})
}

func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leads.Stats(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		h.writeLeadError(w, err, "load lead stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *LeadHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	stages, err := h.leads.Pipeline(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		h.writeLeadError(w, err, "load pipeline")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": stages})
}

func (h *LeadHandler) Sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.leads.Sources(r.Context(), middleware.GetOrganizationID(r.Context()))
	if err != nil {
		h.writeLeadError(w, err, "load sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	var req dto.StatusUpdateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Value() == "" {
		writeValidation(w, map[string]string{"status": "is required"})
		return
	}

	lead, err := h.leads.UpdateStatus(r.Context(), session(r), id, req.Value(), req.Notes)
	if err != nil {
		h.writeLeadError(w, err, "update lead status")
		return
	}
	writeJSON(w, http.StatusOK, leads.ToResponse(*lead))
}

// ConvertDraft returns the project fields pre-filled from the lead.
func (h *LeadHandler) ConvertDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	draft, err := h.leads.Draft(r.Context(), middleware.GetOrganizationID(r.Context()), id)
	if err != nil {
		h.writeLeadError(w, err, "load project draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *LeadHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	// An empty body converts with the draft defaults.
	var in leads.ConvertInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, created, err := h.leads.Convert(r.Context(), session(r), id, in)
	if err != nil {
		h.writeLeadError(w, err, "convert lead")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.ConvertResponse{Project: project, LeadID: id, Created: created})
}

func (h *LeadHandler) AddFollowUp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	var req dto.FollowUpRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := validation.ParseDate(req.Date)
	if err != nil {
		writeValidation(w, map[string]string{"date": "must be a date (YYYY-MM-DD)"})
		return
	}

	activity, err := h.leads.AddFollowUp(r.Context(), session(r), id, leads.FollowUpInput{
		Date:       date,
		Notes:      validation.SanitizeString(req.Notes),
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		h.writeLeadError(w, err, "add follow-up")
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (h *LeadHandler) AddActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "lead")
	if !ok {
		return
	}

	var req dto.CreateActivityRequest
	if !decode(w, r, &req) {
		return
	}
	activity, details := activityFromRequest(req)
	if len(details) > 0 {
		writeValidation(w, details)
		return
	}

	created, err := h.leads.AddActivity(r.Context(), session(r), id, activity)
	if err != nil {
		h.writeLeadError(w, err, "add activity")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *LeadHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.leads.BulkUpdate(r.Context(), session(r), req.IDs, req.Updates)
	if err != nil {
		h.writeLeadError(w, err, "bulk update leads")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Export streams the filtered leads as CSV.
func (h *LeadHandler) Export(w http.ResponseWriter, r *http.Request) {
	f := leadFilter(r)
	name := fmt.Sprintf("leads-%s.csv", time.Now().UTC().Format("20060102"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	if err := h.leads.Export(r.Context(), middleware.GetOrganizationID(r.Context()), f, w); err != nil {
		// Headers are already sent; the truncated file is all we can offer.
		h.logger.Error("lead export failed", "error", err)
	}
}

// activityFromRequest builds an activity from a create request. The caller
// fills in organization and ownership.
func activityFromRequest(req dto.CreateActivityRequest) (models.Activity, map[string]string) {
	activity := models.Activity{
		Title:       validation.SanitizeString(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		LeadID:      req.LeadID,
		ProjectID:   req.ProjectID,
		Notes:       req.Notes,
	}
	if activity.Type == "" {
		activity.Type = models.ActivityTypeNote
	}
	if activity.Status == "" {
		activity.Status = models.ActivityStatusPending
	}
	if activity.Priority == "" {
		activity.Priority = "medium"
	}
	if req.DueDate != "" {
		due, err := validation.ParseDate(req.DueDate)
		if err != nil {
			return activity, map[string]string{"due_date": "must be a date (YYYY-MM-DD)"}
		}
		activity.DueDate = &due
	}
	return activity, nil
}
