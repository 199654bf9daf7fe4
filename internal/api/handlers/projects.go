package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/pkg/util"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewProjectHandler(db *gorm.DB, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{db: db, logger: logger}
}

// checkRefs verifies that the client and assignee belong to orgID.
func (h *ProjectHandler) checkRefs(ctx context.Context, orgID uuid.UUID, clientID, assignedTo *uuid.UUID) map[string]string {
	details := make(map[string]string)
	db := h.db.WithContext(ctx)
	if clientID != nil && !inOrg(db, &models.Company{}, *clientID, orgID) {
		details["client_id"] = "Client not found"
	}
	if assignedTo != nil && !inOrg(db, &models.User{}, *assignedTo, orgID) {
		details["assigned_to"] = "User not found"
	}
	return details
}

func optionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := validation.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	clientID, ok := queryID(r, "clientId", "client_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid client ID")
		return
	}
	leadID, ok := queryID(r, "lead_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid lead ID")
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	scoped := func() *gorm.DB {
		q := h.db.WithContext(r.Context()).Model(&models.Project{}).
			Where("organization_id = ?", middleware.GetOrganizationID(r.Context()))
		if clientID != nil {
			q = q.Where("client_id = ?", *clientID)
		}
		if leadID != nil {
			q = q.Where("lead_id = ?", *leadID)
		}
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		h.logger.Error("failed to count projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	var projects []models.Project
	if err := scoped().Order("created_at DESC").Offset(p.Offset()).Limit(p.PerPage).Find(&projects).Error; err != nil {
		h.logger.Error("failed to list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(projects, total, p))
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProjectRequest
	if !decode(w, r, &req) {
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	if details := h.checkRefs(r.Context(), orgID, req.ClientID, req.AssignedTo); len(details) > 0 {
		writeValidation(w, details)
		return
	}

	start, err := optionalDate(req.StartDate)
	if err != nil {
		writeValidation(w, map[string]string{"start_date": "must be a date (YYYY-MM-DD)"})
		return
	}
	end, err := optionalDate(req.EndDate)
	if err != nil {
		writeValidation(w, map[string]string{"end_date": "must be a date (YYYY-MM-DD)"})
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		writeValidation(w, map[string]string{"end_date": "must not be before start_date"})
		return
	}

	project := models.Project{
		OrganizationID: orgID,
		ProjectNumber:  util.NewProjectNumber(),
		Name:           validation.SanitizeString(req.Name),
		Description:    req.Description,
		Type:           req.Type,
		ClientID:       req.ClientID,
		StartDate:      start,
		EndDate:        end,
		Status:         req.Status,
		Value:          req.Value,
		AssignedTo:     req.AssignedTo,
		TeamMembers:    models.UUIDList(req.TeamMembers),
	}
	if project.Type == "" {
		project.Type = models.ProjectTypeProposal
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusPlanning
	}

	if err := h.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		h.logger.Error("failed to create project", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) find(r *http.Request, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, middleware.GetOrganizationID(r.Context())).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get project", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "project")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if !decode(w, r, &req) {
		return
	}

	project, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get project", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update project")
		return
	}

	if details := h.checkRefs(r.Context(), project.OrganizationID, req.ClientID, req.AssignedTo); len(details) > 0 {
		writeValidation(w, details)
		return
	}

	if req.Name != nil {
		project.Name = validation.SanitizeString(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Type != nil {
		project.Type = *req.Type
	}
	if req.ClientID != nil {
		project.ClientID = req.ClientID
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	if req.Value != nil {
		project.Value = req.Value
	}
	if req.AssignedTo != nil {
		project.AssignedTo = req.AssignedTo
	}
	if req.TeamMembers != nil {
		project.TeamMembers = models.UUIDList(*req.TeamMembers)
	}
	if req.StartDate != nil {
		if project.StartDate, err = optionalDate(*req.StartDate); err != nil {
			writeValidation(w, map[string]string{"start_date": "must be a date (YYYY-MM-DD)"})
			return
		}
	}
	if req.EndDate != nil {
		if project.EndDate, err = optionalDate(*req.EndDate); err != nil {
			writeValidation(w, map[string]string{"end_date": "must be a date (YYYY-MM-DD)"})
			return
		}
	}
	if project.StartDate != nil && project.EndDate != nil && project.EndDate.Before(*project.StartDate) {
		writeValidation(w, map[string]string{"end_date": "must not be before start_date"})
		return
	}

	if err := h.db.WithContext(r.Context()).Save(project).Error; err != nil {
		h.logger.Error("failed to update project", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update project")
		return
	}
	writeJSON(w, http.StatusOK, project)
}
