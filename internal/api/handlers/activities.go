package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/api/validation"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewActivityHandler(db *gorm.DB, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{db: db, logger: logger}
}

// inOrg reports whether the row with id exists in model's table for orgID.
func inOrg(db *gorm.DB, model interface{}, id, orgID uuid.UUID) bool {
	var n int64
	db.Model(model).Where("id = ? AND organization_id = ?", id, orgID).Count(&n)
	return n > 0
}

func (h *ActivityHandler) checkRefs(r *http.Request, orgID uuid.UUID, leadID, projectID, assignedTo *uuid.UUID) map[string]string {
	details := make(map[string]string)
	db := h.db.WithContext(r.Context())
	if leadID != nil && !inOrg(db, &models.Lead{}, *leadID, orgID) {
		details["lead_id"] = "Lead not found"
	}
	if projectID != nil && !inOrg(db, &models.Project{}, *projectID, orgID) {
		details["project_id"] = "Project not found"
	}
	if assignedTo != nil && !inOrg(db, &models.User{}, *assignedTo, orgID) {
		details["assigned_to"] = "User not found"
	}
	return details
}

func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	q := r.URL.Query()

	ids := make(map[string]*uuid.UUID)
	for _, key := range []string{"lead_id", "project_id", "assigned_to"} {
		id, ok := queryID(r, key)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid "+key)
			return
		}
		ids[key] = id
	}
	status := strings.TrimSpace(q.Get("status"))
	kind := strings.TrimSpace(q.Get("type"))

	scoped := func() *gorm.DB {
		db := h.db.WithContext(r.Context()).Model(&models.Activity{}).
			Where("organization_id = ?", middleware.GetOrganizationID(r.Context()))
		for key, id := range ids {
			if id != nil {
				db = db.Where(key+" = ?", *id)
			}
		}
		if status != "" {
			db = db.Where("status = ?", status)
		}
		if kind != "" {
			db = db.Where("type = ?", kind)
		}
		return db
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		h.logger.Error("failed to count activities", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}

	var activities []models.Activity
	if err := scoped().Order("created_at DESC").Offset(p.Offset()).Limit(p.PerPage).Find(&activities).Error; err != nil {
		h.logger.Error("failed to list activities", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(activities, total, p))
}

func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateActivityRequest
	if !decode(w, r, &req) {
		return
	}

	activity, details := activityFromRequest(req)
	if len(details) > 0 {
		writeValidation(w, details)
		return
	}

	orgID := middleware.GetOrganizationID(r.Context())
	if details := h.checkRefs(r, orgID, req.LeadID, req.ProjectID, req.AssignedTo); len(details) > 0 {
		writeValidation(w, details)
		return
	}

	userID := middleware.GetUserID(r.Context())
	activity.OrganizationID = orgID
	activity.CreatedBy = &userID

	if err := h.db.WithContext(r.Context()).Create(&activity).Error; err != nil {
		h.logger.Error("failed to create activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create activity")
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

func (h *ActivityHandler) find(r *http.Request, id uuid.UUID) (*models.Activity, error) {
	var activity models.Activity
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, middleware.GetOrganizationID(r.Context())).
		First(&activity).Error
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	activity, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Activity not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get activity")
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	var req dto.UpdateActivityRequest
	if !decode(w, r, &req) {
		return
	}

	activity, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Activity not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update activity")
		return
	}

	if details := h.checkRefs(r, activity.OrganizationID, nil, req.ProjectID, req.AssignedTo); len(details) > 0 {
		writeValidation(w, details)
		return
	}

	if req.Title != nil {
		activity.Title = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		activity.Description = *req.Description
	}
	if req.Type != nil {
		activity.Type = *req.Type
	}
	if req.Status != nil {
		activity.Status = *req.Status
	}
	if req.Priority != nil {
		activity.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		activity.AssignedTo = req.AssignedTo
	}
	if req.ProjectID != nil {
		activity.ProjectID = req.ProjectID
	}
	if req.Notes != nil {
		activity.Notes = *req.Notes
	}
	if req.DueDate != nil {
		if activity.DueDate, err = optionalDate(*req.DueDate); err != nil {
			writeValidation(w, map[string]string{"due_date": "must be a date (YYYY-MM-DD)"})
			return
		}
	}

	if err := h.db.WithContext(r.Context()).Save(activity).Error; err != nil {
		h.logger.Error("failed to update activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update activity")
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "activity")
	if !ok {
		return
	}

	activity, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Activity not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete activity")
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(activity).Error; err != nil {
		h.logger.Error("failed to delete activity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete activity")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Activity deleted"})
}
