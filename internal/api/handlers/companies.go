package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

type CompanyHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCompanyHandler(db *gorm.DB, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{db: db, logger: logger}
}

func (h *CompanyHandler) find(r *http.Request, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, middleware.GetOrganizationID(r.Context())).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (h *CompanyHandler) countProjects(r *http.Request, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		ClientID uuid.UUID
		Total    int64
	}
	err := h.db.WithContext(r.Context()).Model(&models.Project{}).
		Select("client_id, COUNT(*) AS total").
		Where("client_id IN ?", ids).
		Group("client_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ClientID] = row.Total
	}
	return counts, nil
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))
	scoped := func() *gorm.DB {
		q := h.db.WithContext(r.Context()).Model(&models.Company{}).
			Where("organization_id = ?", middleware.GetOrganizationID(r.Context()))
		if search != "" {
			like := "%" + search + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(city) LIKE ?", like, like, like)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		h.logger.Error("failed to count companies", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	var companies []models.Company
	if err := scoped().Order("name ASC").Offset(p.Offset()).Limit(p.PerPage).Find(&companies).Error; err != nil {
		h.logger.Error("failed to list companies", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}

	ids := make([]uuid.UUID, len(companies))
	for i := range companies {
		ids[i] = companies[i].ID
	}
	counts, err := h.countProjects(r, ids)
	if err != nil {
		h.logger.Error("failed to count company projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list companies")
		return
	}
	for i := range companies {
		companies[i].ProjectsCount = counts[companies[i].ID]
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(companies, total, p))
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CompanyRequest
	if !decode(w, r, &req) {
		return
	}

	company := models.Company{OrganizationID: middleware.GetOrganizationID(r.Context())}
	req.ApplyTo(&company)

	if err := h.db.WithContext(r.Context()).Create(&company).Error; err != nil {
		h.logger.Error("failed to create company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create company")
		return
	}
	writeJSON(w, http.StatusCreated, company)
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "company")
	if !ok {
		return
	}

	company, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get company")
		return
	}

	counts, err := h.countProjects(r, []uuid.UUID{company.ID})
	if err != nil {
		h.logger.Error("failed to count company projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get company")
		return
	}
	company.ProjectsCount = counts[company.ID]

	writeJSON(w, http.StatusOK, company)
}

func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "company")
	if !ok {
		return
	}

	var req dto.CompanyRequest
	if !decode(w, r, &req) {
		return
	}

	company, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update company")
		return
	}

	req.ApplyTo(company)
	if err := h.db.WithContext(r.Context()).Save(company).Error; err != nil {
		h.logger.Error("failed to update company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update company")
		return
	}
	writeJSON(w, http.StatusOK, company)
}

// Delete refuses to remove a company that still has projects.
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "company")
	if !ok {
		return
	}

	company, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "Company not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete company")
		return
	}

	var projects int64
	if err := h.db.WithContext(r.Context()).Model(&models.Project{}).
		Where("client_id = ?", company.ID).Count(&projects).Error; err != nil {
		h.logger.Error("failed to count company projects", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete company")
		return
	}
	if projects > 0 {
		writeError(w, http.StatusConflict, "Company has projects and cannot be deleted")
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Lead{}).Where("company_id = ?", company.ID).
			Update("company_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(company).Error
	})
	if err != nil {
		h.logger.Error("failed to delete company", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete company")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Company deleted"})
}
