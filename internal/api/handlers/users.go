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
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

type UserHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewUserHandler(db *gorm.DB, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, logger: logger}
}

func (h *UserHandler) find(r *http.Request, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, middleware.GetOrganizationID(r.Context())).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// taken reports whether another user already has email or username.
func (h *UserHandler) taken(r *http.Request, exclude uuid.UUID, email, username string) (bool, error) {
	var n int64
	err := h.db.WithContext(r.Context()).Model(&models.User{}).
		Where("(email = ? OR username = ?) AND id <> ?", email, username, exclude).
		Count(&n).Error
	return n > 0, err
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	q := r.URL.Query()
	role := strings.TrimSpace(q.Get("role"))
	status := strings.TrimSpace(q.Get("status"))

	scoped := func() *gorm.DB {
		db := h.db.WithContext(r.Context()).Model(&models.User{}).
			Where("organization_id = ?", middleware.GetOrganizationID(r.Context()))
		if role != "" {
			db = db.Where("role = ?", role)
		}
		if status != "" {
			db = db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		h.logger.Error("failed to count users", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	var users []models.User
	if err := scoped().Order("first_name ASC, last_name ASC").Offset(p.Offset()).Limit(p.PerPage).Find(&users).Error; err != nil {
		h.logger.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	out := make([]dto.UserDTO, len(users))
	for i := range users {
		out[i] = dto.NewUserDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(out, total, p))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	if ok, msg := validation.IsValidPassword(req.Password); !ok {
		writeValidation(w, map[string]string{"password": msg})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	taken, err := h.taken(r, uuid.Nil, email, username)
	if err != nil {
		h.logger.Error("failed to check user uniqueness", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	if taken {
		writeError(w, http.StatusConflict, "A user with this email or username already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user := models.User{
		FirstName:      validation.SanitizeString(req.FirstName),
		LastName:       validation.SanitizeString(req.LastName),
		Username:       username,
		Email:          email,
		Phone:          req.Phone,
		PasswordHash:   hash,
		OrganizationID: middleware.GetOrganizationID(r.Context()),
		Role:           req.Role,
		Status:         req.Status,
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		h.logger.Error("failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewUserDTO(&user))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}

	user, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	self := user.ID == middleware.GetUserID(r.Context())
	if self && req.Role != nil && *req.Role != user.Role {
		writeError(w, http.StatusForbidden, "You cannot change your own role")
		return
	}
	if self && req.Status != nil && *req.Status != models.UserStatusActive {
		writeError(w, http.StatusForbidden, "You cannot deactivate yourself")
		return
	}

	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil || req.Username != nil {
		taken, err := h.taken(r, user.ID, user.Email, user.Username)
		if err != nil {
			h.logger.Error("failed to check user uniqueness", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}
		if taken {
			writeError(w, http.StatusConflict, "A user with this email or username already exists")
			return
		}
	}

	if req.Password != nil {
		if ok, msg := validation.IsValidPassword(*req.Password); !ok {
			writeValidation(w, map[string]string{"password": msg})
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			h.logger.Error("failed to hash password", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}
		user.PasswordHash = hash
	}
	if req.FirstName != nil {
		user.FirstName = validation.SanitizeString(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = validation.SanitizeString(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	if err := h.db.WithContext(r.Context()).Save(user).Error; err != nil {
		h.logger.Error("failed to update user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}
	if id == middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	user, err := h.find(r, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(user).Error; err != nil {
		h.logger.Error("failed to delete user", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}
