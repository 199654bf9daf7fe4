package dto

import (
	"strings"

	"github.com/hugh/go-crm/internal/database/models"
)

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=191"`
	Username  string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name,omitempty" validate:"max=100"`
	OrgName   string `json:"org_name,omitempty" validate:"max=200"`
}

// LoginRequest accepts the account's email or username in "login".
// "email" and "username" are accepted as older spellings.
type LoginRequest struct {
	Login    string `json:"login,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password" validate:"required"`
}

func (r LoginRequest) Identifier() string {
	for _, s := range []string{r.Login, r.Email, r.Username} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	OrganizationID string `json:"organization_id"`
	OrgName        string `json:"org_name,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func NewUserDTO(u *models.User) UserDTO {
	out := UserDTO{
		ID:             u.ID.String(),
		Email:          u.Email,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Name:           u.FullName(),
		Phone:          u.Phone,
		Role:           u.Role,
		Status:         u.Status,
		OrganizationID: u.OrganizationID.String(),
		CreatedAt:      u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.Organization != nil {
		out.OrgName = u.Organization.Name
	}
	return out
}
