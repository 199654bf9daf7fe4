package models

import "github.com/google/uuid"

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
	RoleViewer  = "viewer"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type User struct {
	Base
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Username       string    `gorm:"uniqueIndex;not null;size:191" json:"username"`
	Email          string    `gorm:"uniqueIndex;not null;size:191" json:"email"`
	Phone          string    `json:"phone"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	Role           string    `gorm:"default:'user'" json:"role"`
	Status         string    `gorm:"default:'active'" json:"status"`

	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleUser, RoleViewer:
		return true
	}
	return false
}
