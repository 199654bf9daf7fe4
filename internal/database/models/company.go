package models

import "github.com/google/uuid"

type Company struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null;index;size:191" json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Website        string    `json:"website"`
	Industry       string    `json:"industry"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	State          string    `json:"state"`
	PostalCode     string    `json:"postal_code"`
	Country        string    `json:"country"`

	// Computed on read
	ProjectsCount int64 `gorm:"-" json:"projects_count"`
}

func (Company) TableName() string {
	return "companies"
}
