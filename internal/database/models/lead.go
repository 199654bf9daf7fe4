package models

import (
	"time"

	"github.com/google/uuid"
)

type Lead struct {
	Base
	OrganizationID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	EnquiryNo          string     `gorm:"uniqueIndex;not null;size:64" json:"enquiry_no"`
	CompanyName        string     `gorm:"index;size:191" json:"company_name"`
	CompanyID          *uuid.UUID `gorm:"type:uuid;index" json:"company_id"`
	ContactName        string     `json:"contact_name"`
	ContactEmail       string     `gorm:"index;size:191" json:"contact_email"`
	Phone              string     `json:"phone"`
	EnquiryStatus      string     `gorm:"index;default:'New'" json:"enquiry_status"`
	EnquiryType        string     `gorm:"index" json:"enquiry_type"`
	ProjectStatus      string     `gorm:"default:'Open'" json:"project_status"`
	ProjectDescription string     `gorm:"type:text" json:"project_description"`
	EstimatedValue     *float64   `json:"estimated_value"`
	AssignedTo         *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to"`
	Address            string     `json:"address"`
	City               string     `gorm:"index" json:"city"`
	State              string     `json:"state"`
	Country            string     `json:"country"`
	Industry           string     `json:"industry"`
	Website            string     `json:"website"`
	LeadScore          int        `gorm:"default:0" json:"lead_score"`
	NextFollowUp       *time.Time `gorm:"index" json:"next_follow_up"`
	Notes              string     `gorm:"type:text" json:"notes"`
	Tags               string     `json:"tags"`
	CreatedBy          *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	ConvertedProjectID *uuid.UUID `gorm:"type:uuid" json:"converted_project_id"`
}

func (Lead) TableName() string {
	return "leads"
}
