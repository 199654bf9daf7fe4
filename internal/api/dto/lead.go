package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
)

// StatusUpdateRequest accepts "status" or "enquiry_status".
type StatusUpdateRequest struct {
	Status        string `json:"status,omitempty"`
	EnquiryStatus string `json:"enquiry_status,omitempty"`
	Notes         string `json:"notes,omitempty" validate:"max=2000"`
}

func (r StatusUpdateRequest) Value() string {
	if s := strings.TrimSpace(r.EnquiryStatus); s != "" {
		return s
	}
	return strings.TrimSpace(r.Status)
}

type FollowUpRequest struct {
	Date       string     `json:"date" validate:"required,date"`
	Notes      string     `json:"notes" validate:"max=2000"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
}

type BulkUpdateRequest struct {
	IDs     []uuid.UUID       `json:"ids" validate:"required,min=1,max=500"`
	Updates leads.BulkUpdates `json:"updates"`
}

type ConvertResponse struct {
	Project *models.Project `json:"project"`
	LeadID  uuid.UUID       `json:"lead_id"`
	Created bool            `json:"created"`
}

type ImportJobResponse struct {
	*models.ImportJob
	Step string `json:"step"`
}
