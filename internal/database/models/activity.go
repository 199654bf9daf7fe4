package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActivityTypeFollowUp     = "follow_up"
	ActivityTypeStatusChange = "status_change"
	ActivityTypeNote         = "note"

	ActivityStatusPending    = "pending"
	ActivityStatusInProgress = "in_progress"
	ActivityStatusCompleted  = "completed"
	ActivityStatusCancelled  = "cancelled"
)

type Activity struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	Type           string     `gorm:"index" json:"type"`
	Status         string     `gorm:"default:'pending'" json:"status"`
	Priority       string     `gorm:"default:'medium'" json:"priority"`
	DueDate        *time.Time `json:"due_date"`
	AssignedTo     *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to"`
	LeadID         *uuid.UUID `gorm:"type:uuid;index" json:"lead_id"`
	ProjectID      *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	Notes          string     `gorm:"type:text" json:"notes"`
	CreatedBy      *uuid.UUID `gorm:"type:uuid" json:"created_by"`
}

func (Activity) TableName() string {
	return "activities"
}
