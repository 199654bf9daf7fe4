package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProjectTypeProposal = "PROPOSAL"
	ProjectTypeOngoing  = "ONGOING"

	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

type Project struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organization_id"`
	ProjectNumber  string     `gorm:"uniqueIndex;not null;size:64" json:"project_number"`
	Name           string     `gorm:"not null" json:"name"`
	Description    string     `gorm:"type:text" json:"description"`
	Type           string     `gorm:"default:'PROPOSAL'" json:"type"`
	ClientID       *uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Status         string     `gorm:"index;default:'planning'" json:"status"`
	Value          *float64   `json:"value"`
	AssignedTo     *uuid.UUID `gorm:"type:uuid" json:"assigned_to"`
	TeamMembers    UUIDList   `gorm:"type:text" json:"team_members"`
	LeadID         *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"lead_id"`
}

func (Project) TableName() string {
	return "projects"
}

func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}
