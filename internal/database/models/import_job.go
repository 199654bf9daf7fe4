package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ImportModeQuick    = "quick"
	ImportModeAdvanced = "advanced"

	ImportStatusPending   = "pending"
	ImportStatusRunning   = "running"
	ImportStatusCompleted = "completed"
	ImportStatusFailed    = "failed"
)

// ImportJob tracks one uploaded lead file from upload to results.
type ImportJob struct {
	Base
	OrganizationID uuid.UUID         `gorm:"type:uuid;index;not null" json:"organization_id"`
	Mode           string            `gorm:"not null" json:"mode"`
	FileName       string            `json:"file_name"`
	FileKey        string            `json:"-"`
	Mapping        map[string]string `gorm:"type:text;serializer:json" json:"mapping"`
	Status         string            `gorm:"index;default:'pending'" json:"status"`
	Total          int               `json:"total"`
	Processed      int               `json:"processed"`
	Successful     int               `json:"successful"`
	Failed         int               `json:"failed"`
	Duplicates     int               `json:"duplicates"`
	Errors         []string          `gorm:"type:text;serializer:json" json:"errors"`
	CreatedBy      *uuid.UUID        `gorm:"type:uuid" json:"created_by"`
	StartedAt      *time.Time        `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

func (j *ImportJob) Finished() bool {
	return j.Status == ImportStatusCompleted || j.Status == ImportStatusFailed
}
