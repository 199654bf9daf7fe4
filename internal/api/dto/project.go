package dto

import "github.com/google/uuid"

type CreateProjectRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description"`
	Type        string      `json:"type" validate:"omitempty,oneof=PROPOSAL ONGOING"`
	ClientID    *uuid.UUID  `json:"client_id"`
	StartDate   string      `json:"start_date" validate:"omitempty,date"`
	EndDate     string      `json:"end_date" validate:"omitempty,date"`
	Status      string      `json:"status" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	Value       *float64    `json:"value" validate:"omitempty,gte=0"`
	AssignedTo  *uuid.UUID  `json:"assigned_to"`
	TeamMembers []uuid.UUID `json:"team_members"`
}

// UpdateProjectRequest changes only the fields that are present.
type UpdateProjectRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description,omitempty"`
	Type        *string      `json:"type,omitempty" validate:"omitempty,oneof=PROPOSAL ONGOING"`
	ClientID    *uuid.UUID   `json:"client_id,omitempty"`
	StartDate   *string      `json:"start_date,omitempty" validate:"omitempty,date"`
	EndDate     *string      `json:"end_date,omitempty" validate:"omitempty,date"`
	Status      *string      `json:"status,omitempty" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	Value       *float64     `json:"value,omitempty" validate:"omitempty,gte=0"`
	AssignedTo  *uuid.UUID   `json:"assigned_to,omitempty"`
	TeamMembers *[]uuid.UUID `json:"team_members,omitempty"`
}
