package dto

import "github.com/google/uuid"

type CreateActivityRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	Type        string     `json:"type" validate:"max=50"`
	Status      string     `json:"status" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     string     `json:"due_date" validate:"omitempty,date"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	LeadID      *uuid.UUID `json:"lead_id"`
	ProjectID   *uuid.UUID `json:"project_id"`
	Notes       string     `json:"notes"`
}

// UpdateActivityRequest changes only the fields that are present.
type UpdateActivityRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description,omitempty"`
	Type        *string    `json:"type,omitempty" validate:"omitempty,max=50"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority    *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *string    `json:"due_date,omitempty" validate:"omitempty,date"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}
