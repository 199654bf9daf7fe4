package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/pkg/util"
	"gorm.io/gorm"
)

// ProjectDraft is the project form pre-filled from a lead.
type ProjectDraft struct {
	LeadID      uuid.UUID       `json:"lead_id"`
	EnquiryNo   string          `json:"enquiry_no"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ClientID    *uuid.UUID      `json:"client_id"`
	CompanyName string          `json:"company_name"`
	Value       *float64        `json:"value"`
	AssignedTo  *uuid.UUID      `json:"assigned_to"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	TeamMembers models.UUIDList `json:"team_members"`
}

// ConvertInput overrides draft fields; nil fields keep the lead's values.
type ConvertInput struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	ClientID    *uuid.UUID  `json:"client_id,omitempty"`
	Value       *Amount     `json:"value,omitempty"`
	AssignedTo  *uuid.UUID  `json:"assigned_to,omitempty"`
	Type        *string     `json:"type,omitempty"`
	Status      *string     `json:"status,omitempty"`
	StartDate   *string     `json:"start_date,omitempty"`
	EndDate     *string     `json:"end_date,omitempty"`
	TeamMembers []uuid.UUID `json:"team_members,omitempty"`
}

const maxProjectName = 120

// DraftFor builds the default project for a lead.
func DraftFor(l *models.Lead) ProjectDraft {
	name := l.CompanyName
	if name == "" {
		name = l.ContactName
	}
	if name == "" {
		name = l.EnquiryNo
	}
	if desc := strings.TrimSpace(l.ProjectDescription); desc != "" {
		name = name + " - " + desc
	}
	if r := []rune(name); len(r) > maxProjectName {
		name = string(r[:maxProjectName])
	}

	return ProjectDraft{
		LeadID:      l.ID,
		EnquiryNo:   l.EnquiryNo,
		Name:        name,
		Description: l.ProjectDescription,
		ClientID:    l.CompanyID,
		CompanyName: l.CompanyName,
		Value:       l.EstimatedValue,
		AssignedTo:  l.AssignedTo,
		Type:        models.ProjectTypeProposal,
		Status:      models.ProjectStatusPlanning,
	}
}

// Draft returns the pre-filled project form for a lead.
func (s *Service) Draft(ctx context.Context, orgID, id uuid.UUID) (*ProjectDraft, error) {
	lead, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	d := DraftFor(lead)
	return &d, nil
}

func (in ConvertInput) applyTo(d *ProjectDraft) map[string]string {
	errs := make(map[string]string)

	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		d.Description = strings.TrimSpace(*in.Description)
	}
	if in.ClientID != nil {
		d.ClientID = nilIfZero(*in.ClientID)
	}
	if in.AssignedTo != nil {
		d.AssignedTo = nilIfZero(*in.AssignedTo)
	}
	if in.Value != nil {
		v, err := in.Value.Float()
		if err != nil {
			errs["value"] = "Value must be a valid number"
		} else {
			d.Value = v
		}
	}
	if in.Type != nil {
		t := strings.ToUpper(strings.TrimSpace(*in.Type))
		if t != models.ProjectTypeProposal && t != models.ProjectTypeOngoing {
			errs["type"] = "Type must be PROPOSAL or ONGOING"
		} else {
			d.Type = t
		}
	}
	if in.Status != nil {
		st := strings.ToLower(strings.TrimSpace(*in.Status))
		if !models.ValidProjectStatus(st) {
			errs["status"] = "Invalid project status"
		} else {
			d.Status = st
		}
	}
	for field, raw := range map[string]*string{"start_date": in.StartDate, "end_date": in.EndDate} {
		if raw == nil || strings.TrimSpace(*raw) == "" {
			continue
		}
		t, err := parseDate(strings.TrimSpace(*raw))
		if err != nil {
			errs[field] = "Must be a date (YYYY-MM-DD)"
			continue
		}
		if field == "start_date" {
			d.StartDate = &t
		} else {
			d.EndDate = &t
		}
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		errs["end_date"] = "End date must be after start date"
	}
	if len(in.TeamMembers) > 0 {
		d.TeamMembers = in.TeamMembers
	}
	if d.Name == "" {
		errs["name"] = "Project name is required"
	}

	return errs
}

// Convert turns a lead into a project. The project insert and the lead's
// move to converted happen in one transaction. Converting an already
// converted lead returns its existing project with created=false.
func (s *Service) Convert(ctx context.Context, session auth.Session, id uuid.UUID, in ConvertInput) (*models.Project, bool, error) {
	var (
		project models.Project
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := s.get(tx, session.OrganizationID, id)
		if err != nil {
			return err
		}

		existing, err := projectForLead(tx, lead)
		if err != nil {
			return err
		}
		if existing != nil {
			project = *existing
			if lead.EnquiryStatus != StatusConverted || lead.ConvertedProjectID == nil {
				return markConverted(tx, session, lead, existing)
			}
			return nil
		}

		if c, _ := CanonicalStatus(lead.EnquiryStatus); c == StatusLost {
			return ErrLeadLost
		}

		draft := DraftFor(lead)
		if errs := in.applyTo(&draft); len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}

		clientID, err := resolveClient(tx, lead, draft.ClientID)
		if err != nil {
			return err
		}

		if draft.AssignedTo != nil {
			probe := models.Lead{OrganizationID: lead.OrganizationID, AssignedTo: draft.AssignedTo}
			if err := s.checkRefs(tx, &probe); err != nil {
				return err
			}
		}

		project = models.Project{
			OrganizationID: lead.OrganizationID,
			ProjectNumber:  util.NewProjectNumber(),
			Name:           draft.Name,
			Description:    draft.Description,
			Type:           draft.Type,
			ClientID:       clientID,
			StartDate:      draft.StartDate,
			EndDate:        draft.EndDate,
			Status:         draft.Status,
			Value:          draft.Value,
			AssignedTo:     draft.AssignedTo,
			TeamMembers:    draft.TeamMembers,
			LeadID:         &lead.ID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		if lead.CompanyID == nil {
			lead.CompanyID = clientID
		}
		created = true
		return markConverted(tx, session, lead, &project)
	})

	if err != nil {
		// A concurrent convert may have won the unique lead_id index.
		if !created {
			var winner models.Project
			if lookupErr := s.db.WithContext(ctx).
				Where("lead_id = ? AND organization_id = ?", id, session.OrganizationID).
				First(&winner).Error; lookupErr == nil {
				return &winner, false, nil
			}
		}
		return nil, false, wrap("converting lead", err)
	}

	if created {
		s.logger.Info("lead converted", "lead_id", id, "project_id", project.ID, "project_number", project.ProjectNumber)
	}
	return &project, created, nil
}

func projectForLead(tx *gorm.DB, lead *models.Lead) (*models.Project, error) {
	var project models.Project
	q := tx.Where("organization_id = ?", lead.OrganizationID)
	if lead.ConvertedProjectID != nil {
		q = q.Where("id = ? OR lead_id = ?", *lead.ConvertedProjectID, lead.ID)
	} else {
		q = q.Where("lead_id = ?", lead.ID)
	}
	err := q.First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// resolveClient returns the project's company: the explicit id when given,
// else the lead's company, else a company found or created by the lead's
// company name.
func resolveClient(tx *gorm.DB, lead *models.Lead, clientID *uuid.UUID) (*uuid.UUID, error) {
	if clientID != nil {
		var count int64
		if err := tx.Model(&models.Company{}).
			Where("id = ? AND organization_id = ?", *clientID, lead.OrganizationID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, &ValidationError{Fields: map[string]string{"client_id": "Company not found"}}
		}
		return clientID, nil
	}

	name := strings.TrimSpace(lead.CompanyName)
	if name == "" {
		return nil, nil
	}

	var company models.Company
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", lead.OrganizationID, strings.ToLower(name)).
		First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		company = models.Company{
			OrganizationID: lead.OrganizationID,
			Name:           name,
			Email:          lead.ContactEmail,
			Phone:          lead.Phone,
			Website:        lead.Website,
			Industry:       lead.Industry,
			Address:        lead.Address,
			City:           lead.City,
			State:          lead.State,
			Country:        lead.Country,
		}
		err = tx.Create(&company).Error
	}
	if err != nil {
		return nil, fmt.Errorf("resolving company: %w", err)
	}
	return &company.ID, nil
}

func markConverted(tx *gorm.DB, session auth.Session, lead *models.Lead, project *models.Project) error {
	previous := lead.EnquiryStatus
	lead.EnquiryStatus = StatusConverted
	lead.ConvertedProjectID = &project.ID

	if err := tx.Model(lead).Updates(map[string]interface{}{
		"enquiry_status":       StatusConverted,
		"converted_project_id": project.ID,
		"company_id":           lead.CompanyID,
	}).Error; err != nil {
		return fmt.Errorf("marking lead converted: %w", err)
	}
	if previous == StatusConverted {
		return nil
	}
	return recordStatusChange(tx, session, lead, previous, "Converted to project "+project.ProjectNumber)
}
