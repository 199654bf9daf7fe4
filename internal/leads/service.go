package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/pkg/util"
	"gorm.io/gorm"
)

// ValidationError carries per-field messages for a rejected write.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Filter narrows List and Export. Zero values are ignored.
type Filter struct {
	EnquiryStatus string
	CompanyName   string
	EnquiryType   string
	City          string
	ContactName   string
	ContactEmail  string
	Search        string
	Year          int
	FollowUpDue   bool
	SortBy        string
	SortOrder     string
	Page          int
	PerPage       int
}

var sortColumns = map[string]string{
	"created_at":      "created_at",
	"updated_at":      "updated_at",
	"company_name":    "company_name",
	"contact_name":    "contact_name",
	"estimated_value": "estimated_value",
	"value":           "estimated_value",
	"lead_score":      "lead_score",
	"next_follow_up":  "next_follow_up",
	"enquiry_status":  "enquiry_status",
	"status":          "enquiry_status",
	"enquiry_no":      "enquiry_no",
}

func (f *Filter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
}

func like(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

// startOfTomorrow is the exclusive upper bound for "due today or overdue".
func startOfTomorrow(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

func (s *Service) scoped(ctx context.Context, orgID uuid.UUID, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Lead{}).Where("organization_id = ?", orgID)

	if f.EnquiryStatus != "" {
		status := f.EnquiryStatus
		if c, ok := CanonicalStatus(status); ok {
			status = c
		}
		q = q.Where("enquiry_status = ?", status)
	}
	if f.CompanyName != "" {
		q = q.Where("LOWER(company_name) LIKE ?", like(f.CompanyName))
	}
	if f.EnquiryType != "" {
		q = q.Where("LOWER(enquiry_type) = ?", strings.ToLower(strings.TrimSpace(f.EnquiryType)))
	}
	if f.City != "" {
		q = q.Where("LOWER(city) LIKE ?", like(f.City))
	}
	if f.ContactName != "" {
		q = q.Where("LOWER(contact_name) LIKE ?", like(f.ContactName))
	}
	if f.ContactEmail != "" {
		q = q.Where("LOWER(contact_email) LIKE ?", like(f.ContactEmail))
	}
	if f.Search != "" {
		term := like(f.Search)
		q = q.Where(
			"LOWER(company_name) LIKE ? OR LOWER(contact_name) LIKE ? OR LOWER(contact_email) LIKE ? OR LOWER(enquiry_no) LIKE ? OR LOWER(project_description) LIKE ?",
			term, term, term, term, term,
		)
	}
	if f.Year > 0 {
		from := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		q = q.Where("created_at >= ? AND created_at < ?", from, from.AddDate(1, 0, 0))
	}
	if f.FollowUpDue {
		q = q.Where("next_follow_up IS NOT NULL AND next_follow_up < ?", startOfTomorrow(time.Now())).
			Where("enquiry_status NOT IN ?", TerminalStatuses())
	}
	return q
}

func orderClause(f Filter) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}

// List returns one page of leads matching f and the total match count.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, f Filter) ([]models.Lead, int64, error) {
	f.normalize()

	var total int64
	if err := s.scoped(ctx, orgID, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting leads: %w", err)
	}

	var leads []models.Lead
	if err := s.scoped(ctx, orgID, f).
		Order(orderClause(f)).
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&leads).Error; err != nil {
		return nil, 0, fmt.Errorf("listing leads: %w", err)
	}

	return leads, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Lead, error) {
	return s.get(s.db.WithContext(ctx), orgID, id)
}

func (s *Service) get(tx *gorm.DB, orgID, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	if err := tx.Where("id = ? AND organization_id = ?", id, orgID).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lead, nil
}

// apply copies the payload's set fields onto lead. Status is handled by the caller.
func apply(lead *models.Lead, p Payload) map[string]string {
	errs := make(map[string]string)

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}

	setString(&lead.CompanyName, p.companyName())
	setString(&lead.ContactName, p.contactName())
	setString(&lead.ContactEmail, p.contactEmail())
	setString(&lead.Phone, p.Phone)
	setString(&lead.EnquiryType, p.source())
	setString(&lead.ProjectStatus, p.ProjectStatus)
	setString(&lead.ProjectDescription, p.ProjectDescription)
	setString(&lead.Address, p.Address)
	setString(&lead.City, p.City)
	setString(&lead.State, p.State)
	setString(&lead.Country, p.Country)
	setString(&lead.Industry, p.Industry)
	setString(&lead.Website, p.Website)
	setString(&lead.Notes, p.Notes)
	setString(&lead.Tags, p.Tags)

	if p.CompanyID != nil {
		lead.CompanyID = nilIfZero(*p.CompanyID)
	}
	if p.AssignedTo != nil {
		lead.AssignedTo = nilIfZero(*p.AssignedTo)
	}

	if v := p.value(); v != nil {
		f, err := v.Float()
		if err != nil {
			errs["value"] = "Value must be a valid number"
		} else {
			lead.EstimatedValue = f
		}
	}

	if p.LeadScore != nil {
		score, err := p.LeadScore.Float()
		switch {
		case err != nil:
			errs["lead_score"] = "Lead score must be between 0 and 100"
		case score == nil:
			lead.LeadScore = 0
		default:
			lead.LeadScore = int(math.Round(*score))
		}
	}

	if p.NextFollowUp != nil {
		raw := strings.TrimSpace(*p.NextFollowUp)
		if raw == "" {
			lead.NextFollowUp = nil
		} else if t, err := parseDate(raw); err != nil {
			errs["next_follow_up"] = "Follow-up must be a date (YYYY-MM-DD)"
		} else {
			lead.NextFollowUp = &t
		}
	}

	return errs
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// check validates the merged lead, folding in parse errors from apply.
func check(lead *models.Lead, parseErrs map[string]string) error {
	result := ValidateLead(FormOf(lead))
	for k, v := range parseErrs {
		result.Errors[k] = v
	}
	if lead.LeadScore < 0 || lead.LeadScore > 100 {
		result.Errors["lead_score"] = "Lead score must be between 0 and 100"
	}
	if len(result.Errors) > 0 {
		return &ValidationError{Fields: result.Errors}
	}
	return nil
}

// checkRefs ensures referenced company and user belong to the organization.
func (s *Service) checkRefs(tx *gorm.DB, lead *models.Lead) error {
	fields := make(map[string]string)

	if lead.CompanyID != nil {
		var company models.Company
		err := tx.Where("id = ? AND organization_id = ?", *lead.CompanyID, lead.OrganizationID).First(&company).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fields["company_id"] = "Company not found"
		case err != nil:
			return err
		case lead.CompanyName == "":
			lead.CompanyName = company.Name
		}
	}

	if lead.AssignedTo != nil {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("id = ? AND organization_id = ?", *lead.AssignedTo, lead.OrganizationID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			fields["assigned_to"] = "User not found"
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Create stores a new lead owned by the session user.
func (s *Service) Create(ctx context.Context, session auth.Session, p Payload) (*models.Lead, error) {
	lead := models.Lead{
		OrganizationID: session.OrganizationID,
		EnquiryStatus:  StatusNew,
		ProjectStatus:  ProjectStatusOpen,
		CreatedBy:      &session.UserID,
	}

	parseErrs := apply(&lead, p)
	if st := p.status(); st != nil && strings.TrimSpace(*st) != "" {
		status, err := CheckTransition(StatusNew, *st)
		if err != nil {
			parseErrs["enquiry_status"] = err.Error()
		} else {
			lead.EnquiryStatus = status
		}
	}
	if lead.ProjectStatus == "" {
		lead.ProjectStatus = ProjectStatusOpen
	}
	if err := check(&lead, parseErrs); err != nil {
		return nil, err
	}

	lead.EnquiryNo = util.NewEnquiryNo()
	if p.EnquiryNo != nil && strings.TrimSpace(*p.EnquiryNo) != "" {
		lead.EnquiryNo = strings.TrimSpace(*p.EnquiryNo)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkRefs(tx, &lead); err != nil {
			return err
		}
		// The unique index also covers soft-deleted leads.
		var taken int64
		if err := tx.Unscoped().Model(&models.Lead{}).Where("enquiry_no = ?", lead.EnquiryNo).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return &ValidationError{Fields: map[string]string{"enquiry_no": "Enquiry number already exists"}}
		}
		return tx.Create(&lead).Error
	})
	if err != nil {
		return nil, wrap("creating lead", err)
	}

	s.logger.Info("lead created", "lead_id", lead.ID, "enquiry_no", lead.EnquiryNo, "org_id", lead.OrganizationID)
	return &lead, nil
}

// Update applies the payload's set fields to an existing lead. A status in
// the payload follows the same rules as UpdateStatus.
func (s *Service) Update(ctx context.Context, session auth.Session, id uuid.UUID, p Payload) (*models.Lead, error) {
	var lead *models.Lead
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = s.get(tx, session.OrganizationID, id)
		if err != nil {
			return err
		}

		previous := lead.EnquiryStatus
		parseErrs := apply(lead, p)
		if st := p.status(); st != nil && strings.TrimSpace(*st) != "" {
			status, err := CheckTransition(previous, *st)
			if err != nil {
				return err
			}
			lead.EnquiryStatus = status
		}
		if err := check(lead, parseErrs); err != nil {
			return err
		}
		if err := s.checkRefs(tx, lead); err != nil {
			return err
		}
		if err := tx.Save(lead).Error; err != nil {
			return err
		}
		if lead.EnquiryStatus != previous {
			return recordStatusChange(tx, session, lead, previous, "")
		}
		return nil
	})
	if err != nil {
		return nil, wrap("updating lead", err)
	}
	return lead, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		Delete(&models.Lead{})
	if result.Error != nil {
		return fmt.Errorf("deleting lead: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves a lead to a new pipeline status and records the change
// as an activity. Converted and Lost leads keep their status.
func (s *Service) UpdateStatus(ctx context.Context, session auth.Session, id uuid.UUID, status, notes string) (*models.Lead, error) {
	var lead *models.Lead
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = s.get(tx, session.OrganizationID, id)
		if err != nil {
			return err
		}

		target, err := CheckTransition(lead.EnquiryStatus, status)
		if err != nil {
			return err
		}
		if target == lead.EnquiryStatus {
			return nil
		}

		previous := lead.EnquiryStatus
		lead.EnquiryStatus = target
		if err := tx.Model(lead).Update("enquiry_status", target).Error; err != nil {
			return err
		}
		return recordStatusChange(tx, session, lead, previous, notes)
	})
	if err != nil {
		return nil, wrap("updating lead status", err)
	}
	return lead, nil
}

func recordStatusChange(tx *gorm.DB, session auth.Session, lead *models.Lead, from, notes string) error {
	activity := models.Activity{
		OrganizationID: lead.OrganizationID,
		Title:          fmt.Sprintf("Status changed from %s to %s", from, lead.EnquiryStatus),
		Type:           models.ActivityTypeStatusChange,
		Status:         models.ActivityStatusCompleted,
		Priority:       "low",
		LeadID:         &lead.ID,
		Notes:          notes,
		CreatedBy:      &session.UserID,
	}
	return tx.Create(&activity).Error
}

type FollowUpInput struct {
	Date       time.Time
	Notes      string
	AssignedTo *uuid.UUID
}

// AddFollowUp schedules the next contact and records it as a pending activity.
func (s *Service) AddFollowUp(ctx context.Context, session auth.Session, id uuid.UUID, in FollowUpInput) (*models.Activity, error) {
	due := in.Date.UTC()
	var activity models.Activity

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := s.get(tx, session.OrganizationID, id)
		if err != nil {
			return err
		}

		assignee := in.AssignedTo
		if assignee == nil {
			assignee = lead.AssignedTo
		}
		if assignee == nil {
			assignee = &session.UserID
		}

		if err := tx.Model(lead).Update("next_follow_up", due).Error; err != nil {
			return err
		}

		activity = models.Activity{
			OrganizationID: lead.OrganizationID,
			Title:          "Follow up with " + displayName(lead),
			Type:           models.ActivityTypeFollowUp,
			Status:         models.ActivityStatusPending,
			Priority:       "medium",
			DueDate:        &due,
			AssignedTo:     assignee,
			LeadID:         &lead.ID,
			Notes:          in.Notes,
			CreatedBy:      &session.UserID,
		}
		return tx.Create(&activity).Error
	})
	if err != nil {
		return nil, wrap("adding follow-up", err)
	}
	return &activity, nil
}

// AddActivity attaches an activity to a lead.
func (s *Service) AddActivity(ctx context.Context, session auth.Session, id uuid.UUID, activity models.Activity) (*models.Activity, error) {
	lead, err := s.Get(ctx, session.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	activity.ID = uuid.Nil
	activity.OrganizationID = lead.OrganizationID
	activity.LeadID = &lead.ID
	activity.CreatedBy = &session.UserID
	if activity.Status == "" {
		activity.Status = models.ActivityStatusPending
	}
	if activity.Priority == "" {
		activity.Priority = "medium"
	}
	if activity.Type == "" {
		activity.Type = models.ActivityTypeNote
	}

	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("adding activity: %w", err)
	}
	return &activity, nil
}

// BulkUpdates lists the fields a bulk update may change.
type BulkUpdates struct {
	EnquiryStatus *string    `json:"enquiry_status,omitempty"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	ProjectStatus *string    `json:"project_status,omitempty"`
	Tags          *string    `json:"tags,omitempty"`
}

func (u BulkUpdates) empty() bool {
	return u.EnquiryStatus == nil && u.AssignedTo == nil && u.ProjectStatus == nil && u.Tags == nil
}

type BulkResult struct {
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	NotFound int      `json:"not_found"`
	Errors   []string `json:"errors,omitempty"`
}

// BulkUpdate applies the same change to many leads in one transaction.
// Leads whose status may not change are skipped, not failed.
func (s *Service) BulkUpdate(ctx context.Context, session auth.Session, ids []uuid.UUID, u BulkUpdates) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"ids": "At least one lead id is required"}}
	}
	if u.empty() {
		return nil, &ValidationError{Fields: map[string]string{"updates": "No updates provided"}}
	}

	var target string
	if u.EnquiryStatus != nil {
		c, ok := CanonicalStatus(*u.EnquiryStatus)
		if !ok {
			return nil, &ValidationError{Fields: map[string]string{"enquiry_status": ErrInvalidStatus.Error()}}
		}
		if c == StatusConverted {
			return nil, ErrUseConvert
		}
		target = c
	}

	result := &BulkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.AssignedTo != nil && *u.AssignedTo != uuid.Nil {
			probe := models.Lead{OrganizationID: session.OrganizationID, AssignedTo: u.AssignedTo}
			if err := s.checkRefs(tx, &probe); err != nil {
				return err
			}
		}

		var leads []models.Lead
		if err := tx.Where("organization_id = ? AND id IN ?", session.OrganizationID, ids).Find(&leads).Error; err != nil {
			return err
		}
		result.NotFound = len(ids) - len(leads)

		for i := range leads {
			lead := &leads[i]
			previous := lead.EnquiryStatus
			updates := map[string]interface{}{}

			if target != "" && target != previous {
				if _, err := CheckTransition(previous, target); err != nil {
					result.Skipped++
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", lead.EnquiryNo, err))
					continue
				}
				updates["enquiry_status"] = target
				lead.EnquiryStatus = target
			}
			if u.AssignedTo != nil {
				updates["assigned_to"] = nilIfZero(*u.AssignedTo)
			}
			if u.ProjectStatus != nil {
				updates["project_status"] = strings.TrimSpace(*u.ProjectStatus)
			}
			if u.Tags != nil {
				updates["tags"] = strings.TrimSpace(*u.Tags)
			}
			if len(updates) == 0 {
				result.Skipped++
				continue
			}

			if err := tx.Model(lead).Updates(updates).Error; err != nil {
				return err
			}
			if lead.EnquiryStatus != previous {
				if err := recordStatusChange(tx, session, lead, previous, "bulk update"); err != nil {
					return err
				}
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, wrap("bulk updating leads", err)
	}

	s.logger.Info("leads bulk updated", "org_id", session.OrganizationID, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

// DueFollowUps returns open leads across all organizations whose follow-up
// date falls on or before asOf's day.
func (s *Service) DueFollowUps(ctx context.Context, asOf time.Time) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("next_follow_up IS NOT NULL AND next_follow_up < ?", startOfTomorrow(asOf)).
		Where("enquiry_status NOT IN ?", TerminalStatuses()).
		Order("organization_id, next_follow_up").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("finding due follow-ups: %w", err)
	}
	return leads, nil
}

func displayName(l *models.Lead) string {
	switch {
	case l.ContactName != "" && l.CompanyName != "":
		return l.ContactName + " (" + l.CompanyName + ")"
	case l.ContactName != "":
		return l.ContactName
	case l.CompanyName != "":
		return l.CompanyName
	default:
		return l.EnquiryNo
	}
}

// wrap adds context to storage errors. Domain errors are returned as-is so
// their messages reach the caller unchanged.
func wrap(op string, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrUseConvert),
		errors.Is(err, ErrLeadLost):
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
