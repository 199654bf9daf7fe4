package leads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
)

// Amount is a JSON number that may also arrive as a numeric string from
// form posts. Raw keeps the text so invalid input can be reported.
type Amount struct {
	Raw string
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		a.Raw = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.Raw = strings.TrimSpace(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount must be a number or numeric string")
		}
		a.Raw = n.String()
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Raw == "" {
		return []byte("null"), nil
	}
	if v, err := ParseAmount(a.Raw); err == nil {
		return json.Marshal(v)
	}
	return json.Marshal(a.Raw)
}

// Float returns nil for an empty amount.
func (a *Amount) Float() (*float64, error) {
	if a == nil || a.Raw == "" {
		return nil, nil
	}
	v, err := ParseAmount(a.Raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func NewAmount(v float64) *Amount {
	return &Amount{Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// Payload is the request body for lead writes. It accepts the canonical
// enquiry field names and the older short names; when both are present the
// canonical one wins. Nil fields are left untouched on update. The creator
// always comes from the session, so created_by in a body is not decoded.
type Payload struct {
	EnquiryNo          *string    `json:"enquiry_no,omitempty"`
	CompanyName        *string    `json:"company_name,omitempty"`
	Company            *string    `json:"company,omitempty"`
	CompanyID          *uuid.UUID `json:"company_id,omitempty"`
	ContactName        *string    `json:"contact_name,omitempty"`
	Name               *string    `json:"name,omitempty"`
	ContactEmail       *string    `json:"contact_email,omitempty"`
	Email              *string    `json:"email,omitempty"`
	Phone              *string    `json:"phone,omitempty"`
	EnquiryStatus      *string    `json:"enquiry_status,omitempty"`
	Status             *string    `json:"status,omitempty"`
	EnquiryType        *string    `json:"enquiry_type,omitempty"`
	Source             *string    `json:"source,omitempty"`
	ProjectStatus      *string    `json:"project_status,omitempty"`
	ProjectDescription *string    `json:"project_description,omitempty"`
	EstimatedValue     *Amount    `json:"estimated_value,omitempty"`
	Value              *Amount    `json:"value,omitempty"`
	AssignedTo         *uuid.UUID `json:"assigned_to,omitempty"`
	Address            *string    `json:"address,omitempty"`
	City               *string    `json:"city,omitempty"`
	State              *string    `json:"state,omitempty"`
	Country            *string    `json:"country,omitempty"`
	Industry           *string    `json:"industry,omitempty"`
	Website            *string    `json:"website,omitempty"`
	LeadScore          *Amount    `json:"lead_score,omitempty"`
	NextFollowUp       *string    `json:"next_follow_up,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
	Tags               *string    `json:"tags,omitempty"`
}

func pick(canonical, alias *string) *string {
	if canonical != nil {
		return canonical
	}
	return alias
}

func (p *Payload) companyName() *string  { return pick(p.CompanyName, p.Company) }
func (p *Payload) contactName() *string  { return pick(p.ContactName, p.Name) }
func (p *Payload) contactEmail() *string { return pick(p.ContactEmail, p.Email) }
func (p *Payload) status() *string       { return pick(p.EnquiryStatus, p.Status) }
func (p *Payload) source() *string       { return pick(p.EnquiryType, p.Source) }

func (p *Payload) value() *Amount {
	if p.EstimatedValue != nil {
		return p.EstimatedValue
	}
	return p.Value
}

// Response is a lead as returned by the API: canonical fields, the short
// aliases, and display values.
type Response struct {
	models.Lead
	Name         string   `json:"name"`
	Company      string   `json:"company"`
	Email        string   `json:"email"`
	Status       string   `json:"status"`
	Source       string   `json:"source"`
	Value        *float64 `json:"value"`
	StatusColor  string   `json:"status_color"`
	SourceIcon   string   `json:"source_icon"`
	ValueDisplay string   `json:"value_display"`
}

func ToResponse(l models.Lead) Response {
	return Response{
		Lead:         l,
		Name:         l.ContactName,
		Company:      l.CompanyName,
		Email:        l.ContactEmail,
		Status:       l.EnquiryStatus,
		Source:       l.EnquiryType,
		Value:        l.EstimatedValue,
		StatusColor:  StatusColor(l.EnquiryStatus),
		SourceIcon:   SourceIcon(l.EnquiryType),
		ValueDisplay: FormatCurrencyPtr(l.EstimatedValue),
	}
}

func ToResponses(ls []models.Lead) []Response {
	out := make([]Response, len(ls))
	for i, l := range ls {
		out[i] = ToResponse(l)
	}
	return out
}

// FormOf renders a stored lead as a LeadForm for validation.
func FormOf(l *models.Lead) LeadForm {
	form := LeadForm{
		Name:    l.ContactName,
		Company: l.CompanyName,
		Email:   l.ContactEmail,
	}
	if l.EstimatedValue != nil {
		form.Value = strconv.FormatFloat(*l.EstimatedValue, 'f', -1, 64)
	}
	if l.LeadScore != 0 {
		form.LeadScore = strconv.Itoa(l.LeadScore)
	}
	return form
}
