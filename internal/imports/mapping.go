package imports

import (
	"strings"

	"github.com/hugh/go-crm/internal/leads"
)

// Lead fields a column can be mapped to.
const (
	FieldCompanyName        = "company_name"
	FieldContactName        = "contact_name"
	FieldContactEmail       = "contact_email"
	FieldPhone              = "phone"
	FieldCity               = "city"
	FieldState              = "state"
	FieldCountry            = "country"
	FieldAddress            = "address"
	FieldIndustry           = "industry"
	FieldWebsite            = "website"
	FieldEnquiryType        = "enquiry_type"
	FieldEnquiryStatus      = "enquiry_status"
	FieldProjectStatus      = "project_status"
	FieldProjectDescription = "project_description"
	FieldEstimatedValue     = "estimated_value"
	FieldLeadScore          = "lead_score"
	FieldNextFollowUp       = "next_follow_up"
	FieldNotes              = "notes"
	FieldTags               = "tags"
)

var knownFields = map[string]bool{
	FieldCompanyName: true, FieldContactName: true, FieldContactEmail: true,
	FieldPhone: true, FieldCity: true, FieldState: true, FieldCountry: true,
	FieldAddress: true, FieldIndustry: true, FieldWebsite: true,
	FieldEnquiryType: true, FieldEnquiryStatus: true, FieldProjectStatus: true,
	FieldProjectDescription: true, FieldEstimatedValue: true, FieldLeadScore: true,
	FieldNextFollowUp: true, FieldNotes: true, FieldTags: true,
}

// KnownField reports whether field is a valid mapping target.
func KnownField(field string) bool {
	return knownFields[field]
}

// RequiredFields must be mapped or present under a recognised header.
var RequiredFields = []string{FieldCompanyName, FieldContactName, FieldContactEmail}

// headerVariants are header spellings accepted for required fields without
// an explicit mapping.
var headerVariants = map[string][]string{
	FieldCompanyName:  {"company name", "company_name", "company"},
	FieldContactName:  {"contact name", "contact_name", "name"},
	FieldContactEmail: {"contact email", "contact_email", "email"},
}

type rule struct {
	all   []string
	field string
}

// Checked in order; the first rule whose keywords all appear wins.
var rules = []rule{
	{[]string{"company"}, FieldCompanyName},
	{[]string{"contact", "name"}, FieldContactName},
	{[]string{"contact", "email"}, FieldContactEmail},
	{[]string{"city"}, FieldCity},
	{[]string{"project", "description"}, FieldProjectDescription},
	{[]string{"enquiry", "type"}, FieldEnquiryType},
	{[]string{"enquiry", "status"}, FieldEnquiryStatus},
	{[]string{"project", "status"}, FieldProjectStatus},
	{[]string{"phone"}, FieldPhone},
	{[]string{"email"}, FieldContactEmail},
	{[]string{"source"}, FieldEnquiryType},
	{[]string{"value"}, FieldEstimatedValue},
	{[]string{"amount"}, FieldEstimatedValue},
	{[]string{"score"}, FieldLeadScore},
	{[]string{"follow"}, FieldNextFollowUp},
	{[]string{"website"}, FieldWebsite},
	{[]string{"industry"}, FieldIndustry},
	{[]string{"address"}, FieldAddress},
	{[]string{"state"}, FieldState},
	{[]string{"country"}, FieldCountry},
	{[]string{"notes"}, FieldNotes},
	{[]string{"tags"}, FieldTags},
}

func (r rule) matches(header string) bool {
	for _, kw := range r.all {
		if !strings.Contains(header, kw) {
			return false
		}
	}
	return true
}

// AutoMap guesses a field for each header by keyword. Headers that match
// nothing, or whose field was already taken by an earlier header, are left out.
func AutoMap(headers []string) map[string]string {
	mapping := make(map[string]string)
	taken := make(map[string]bool)

	for _, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		if lower == "" {
			continue
		}
		for _, r := range rules {
			if taken[r.field] || !r.matches(lower) {
				continue
			}
			mapping[h] = r.field
			taken[r.field] = true
			break
		}
	}
	return mapping
}

func hasVariant(field string, headers []string) (string, bool) {
	for _, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		for _, v := range headerVariants[field] {
			if lower == v {
				return h, true
			}
		}
	}
	return "", false
}

func mapped(mapping map[string]string, field string) bool {
	for _, f := range mapping {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateMapping returns the required fields that are neither mapped nor
// present under a known header spelling. An empty result means the import can start.
func ValidateMapping(mapping map[string]string, headers []string) []string {
	var missing []string
	for _, field := range RequiredFields {
		if mapped(mapping, field) {
			continue
		}
		if _, ok := hasVariant(field, headers); ok {
			continue
		}
		missing = append(missing, field)
	}
	return missing
}

// EffectiveMapping drops unknown targets and headers not in the file, then
// maps known header variants for required fields that are still unmapped.
func EffectiveMapping(mapping map[string]string, headers []string) map[string]string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}

	out := make(map[string]string, len(mapping))
	for h, f := range mapping {
		if present[h] && KnownField(f) {
			out[h] = f
		}
	}

	for _, field := range RequiredFields {
		if mapped(out, field) {
			continue
		}
		if h, ok := hasVariant(field, headers); ok {
			if _, used := out[h]; !used {
				out[h] = field
			}
		}
	}
	return out
}

// rowPayload builds a lead payload from one row using a header→field mapping.
func rowPayload(row map[string]string, mapping map[string]string) leads.Payload {
	var p leads.Payload
	for header, field := range mapping {
		raw, ok := row[header]
		if !ok {
			continue
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		s := &v
		switch field {
		case FieldCompanyName:
			p.CompanyName = s
		case FieldContactName:
			p.ContactName = s
		case FieldContactEmail:
			p.ContactEmail = s
		case FieldPhone:
			p.Phone = s
		case FieldCity:
			p.City = s
		case FieldState:
			p.State = s
		case FieldCountry:
			p.Country = s
		case FieldAddress:
			p.Address = s
		case FieldIndustry:
			p.Industry = s
		case FieldWebsite:
			p.Website = s
		case FieldEnquiryType:
			p.EnquiryType = s
		case FieldEnquiryStatus:
			p.EnquiryStatus = s
		case FieldProjectStatus:
			p.ProjectStatus = s
		case FieldProjectDescription:
			p.ProjectDescription = s
		case FieldEstimatedValue:
			p.EstimatedValue = &leads.Amount{Raw: v}
		case FieldLeadScore:
			p.LeadScore = &leads.Amount{Raw: v}
		case FieldNextFollowUp:
			p.NextFollowUp = s
		case FieldNotes:
			p.Notes = s
		case FieldTags:
			p.Tags = s
		}
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// rowForm is the validation view of a row payload.
func rowForm(p leads.Payload) leads.LeadForm {
	form := leads.LeadForm{
		Name:    deref(p.ContactName),
		Company: deref(p.CompanyName),
		Email:   deref(p.ContactEmail),
	}
	if p.EstimatedValue != nil {
		form.Value = p.EstimatedValue.Raw
	}
	if p.LeadScore != nil {
		form.LeadScore = p.LeadScore.Raw
	}
	return form
}
