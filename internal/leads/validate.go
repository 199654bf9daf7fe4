package leads

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LeadForm is the raw form input checked by ValidateLead. Numeric fields are
// kept as text so that unparseable input can be reported.
type LeadForm struct {
	Name      string `json:"name"`
	Company   string `json:"company"`
	Email     string `json:"email"`
	Value     string `json:"value"`
	LeadScore string `json:"lead_score"`
}

type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  map[string]string `json:"errors"`
}

// ValidateLead checks the required fields and the format of optional ones.
func ValidateLead(form LeadForm) ValidationResult {
	errs := make(map[string]string)

	if strings.TrimSpace(form.Name) == "" {
		errs["name"] = "Name is required"
	}
	if strings.TrimSpace(form.Company) == "" {
		errs["company"] = "Company is required"
	}
	if email := strings.TrimSpace(form.Email); email != "" && !emailRegex.MatchString(email) {
		errs["email"] = "Please enter a valid email address"
	}
	if v := strings.TrimSpace(form.Value); v != "" {
		if _, err := ParseAmount(v); err != nil {
			errs["value"] = "Value must be a valid number"
		}
	}
	if s := strings.TrimSpace(form.LeadScore); s != "" {
		score, err := strconv.ParseFloat(s, 64)
		if err != nil || score < 0 || score > 100 {
			errs["lead_score"] = "Lead score must be between 0 and 100"
		}
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// ParseAmount parses a money amount, tolerating a currency symbol and
// thousands separators ("₹1,50,000").
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
