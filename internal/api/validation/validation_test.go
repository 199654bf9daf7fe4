package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type companyInput struct {
	Name    string  `json:"name" validate:"required,max=191"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Phone   string  `json:"phone" validate:"omitempty,phone"`
	Founded string  `json:"founded" validate:"omitempty,date"`
	Status  string  `json:"status" validate:"omitempty,oneof=active inactive"`
	Score   *int    `json:"score" validate:"omitempty,gte=0,lte=100"`
	Hidden  string  `json:"-"`
	Value   float64 `json:"value" validate:"gte=0"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()
	badScore := 120

	tests := []struct {
		name  string
		input companyInput
		want  map[string]string
	}{
		{
			name:  "valid",
			input: companyInput{Name: "Acme", Email: "ops@acme.com", Phone: "+91 98450 12345", Founded: "2020-01-31", Status: "active"},
			want:  nil,
		},
		{
			name:  "missing name",
			input: companyInput{},
			want:  map[string]string{"name": "is required"},
		},
		{
			name:  "bad fields",
			input: companyInput{Name: "Acme", Email: "nope", Phone: "call me", Founded: "31/01/2020", Status: "gone", Score: &badScore},
			want: map[string]string{
				"email":   "must be a valid email address",
				"phone":   "must be a valid phone number",
				"founded": "must be a date (YYYY-MM-DD)",
				"status":  "must be one of: active, inactive",
				"score":   "must be less than or equal to 100",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Struct(tt.input))
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2025-03-14T10:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("14/03/2025")
	assert.Error(t, err)
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"short1", false},
		{"longenoughbutnodigits", false},
		{"1234567890", false},
		{"pipeline2025", true},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			valid, msg := IsValidPassword(tt.password)
			assert.Equal(t, tt.valid, valid)
			if !tt.valid {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Corp", SanitizeString("  Acme\x00 Corp\x07 "))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab", TruncateString("ab", 3))
	assert.Equal(t, "₹₹", TruncateString("₹₹₹", 2))
}
