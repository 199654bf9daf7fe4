package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{3,20}$`)

// Validator wraps go-playground/validator with the custom tags used by
// request DTOs and reports fields by their JSON names.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := ParseDate(value)
		return err == nil
	})

	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		return phoneRegex.MatchString(value)
	})

	return &Validator{v: v}
}

// Struct validates s and returns field→message details, or nil when valid.
func (v *Validator) Struct(s interface{}) map[string]string {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"_": err.Error()}
	}
	return Details(ve)
}

// Details converts validator errors into user-facing messages.
func Details(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = message(err)
	}
	return details
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(err.Param(), " ", ", ")
	case "min":
		if err.Kind() == reflect.String {
			return "must be at least " + err.Param() + " characters"
		}
		return "must be at least " + err.Param()
	case "max":
		if err.Kind() == reflect.String {
			return "must be at most " + err.Param() + " characters"
		}
		return "must be at most " + err.Param()
	case "gte":
		return "must be greater than or equal to " + err.Param()
	case "lte":
		return "must be less than or equal to " + err.Param()
	case "uuid":
		return "must be a valid id"
	case "url":
		return "must be a valid URL"
	case "date":
		return "must be a date (YYYY-MM-DD)"
	case "phone":
		return "must be a valid phone number"
	default:
		return "is invalid"
	}
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
