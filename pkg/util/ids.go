package util

import "github.com/oklog/ulid/v2"

const (
	EnquiryPrefix = "ENQ-"
	ProjectPrefix = "PRJ-"
)

// NewEnquiryNo returns a sortable enquiry number: millisecond timestamp plus
// 80 bits of randomness, monotonic within the process.
func NewEnquiryNo() string {
	return EnquiryPrefix + ulid.Make().String()
}

// NewProjectNumber returns a project number in the same format as enquiry numbers.
func NewProjectNumber() string {
	return ProjectPrefix + ulid.Make().String()
}
