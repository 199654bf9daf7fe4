package leads

import (
	"errors"
	"strings"
)

const (
	StatusNew       = "New"
	StatusWorking   = "Working"
	StatusQuoted    = "Quoted"
	StatusWon       = "Won"
	StatusLost      = "Lost"
	StatusFollowUp  = "Follow-up"
	StatusCold      = "cold"
	StatusWarm      = "warm"
	StatusHot       = "hot"
	StatusQualified = "qualified"
	StatusConverted = "converted"

	ProjectStatusOpen = "Open"
)

var (
	ErrNotFound          = errors.New("lead not found")
	ErrInvalidStatus     = errors.New("invalid lead status")
	ErrInvalidTransition = errors.New("lead status cannot change once converted or lost")
	ErrUseConvert        = errors.New("use the convert operation to mark a lead converted")
	ErrLeadLost          = errors.New("lost leads cannot be converted")
)

// Canonical spellings keyed by lower case. Both pipeline vocabularies are
// accepted; "lost" appears in both and is stored as Lost.
var canonicalStatuses = map[string]string{
	"new":       StatusNew,
	"working":   StatusWorking,
	"quoted":    StatusQuoted,
	"won":       StatusWon,
	"lost":      StatusLost,
	"follow-up": StatusFollowUp,
	"followup":  StatusFollowUp,
	"follow up": StatusFollowUp,
	"cold":      StatusCold,
	"warm":      StatusWarm,
	"hot":       StatusHot,
	"qualified": StatusQualified,
	"converted": StatusConverted,
}

// StageOrder is the display order of pipeline stages.
var StageOrder = []string{
	StatusNew, StatusCold, StatusWarm, StatusHot, StatusWorking, StatusFollowUp,
	StatusQualified, StatusQuoted, StatusWon, StatusConverted, StatusLost,
}

// CanonicalStatus maps any accepted spelling to its stored form.
func CanonicalStatus(s string) (string, bool) {
	c, ok := canonicalStatuses[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// IsTerminal reports whether a lead in this status is closed.
func IsTerminal(status string) bool {
	c, _ := CanonicalStatus(status)
	return c == StatusConverted || c == StatusLost
}

// TerminalStatuses lists the stored spellings of closed statuses.
func TerminalStatuses() []string {
	return []string{StatusConverted, StatusLost}
}

// CheckTransition validates a status change requested through an update.
// It returns the canonical target status.
func CheckTransition(from, to string) (string, error) {
	target, ok := CanonicalStatus(to)
	if !ok {
		return "", ErrInvalidStatus
	}
	current, _ := CanonicalStatus(from)
	if target == current {
		return target, nil
	}
	if IsTerminal(current) {
		return "", ErrInvalidTransition
	}
	if target == StatusConverted {
		return "", ErrUseConvert
	}
	return target, nil
}
