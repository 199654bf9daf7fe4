package util

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnquiryNo(t *testing.T) {
	prev := NewEnquiryNo()
	for i := 0; i < 100; i++ {
		next := NewEnquiryNo()
		require.True(t, strings.HasPrefix(next, EnquiryPrefix))
		assert.Greater(t, next, prev)
		prev = next
	}

	_, err := ulid.ParseStrict(strings.TrimPrefix(prev, EnquiryPrefix))
	assert.NoError(t, err)
}

func TestNewProjectNumber(t *testing.T) {
	a, b := NewProjectNumber(), NewProjectNumber()
	assert.True(t, strings.HasPrefix(a, ProjectPrefix))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(ProjectPrefix)+26)
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("0 8 * * *"))
	assert.Error(t, ValidateCronExpr("every morning"))

	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	next, err := NextCronTime("0 8 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), next)
}
