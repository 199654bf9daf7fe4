package imports

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard_QuickPath(t *testing.T) {
	w := NewWizard(0)
	assert.Equal(t, StepChooseMode, w.Step)
	assert.False(t, w.CanStartImport())

	require.NoError(t, w.ChooseMode("quick"))
	assert.Equal(t, StepQuick, w.Step)
	assert.False(t, w.CanStartImport())

	require.NoError(t, w.SelectFile("leads.csv", 2048))
	assert.True(t, w.CanStartImport())

	require.NoError(t, w.Start())
	assert.Equal(t, StepProgress, w.Step)

	w.Finish(Result{Total: 3, Successful: 2, Duplicates: 1, Errors: []string{}})
	assert.Equal(t, StepResults, w.Step)
	assert.Equal(t, 2, w.Result.Successful)

	w.Reset()
	assert.Equal(t, StepChooseMode, w.Step)
	assert.Empty(t, w.FileName)
}

func TestWizard_AdvancedPath(t *testing.T) {
	w := NewWizard(0)
	require.NoError(t, w.ChooseMode("advanced"))
	require.NoError(t, w.SelectFile("leads.csv", 100))

	sheet, err := ParseCSV(strings.NewReader("Org,Person,Mail\nAcme,Jane,jane@acme.com\n"))
	require.NoError(t, err)
	require.NoError(t, w.LoadSheet(sheet))

	assert.Equal(t, StepMapping, w.Step)
	assert.Len(t, w.Preview(), 1)
	assert.False(t, w.CanStartImport())
	assert.ErrorIs(t, w.Start(), ErrInvalidStep)

	require.NoError(t, w.SetMapping("Org", FieldCompanyName))
	require.NoError(t, w.SetMapping("Person", FieldContactName))
	assert.Equal(t, []string{FieldContactEmail}, w.MissingFields())

	require.NoError(t, w.SetMapping("Mail", FieldContactEmail))
	assert.True(t, w.CanStartImport())

	assert.Error(t, w.SetMapping("Mail", "bogus"))
	require.NoError(t, w.SetMapping("Mail", ""))
	assert.False(t, w.CanStartImport())
}

func TestWizard_RejectsBadFileWithoutStateChange(t *testing.T) {
	w := NewWizard(1024)
	require.NoError(t, w.ChooseMode("quick"))

	assert.ErrorIs(t, w.SelectFile("leads.pdf", 10), ErrUnsupportedFile)
	assert.ErrorIs(t, w.SelectFile("leads.csv", 2048), ErrFileTooLarge)
	assert.Equal(t, StepQuick, w.Step)
	assert.Empty(t, w.FileName)
}

func TestWizard_InvalidTransitions(t *testing.T) {
	w := NewWizard(0)
	assert.ErrorIs(t, w.SelectFile("leads.csv", 1), ErrInvalidStep)
	assert.ErrorIs(t, w.ChooseMode("sideways"), ErrInvalidMode)

	require.NoError(t, w.ChooseMode("quick"))
	assert.ErrorIs(t, w.ChooseMode("advanced"), ErrInvalidStep)
	assert.ErrorIs(t, w.LoadSheet(&Sheet{}), ErrInvalidStep)
}

func TestWizard_Fail(t *testing.T) {
	w := NewWizard(0)
	w.Fail(errors.New("network error"))

	assert.Equal(t, StepResults, w.Step)
	assert.Equal(t, 1, w.Result.Failed)
	assert.Equal(t, []string{"network error"}, w.Result.Errors)
}
