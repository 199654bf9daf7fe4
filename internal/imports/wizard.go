package imports

import (
	"errors"
	"fmt"

	"github.com/hugh/go-crm/internal/database/models"
)

// Step is a stage of the lead import wizard.
type Step string

const (
	StepChooseMode Step = "choose_mode"
	StepQuick      Step = "quick"
	StepAdvanced   Step = "advanced"
	StepMapping    Step = "mapping"
	StepProgress   Step = "progress"
	StepResults    Step = "results"
)

var (
	ErrInvalidStep = errors.New("action not allowed at this step")
	ErrInvalidMode = errors.New("mode must be quick or advanced")
)

// Result is the outcome shown on the results step.
type Result struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
}

// FailureResult is the result of an import that could not run at all.
func FailureResult(err error) Result {
	return Result{Failed: 1, Errors: []string{err.Error()}}
}

// Wizard walks an upload through mode choice, file selection, optional
// column mapping, progress and results. Failed actions leave it unchanged.
type Wizard struct {
	Step     Step
	Mode     string
	FileName string
	Format   Format
	Sheet    *Sheet
	Mapping  map[string]string
	Result   *Result

	// MaxBytes caps the upload size; zero means MaxFileSize.
	MaxBytes int64
}

func NewWizard(maxBytes int64) *Wizard {
	return &Wizard{Step: StepChooseMode, MaxBytes: maxBytes}
}

func (w *Wizard) ChooseMode(mode string) error {
	if w.Step != StepChooseMode {
		return fmt.Errorf("%w: choose mode at %s", ErrInvalidStep, w.Step)
	}
	switch mode {
	case models.ImportModeQuick:
		w.Step = StepQuick
	case models.ImportModeAdvanced:
		w.Step = StepAdvanced
	default:
		return ErrInvalidMode
	}
	w.Mode = mode
	return nil
}

// SelectFile checks the file against the allowed types and size.
func (w *Wizard) SelectFile(name string, size int64) error {
	if w.Step != StepQuick && w.Step != StepAdvanced {
		return fmt.Errorf("%w: select file at %s", ErrInvalidStep, w.Step)
	}
	format, err := checkFile(name, size, w.MaxBytes)
	if err != nil {
		return err
	}
	w.FileName = name
	w.Format = format
	return nil
}

// LoadSheet moves an advanced import to the mapping step with a suggested mapping.
func (w *Wizard) LoadSheet(sheet *Sheet) error {
	if w.Step != StepAdvanced || w.FileName == "" {
		return fmt.Errorf("%w: load sheet at %s", ErrInvalidStep, w.Step)
	}
	w.Sheet = sheet
	w.Mapping = AutoMap(sheet.Headers)
	w.Step = StepMapping
	return nil
}

// Preview returns the rows shown under the mapping form.
func (w *Wizard) Preview() []map[string]string {
	if w.Sheet == nil {
		return nil
	}
	return w.Sheet.Preview(PreviewRows)
}

// SetMapping maps header to field. An empty field unmaps the header.
func (w *Wizard) SetMapping(header, field string) error {
	if w.Step != StepMapping {
		return fmt.Errorf("%w: set mapping at %s", ErrInvalidStep, w.Step)
	}
	if field == "" {
		delete(w.Mapping, header)
		return nil
	}
	if !KnownField(field) {
		return fmt.Errorf("unknown field %q", field)
	}
	w.Mapping[header] = field
	return nil
}

// MissingFields lists required fields the current mapping does not cover.
func (w *Wizard) MissingFields() []string {
	if w.Sheet == nil {
		return RequiredFields
	}
	return ValidateMapping(w.Mapping, w.Sheet.Headers)
}

func (w *Wizard) CanStartImport() bool {
	switch w.Step {
	case StepQuick:
		return w.FileName != ""
	case StepMapping:
		return len(w.MissingFields()) == 0
	}
	return false
}

func (w *Wizard) Start() error {
	if !w.CanStartImport() {
		return fmt.Errorf("%w: start import at %s", ErrInvalidStep, w.Step)
	}
	w.Step = StepProgress
	return nil
}

func (w *Wizard) Finish(result Result) {
	w.Result = &result
	w.Step = StepResults
}

// Fail ends the import with a single synthetic error so results can always be shown.
func (w *Wizard) Fail(err error) {
	w.Finish(FailureResult(err))
}

func (w *Wizard) Reset() {
	*w = Wizard{Step: StepChooseMode, MaxBytes: w.MaxBytes}
}
