package imports_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/hugh/go-crm/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadsCSV = `Company Name,Contact Name,Contact Email,City
Globex,John Smith,john@globex.com,Mumbai
Initech,Bill,not-an-email,Delhi
Globex Corp,Johnny,JOHN@globex.com,Mumbai
Acme Industries,Jane Doe,other@acme.com,Pune
Umbrella,Alice,alice@umbrella.com,Pune
,Nobody,nobody@example.com,
`

type fixture struct {
	ts       *testutil.TestSetup
	store    *storage.LocalStore
	progress *cache.MemoryCache
	svc      *imports.Service
}

func newFixture(t *testing.T, opts ...imports.Option) *fixture {
	t.Helper()
	ts := testutil.NewTestContext(t)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	progress := cache.NewMemory()
	leadSvc := leads.NewService(ts.DB, ts.Logger)

	return &fixture{
		ts:       ts,
		store:    store,
		progress: progress,
		svc:      imports.NewService(ts.DB, store, progress, leadSvc, ts.Logger, opts...),
	}
}

func (f *fixture) submit(t *testing.T, name, body, mode string, mapping map[string]string) (*models.ImportJob, error) {
	t.Helper()
	return f.svc.Submit(testutil.TestContext(t), f.ts.Session(), imports.SubmitInput{
		FileName: name,
		Size:     int64(len(body)),
		Body:     strings.NewReader(body),
		Mode:     mode,
		Mapping:  mapping,
	})
}

func (f *fixture) countLeads(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.ts.DB.Model(&models.Lead{}).Where("organization_id = ?", f.ts.Org.ID).Count(&n).Error)
	return n
}

func (f *fixture) countJobs(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.ts.DB.Model(&models.ImportJob{}).Count(&n).Error)
	return n
}

func TestSubmit_QuickImport(t *testing.T) {
	f := newFixture(t)
	testutil.CreateTestLead(t, f.ts.DB, f.ts.Org.ID)

	job, err := f.submit(t, "leads.csv", leadsCSV, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, models.ImportModeQuick, job.Mode)
	assert.Equal(t, 6, job.Total)
	assert.Equal(t, 6, job.Processed)
	assert.Equal(t, 2, job.Successful)
	assert.Equal(t, 2, job.Failed)
	assert.Equal(t, 2, job.Duplicates)
	assert.Equal(t, []string{
		"Row 3: Please enter a valid email address",
		"Row 7: Company is required",
	}, job.Errors)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)

	assert.Equal(t, int64(3), f.countLeads(t))

	var imported models.Lead
	require.NoError(t, f.ts.DB.Where("contact_email = ?", "alice@umbrella.com").First(&imported).Error)
	assert.Equal(t, "Umbrella", imported.CompanyName)
	assert.Equal(t, "Pune", imported.City)
	assert.Equal(t, leads.StatusNew, imported.EnquiryStatus)
	require.NotNil(t, imported.CreatedBy)
	assert.Equal(t, f.ts.User.ID, *imported.CreatedBy)

	_, err = f.store.Get(context.Background(), job.FileKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubmit_AdvancedImport(t *testing.T) {
	f := newFixture(t)
	body := "Org,Person,Mail,Deal Size\nAcme,Jane,jane@acme.com,\"₹1,50,000\"\n"

	job, err := f.submit(t, "leads.csv", body, "advanced", map[string]string{
		"Org":       "company_name",
		"Person":    "contact_name",
		"Mail":      "contact_email",
		"Deal Size": "estimated_value",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Successful)
	assert.Equal(t, "company_name", job.Mapping["Org"])

	var lead models.Lead
	require.NoError(t, f.ts.DB.Where("contact_email = ?", "jane@acme.com").First(&lead).Error)
	require.NotNil(t, lead.EstimatedValue)
	assert.Equal(t, 150000.0, *lead.EstimatedValue)
}

func TestSubmit_AdvancedMissingFields(t *testing.T) {
	f := newFixture(t)
	body := "Org,Person,Mail\nAcme,Jane,jane@acme.com\n"

	_, err := f.submit(t, "leads.csv", body, "advanced", map[string]string{
		"Org": "company_name",
	})

	var merr *imports.MappingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, []string{"contact_name", "contact_email"}, merr.Missing)
	assert.Zero(t, f.countJobs(t))
}

func TestSubmit_RejectsBadFiles(t *testing.T) {
	f := newFixture(t, imports.WithMaxBytes(64))

	_, err := f.submit(t, "leads.pdf", "x", "quick", nil)
	assert.ErrorIs(t, err, imports.ErrUnsupportedFile)

	_, err = f.submit(t, "leads.csv", strings.Repeat("a", 65), "quick", nil)
	assert.ErrorIs(t, err, imports.ErrFileTooLarge)

	_, err = f.submit(t, "leads.csv", "a", "turbo", nil)
	assert.ErrorIs(t, err, imports.ErrInvalidMode)

	assert.Zero(t, f.countJobs(t))
}

func TestSubmit_FatalErrorFailsJob(t *testing.T) {
	f := newFixture(t)

	job, err := f.submit(t, "legacy.xls", "not really excel", "quick", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusFailed, job.Status)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0], "legacy .xls")
	assert.NotNil(t, job.CompletedAt)
}

func TestSubmit_QuickMissingColumnsFailsJob(t *testing.T) {
	f := newFixture(t)

	job, err := f.submit(t, "leads.csv", "Random Column\nx\n", "quick", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ImportStatusFailed, job.Status)
	assert.Equal(t, 1, job.Failed)
	assert.Equal(t, []string{"Import failed: missing required fields: company_name, contact_name, contact_email"}, job.Errors)
}

type fakeDispatcher struct {
	ids []uuid.UUID
	err error
}

func (d *fakeDispatcher) EnqueueImport(ctx context.Context, jobID uuid.UUID) error {
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, jobID)
	return nil
}

func TestSubmit_Queued(t *testing.T) {
	d := &fakeDispatcher{}
	f := newFixture(t, imports.WithDispatcher(d))
	ctx := testutil.TestContext(t)

	job, err := f.submit(t, "leads.csv", leadsCSV, "quick", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusPending, job.Status)
	assert.Equal(t, []uuid.UUID{job.ID}, d.ids)
	assert.Zero(t, f.countLeads(t))

	require.NoError(t, f.svc.Process(ctx, job.ID))
	status, err := f.svc.Status(ctx, f.ts.Org.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, status.Status)
	assert.Equal(t, 3, status.Successful)

	// A redelivered task does not import twice.
	require.NoError(t, f.svc.Process(ctx, job.ID))
	assert.Equal(t, int64(3), f.countLeads(t))
}

func TestSubmit_EnqueueFailure(t *testing.T) {
	f := newFixture(t, imports.WithDispatcher(&fakeDispatcher{err: errors.New("redis down")}))

	job, err := f.submit(t, "leads.csv", leadsCSV, "quick", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusFailed, job.Status)
	assert.Equal(t, 1, job.Failed)
	assert.Equal(t, []string{"Import failed: could not queue import: redis down"}, job.Errors)
}

func TestProcess_UnknownJob(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Process(testutil.TestContext(t), uuid.New())
	assert.ErrorIs(t, err, imports.ErrJobNotFound)
}

func TestStatus_UsesPublishedProgress(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.TestContext(t)

	job := &models.ImportJob{
		OrganizationID: f.ts.Org.ID,
		Mode:           models.ImportModeQuick,
		FileName:       "leads.csv",
		Status:         models.ImportStatusRunning,
		Total:          100,
	}
	require.NoError(t, f.ts.DB.Create(job).Error)

	data, err := json.Marshal(imports.Progress{Total: 100, Processed: 50, Successful: 45, Failed: 3, Duplicates: 2})
	require.NoError(t, err)
	require.NoError(t, f.progress.Set(ctx, "import:progress:"+job.ID.String(), data, time.Minute))

	got, err := f.svc.Status(ctx, f.ts.Org.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Processed)
	assert.Equal(t, 45, got.Successful)
	assert.Equal(t, 2, got.Duplicates)

	other := testutil.CreateTestOrg(t, f.ts.DB)
	_, err = f.svc.Status(ctx, other.ID, job.ID)
	assert.ErrorIs(t, err, imports.ErrJobNotFound)
}
