package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/hugh/go-crm/pkg/mailer"
	"github.com/hugh/go-crm/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	ts      *testutil.TestSetup
	handler *Handler
	imports *imports.Service
	mail    *mailer.LogMailer
}

func newHandlerFixture(t *testing.T, opts ...imports.Option) *handlerFixture {
	t.Helper()
	ts := testutil.NewTestContext(t)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	leadSvc := leads.NewService(ts.DB, ts.Logger)
	importSvc := imports.NewService(ts.DB, store, cache.NewMemory(), leadSvc, ts.Logger, opts...)
	mail := mailer.NewLogMailer(ts.Logger)

	return &handlerFixture{
		ts:      ts,
		handler: NewHandler(ts.DB, ts.Logger, importSvc, leadSvc, mail),
		imports: importSvc,
		mail:    mail,
	}
}

func TestNewHandler(t *testing.T) {
	f := newHandlerFixture(t)

	assert.NotNil(t, f.handler.db)
	assert.NotNil(t, f.handler.logger)
	assert.NotNil(t, f.handler.imports)
	assert.NotNil(t, f.handler.leads)
	assert.NotNil(t, f.handler.mailer)
}

func TestRegisterHandlers(t *testing.T) {
	f := newHandlerFixture(t)
	mux := asynq.NewServeMux()
	f.handler.RegisterHandlers(mux)

	for _, typ := range []string{TypeLeadImport, TypeFollowUpReminders} {
		h, pattern := mux.Handler(asynq.NewTask(typ, nil))
		assert.NotNil(t, h)
		assert.Equal(t, typ, pattern)
	}
}

func TestHandleLeadImport_InvalidPayload(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.handler.HandleLeadImport(context.Background(), asynq.NewTask(TypeLeadImport, []byte("invalid json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleLeadImport_UnknownJob(t *testing.T) {
	f := newHandlerFixture(t)

	task, err := NewLeadImportTask(LeadImportPayload{JobID: uuid.New()})
	require.NoError(t, err)

	err = f.handler.HandleLeadImport(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, imports.ErrJobNotFound)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func TestHandleLeadImport_RunsQueuedJob(t *testing.T) {
	enq := &recordingEnqueuer{}
	f := newHandlerFixture(t, imports.WithDispatcher(NewDispatcher(enq)))
	ctx := testutil.TestContext(t)

	csv := "Company Name,Contact Name,Contact Email\nAcme,Jane,jane@acme.com\nGlobex,John,john@globex.com\n"
	job, err := f.imports.Submit(ctx, f.ts.Session(), imports.SubmitInput{
		FileName: "leads.csv",
		Size:     int64(len(csv)),
		Body:     strings.NewReader(csv),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusPending, job.Status)

	require.Len(t, enq.tasks, 1)
	task := enq.tasks[0]
	assert.Equal(t, TypeLeadImport, task.Type())

	var payload LeadImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, job.ID, payload.JobID)

	require.NoError(t, f.handler.HandleLeadImport(ctx, task))

	status, err := f.imports.Status(ctx, f.ts.Org.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusCompleted, status.Status)
	assert.Equal(t, 2, status.Successful)
}

func TestDispatcher_EnqueueImport(t *testing.T) {
	ctx := context.Background()

	enq := &recordingEnqueuer{}
	require.NoError(t, NewDispatcher(enq).EnqueueImport(ctx, uuid.New()))
	assert.Len(t, enq.tasks, 1)

	// The job is already queued.
	conflict := &recordingEnqueuer{err: asynq.ErrTaskIDConflict}
	assert.NoError(t, NewDispatcher(conflict).EnqueueImport(ctx, uuid.New()))

	broken := &recordingEnqueuer{err: errors.New("redis: connection refused")}
	err := NewDispatcher(broken).EnqueueImport(ctx, uuid.New())
	assert.ErrorContains(t, err, "enqueueing import task")
}

func TestHandleFollowUpReminders(t *testing.T) {
	f := newHandlerFixture(t)
	ts := f.ts
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	f.handler.now = func() time.Time { return today }

	manager := testutil.CreateTestUserWithRole(t, ts.DB, ts.Org, models.RoleManager)
	inactive := testutil.CreateTestUserWithRole(t, ts.DB, ts.Org, models.RoleUser)
	require.NoError(t, ts.DB.Model(inactive).Update("status", models.UserStatusInactive).Error)

	day := func(d int) *time.Time {
		v := time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
		return &v
	}

	// Due for the manager: overdue and today.
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &manager.ID
		l.NextFollowUp = day(8)
	})
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &manager.ID
		l.NextFollowUp = day(10)
		l.CompanyName = "Globex"
	})
	// Unassigned, falls back to the creator.
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.CreatedBy = &ts.User.ID
		l.NextFollowUp = day(9)
	})
	// Not due, terminal, inactive recipient, or nobody to tell.
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &manager.ID
		l.NextFollowUp = day(11)
	})
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &manager.ID
		l.NextFollowUp = day(1)
		l.EnquiryStatus = leads.StatusLost
	})
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &inactive.ID
		l.NextFollowUp = day(1)
	})
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.NextFollowUp = day(1)
	})

	task, err := NewFollowUpRemindersTask(FollowUpRemindersPayload{})
	require.NoError(t, err)
	require.NoError(t, f.handler.HandleFollowUpReminders(context.Background(), task))

	sent := f.mail.Sent()
	require.Len(t, sent, 2)

	byRecipient := map[string]mailer.Message{}
	for _, m := range sent {
		require.Len(t, m.To, 1)
		byRecipient[m.To[0]] = m
	}

	mgrMail, ok := byRecipient[manager.Email]
	require.True(t, ok)
	assert.Equal(t, "2 lead follow-up(s) due", mgrMail.Subject)
	assert.Contains(t, mgrMail.HTML, "Globex")
	assert.Contains(t, mgrMail.HTML, "2025-03-08")

	adminMail, ok := byRecipient[ts.User.Email]
	require.True(t, ok)
	assert.Equal(t, "1 lead follow-up(s) due", adminMail.Subject)
}

func TestHandleFollowUpReminders_AsOfOverride(t *testing.T) {
	f := newHandlerFixture(t)
	ts := f.ts
	f.handler.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	testutil.CreateTestLead(t, ts.DB, ts.Org.ID, func(l *models.Lead) {
		l.AssignedTo = &ts.User.ID
		l.NextFollowUp = &due
	})

	task, err := NewFollowUpRemindersTask(FollowUpRemindersPayload{})
	require.NoError(t, err)
	require.NoError(t, f.handler.HandleFollowUpReminders(context.Background(), task))
	assert.Empty(t, f.mail.Sent())

	asOf := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	task, err = NewFollowUpRemindersTask(FollowUpRemindersPayload{AsOf: &asOf})
	require.NoError(t, err)
	require.NoError(t, f.handler.HandleFollowUpReminders(context.Background(), task))
	assert.Len(t, f.mail.Sent(), 1)
}
