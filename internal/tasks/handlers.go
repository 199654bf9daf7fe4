package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/pkg/mailer"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	imports *imports.Service
	leads   *leads.Service
	mailer  mailer.Mailer
	now     func() time.Time
}

func NewHandler(db *gorm.DB, logger *slog.Logger, importSvc *imports.Service, leadSvc *leads.Service, m mailer.Mailer) *Handler {
	return &Handler{
		db:      db,
		logger:  logger,
		imports: importSvc,
		leads:   leadSvc,
		mailer:  m,
		now:     time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeLeadImport, h.HandleLeadImport)
	mux.HandleFunc(TypeFollowUpReminders, h.HandleFollowUpReminders)
}

func (h *Handler) HandleLeadImport(ctx context.Context, t *asynq.Task) error {
	var payload LeadImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	h.logger.Info("starting lead import", "job_id", payload.JobID)

	err := h.imports.Process(ctx, payload.JobID)
	if errors.Is(err, imports.ErrJobNotFound) {
		h.logger.Warn("import job not found", "job_id", payload.JobID)
		return fmt.Errorf("job %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("processing import %s: %w", payload.JobID, err)
	}

	h.logger.Info("completed lead import", "job_id", payload.JobID)
	return nil
}

var reminderTmpl = template.Must(template.New("reminder").Parse(`<p>Hi {{.Name}},</p>
<p>You have {{len .Leads}} lead follow-up(s) due:</p>
<table>
<tr><th>Enquiry</th><th>Company</th><th>Contact</th><th>Status</th><th>Due</th></tr>
{{range .Leads}}<tr><td>{{.EnquiryNo}}</td><td>{{.CompanyName}}</td><td>{{.ContactName}}</td><td>{{.EnquiryStatus}}</td><td>{{.NextFollowUp.Format "2006-01-02"}}</td></tr>
{{end}}</table>`))

type reminderData struct {
	Name  string
	Leads []models.Lead
}

func recipientOf(l *models.Lead) *uuid.UUID {
	if l.AssignedTo != nil {
		return l.AssignedTo
	}
	return l.CreatedBy
}

// HandleFollowUpReminders mails each user the open leads whose follow-up is
// due, using the assignee or, failing that, the lead's creator.
func (h *Handler) HandleFollowUpReminders(ctx context.Context, t *asynq.Task) error {
	var payload FollowUpRemindersPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := h.now().UTC()
	if payload.AsOf != nil {
		asOf = payload.AsOf.UTC()
	}

	due, err := h.leads.DueFollowUps(ctx, asOf)
	if err != nil {
		return err
	}

	byUser := make(map[uuid.UUID][]models.Lead)
	var order []uuid.UUID
	for _, l := range due {
		id := recipientOf(&l)
		if id == nil {
			continue
		}
		if _, ok := byUser[*id]; !ok {
			order = append(order, *id)
		}
		byUser[*id] = append(byUser[*id], l)
	}
	if len(order) == 0 {
		h.logger.Info("no follow-ups due", "as_of", asOf.Format("2006-01-02"))
		return nil
	}

	var users []models.User
	if err := h.db.WithContext(ctx).
		Where("id IN ? AND status = ?", order, models.UserStatusActive).
		Find(&users).Error; err != nil {
		return fmt.Errorf("loading reminder recipients: %w", err)
	}
	usersByID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	var sent, failed int
	for _, id := range order {
		user, ok := usersByID[id]
		if !ok {
			continue
		}
		if err := h.sendReminder(ctx, user, byUser[id]); err != nil {
			failed++
			h.logger.Error("failed to send follow-up reminder", "user_id", id, "error", err)
			continue
		}
		sent++
	}

	h.logger.Info("follow-up reminders sent",
		"as_of", asOf.Format("2006-01-02"),
		"due", len(due),
		"sent", sent,
		"failed", failed,
	)
	if sent == 0 && failed > 0 {
		return fmt.Errorf("all %d reminder emails failed", failed)
	}
	return nil
}

func (h *Handler) sendReminder(ctx context.Context, user models.User, due []models.Lead) error {
	var body bytes.Buffer
	if err := reminderTmpl.Execute(&body, reminderData{Name: user.FullName(), Leads: due}); err != nil {
		return fmt.Errorf("rendering reminder: %w", err)
	}
	return h.mailer.Send(ctx, mailer.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("%d lead follow-up(s) due", len(due)),
		HTML:    body.String(),
	})
}
