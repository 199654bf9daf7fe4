package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeLeadImport        = "lead:import"
	TypeFollowUpReminders = "followup:reminders"
)

// LeadImportPayload names the stored import job to run.
type LeadImportPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

func NewLeadImportTask(payload LeadImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLeadImport, data), nil
}

// FollowUpRemindersPayload is empty for scheduled runs, which use the
// current day. AsOf overrides it for manual runs.
type FollowUpRemindersPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

func NewFollowUpRemindersTask(payload FollowUpRemindersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFollowUpReminders, data), nil
}
