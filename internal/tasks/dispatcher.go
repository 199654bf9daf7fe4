package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/pkg/queue"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher queues import jobs for the worker.
type Dispatcher struct {
	client Enqueuer
}

func NewDispatcher(client Enqueuer) *Dispatcher {
	return &Dispatcher{client: client}
}

// EnqueueImport queues jobID once. A second call for the same job is a no-op.
func (d *Dispatcher) EnqueueImport(ctx context.Context, jobID uuid.UUID) error {
	task, err := NewLeadImportTask(LeadImportPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("creating import task: %w", err)
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueueImports),
		asynq.TaskID(TypeLeadImport+":"+jobID.String()),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueueing import task: %w", err)
	}
	return nil
}
