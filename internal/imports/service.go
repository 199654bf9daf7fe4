package imports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/cache"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/leads"
	"github.com/hugh/go-crm/pkg/storage"
	"gorm.io/gorm"
)

const progressTTL = time.Hour

var ErrJobNotFound = errors.New("import job not found")

// MappingError rejects an advanced import whose mapping misses required fields.
type MappingError struct {
	Missing []string
}

func (e *MappingError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// Dispatcher hands a stored job to the background worker.
type Dispatcher interface {
	EnqueueImport(ctx context.Context, jobID uuid.UUID) error
}

type Service struct {
	db         *gorm.DB
	store      storage.BlobStore
	progress   cache.Cache
	importer   *Importer
	dispatcher Dispatcher
	maxBytes   int64
	logger     *slog.Logger
}

type Option func(*Service)

// WithDispatcher queues jobs instead of running them during Submit.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithMaxBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func NewService(db *gorm.DB, store storage.BlobStore, progress cache.Cache, leadSvc *leads.Service, logger *slog.Logger, opts ...Option) *Service {
	if progress == nil {
		progress = cache.NewNoop()
	}
	s := &Service{
		db:       db,
		store:    store,
		progress: progress,
		importer: NewImporter(db, leadSvc, logger),
		maxBytes: MaxFileSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func progressKey(jobID uuid.UUID) string {
	return "import:progress:" + jobID.String()
}

func blobKey(orgID, jobID uuid.UUID, name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("imports/%s/%s/%s", orgID, jobID, name)
}

type SubmitInput struct {
	FileName string
	Size     int64
	Body     io.Reader
	Mode     string
	Mapping  map[string]string
}

// Submit checks and stores an upload and creates its job. The job is queued
// when a dispatcher is configured and processed before returning otherwise.
func (s *Service) Submit(ctx context.Context, session auth.Session, in SubmitInput) (*models.ImportJob, error) {
	mode := strings.ToLower(strings.TrimSpace(in.Mode))
	if mode == "" {
		mode = models.ImportModeQuick
	}

	w := NewWizard(s.maxBytes)
	if err := w.ChooseMode(mode); err != nil {
		return nil, err
	}
	if err := w.SelectFile(in.FileName, in.Size); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	var mapping map[string]string
	if mode == models.ImportModeAdvanced {
		sheet, err := Parse(w.Format, data)
		if err != nil {
			return nil, err
		}
		if err := w.LoadSheet(sheet); err != nil {
			return nil, err
		}
		if in.Mapping != nil {
			w.Mapping = make(map[string]string)
		}
		for header, field := range in.Mapping {
			if err := w.SetMapping(header, field); err != nil {
				return nil, err
			}
		}
		if missing := w.MissingFields(); len(missing) > 0 {
			return nil, &MappingError{Missing: missing}
		}
		mapping = EffectiveMapping(w.Mapping, sheet.Headers)
	}
	if err := w.Start(); err != nil {
		return nil, err
	}

	job := &models.ImportJob{
		OrganizationID: session.OrganizationID,
		Mode:           mode,
		FileName:       in.FileName,
		Mapping:        mapping,
		Status:         models.ImportStatusPending,
		Errors:         []string{},
		CreatedBy:      &session.UserID,
	}
	job.ID = uuid.New()
	job.FileKey = blobKey(session.OrganizationID, job.ID, in.FileName)

	if err := s.store.Put(ctx, job.FileKey, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		s.removeBlob(ctx, job)
		return nil, fmt.Errorf("creating import job: %w", err)
	}

	s.logger.Info("import job created",
		"job_id", job.ID,
		"org_id", job.OrganizationID,
		"mode", job.Mode,
		"file", job.FileName,
	)

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueImport(ctx, job.ID); err != nil {
			s.logger.Error("failed to enqueue import", "job_id", job.ID, "error", err)
			if ferr := s.finish(ctx, job, Result{}, fmt.Errorf("could not queue import: %w", err)); ferr != nil {
				return nil, ferr
			}
		}
		return job, nil
	}

	if err := s.Process(ctx, job.ID); err != nil {
		return nil, err
	}
	return s.load(ctx, job.ID)
}

func (s *Service) load(ctx context.Context, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading import job: %w", err)
	}
	return &job, nil
}

// Process runs a stored job. It is a no-op for finished jobs. Failures while
// importing end the job as failed; only bookkeeping errors are returned.
func (s *Service) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.load(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Finished() {
		s.logger.Debug("import job already finished", "job_id", job.ID, "status", job.Status)
		return nil
	}

	now := time.Now().UTC()
	job.Status = models.ImportStatusRunning
	job.StartedAt = &now
	if err := s.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
		"status":     job.Status,
		"started_at": job.StartedAt,
	}).Error; err != nil {
		return fmt.Errorf("marking import running: %w", err)
	}

	result, runErr := s.run(ctx, job)
	return s.finish(ctx, job, result, runErr)
}

func (s *Service) run(ctx context.Context, job *models.ImportJob) (Result, error) {
	format, err := DetectFormat(job.FileName)
	if err != nil {
		return Result{}, err
	}

	rc, err := s.store.Get(ctx, job.FileKey)
	if err != nil {
		return Result{}, fmt.Errorf("reading upload: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Result{}, fmt.Errorf("reading upload: %w", err)
	}

	sheet, err := Parse(format, data)
	if err != nil {
		return Result{}, err
	}

	mapping := job.Mapping
	if len(mapping) == 0 {
		mapping = AutoMap(sheet.Headers)
	}
	mapping = EffectiveMapping(mapping, sheet.Headers)
	if missing := ValidateMapping(mapping, sheet.Headers); len(missing) > 0 {
		return Result{Total: len(sheet.Rows)}, &MappingError{Missing: missing}
	}

	job.Total = len(sheet.Rows)
	if err := s.db.WithContext(ctx).Model(job).Update("total", job.Total).Error; err != nil {
		return Result{}, fmt.Errorf("saving total: %w", err)
	}
	s.publish(ctx, job.ID, Progress{Total: job.Total})

	session := auth.Session{
		OrganizationID: job.OrganizationID,
		Role:           models.RoleUser,
	}
	if job.CreatedBy != nil {
		session.UserID = *job.CreatedBy
	}

	return s.importer.Run(ctx, session, sheet, mapping, func(p Progress) {
		err := s.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
			"processed":  p.Processed,
			"successful": p.Successful,
			"failed":     p.Failed,
			"duplicates": p.Duplicates,
		}).Error
		if err != nil {
			s.logger.Warn("failed to save import progress", "job_id", job.ID, "error", err)
		}
		s.publish(ctx, job.ID, p)
	})
}

// finish records the final state of a job and removes its upload.
func (s *Service) finish(ctx context.Context, job *models.ImportJob, result Result, runErr error) error {
	now := time.Now().UTC()

	job.Total = max(job.Total, result.Total)
	job.Processed = result.Successful + result.Failed + result.Duplicates
	job.Successful = result.Successful
	job.Failed = result.Failed
	job.Duplicates = result.Duplicates
	job.Errors = result.Errors
	job.Status = models.ImportStatusCompleted
	job.CompletedAt = &now

	if runErr != nil {
		s.logger.Error("import job failed", "job_id", job.ID, "error", runErr)
		job.Status = models.ImportStatusFailed
		job.Failed = max(job.Failed, 1)
		job.Errors = []string{"Import failed: " + runErr.Error()}
	}
	if job.Errors == nil {
		job.Errors = []string{}
	}

	// Detached so a cancelled worker context still records the outcome.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.db.WithContext(saveCtx).Save(job).Error; err != nil {
		return fmt.Errorf("saving import result: %w", err)
	}

	s.publish(saveCtx, job.ID, Progress{
		Total:      job.Total,
		Processed:  job.Processed,
		Successful: job.Successful,
		Failed:     job.Failed,
		Duplicates: job.Duplicates,
	})
	s.removeBlob(saveCtx, job)
	return nil
}

func (s *Service) removeBlob(ctx context.Context, job *models.ImportJob) {
	if err := s.store.Delete(ctx, job.FileKey); err != nil {
		s.logger.Warn("failed to delete import upload", "job_id", job.ID, "key", job.FileKey, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, jobID uuid.UUID, p Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.progress.Set(ctx, progressKey(jobID), data, progressTTL); err != nil {
		s.logger.Debug("failed to publish import progress", "job_id", jobID, "error", err)
	}
}

// Status returns a job with the latest published progress applied.
func (s *Service) Status(ctx context.Context, orgID, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", jobID, orgID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading import job: %w", err)
	}
	if job.Finished() {
		return &job, nil
	}

	data, ok, err := s.progress.Get(ctx, progressKey(job.ID))
	if err != nil || !ok {
		return &job, nil
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return &job, nil
	}
	if p.Processed > job.Processed {
		job.Total = max(job.Total, p.Total)
		job.Processed = p.Processed
		job.Successful = p.Successful
		job.Failed = p.Failed
		job.Duplicates = p.Duplicates
	}
	return &job, nil
}
