package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"logistria/internal/config"
	"logistria/internal/domain"
	"logistria/internal/etl"
	"logistria/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Import Service: business logic for bulk record imports
// ─────────────────────────────────────────────────────────────

// ErrImportInFlight is returned when the same surface (or, with Redis,
// another instance on the same collection) is already importing.
var ErrImportInFlight = errors.New("an import is already in progress")

// Surfaces that trigger imports outside of a user session.
const (
	SurfaceCLI   = "cli"
	SurfaceMCP   = "mcp"
	SurfaceInbox = "inbox"
)

// EventImportCompleted is emitted with an ImportCompleted after every
// successful import.
const EventImportCompleted = "import:completed"

// ImportCompleted is the payload of EventImportCompleted.
type ImportCompleted struct {
	Surface    string `json:"surface"`
	JobID      string `json:"jobId,omitempty"`
	Target     string `json:"target"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// EventImportFailed is emitted with an ImportFailed when an import that
// acquired its surface fails.
const EventImportFailed = "import:failed"

// ImportFailed is the payload of EventImportFailed.
type ImportFailed struct {
	Surface string `json:"surface"`
	JobID   string `json:"jobId,omitempty"`
	Target  string `json:"target"`
	Error   string `json:"error"`
}

// Locker obtains cross-instance locks. *redislock.Client implements it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// ImportOptions tunes an ImportService. Zero values are usable.
type ImportOptions struct {
	// Timeout bounds one import; defaults to 5 minutes.
	Timeout time.Duration
	// InboxDir, when set, is watched for dropped files.
	InboxDir string
	// Locker, when set, serializes imports per collection across instances.
	Locker Locker
}

// ImportService runs imports, keeps their history and drives saved jobs.
type ImportService struct {
	engine   *etl.Engine
	store    *storage.ImportStore // nil disables history and saved jobs
	emitter  EventEmitter
	locker   Locker
	timeout  time.Duration
	inboxDir string
	validate *validator.Validate
	log      *logrus.Entry

	running runningJobsGuard
	watchers watcherSet
}

// NewImportService creates an ImportService ready for use.
func NewImportService(engine *etl.Engine, store *storage.ImportStore, emitter EventEmitter, opts ImportOptions) *ImportService {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &ImportService{
		engine:   engine,
		store:    store,
		emitter:  emitter,
		locker:   opts.Locker,
		timeout:  opts.Timeout,
		inboxDir: opts.InboxDir,
		validate: validator.New(),
		log:      config.GetLogger().WithField("component", "import"),
	}
}

// ── Run ────────────────────────────────────────────────────

// Import runs one import on behalf of surface (a user id, "cli", "mcp",
// "inbox" or a job). Only one import per surface runs at a time.
func (s *ImportService) Import(ctx context.Context, surface string, req etl.ImportRequest) (*etl.Result, error) {
	return s.run(ctx, surface, "", req)
}

func (s *ImportService) run(ctx context.Context, surface, jobID string, req etl.ImportRequest) (*etl.Result, error) {
	if !s.running.TryLock(surface) {
		return nil, ErrImportInFlight
	}
	defer s.running.Unlock(surface)
	return s.execute(ctx, surface, jobID, req)
}

// execute runs req for surface. The caller holds the surface guard.
func (s *ImportService) execute(ctx context.Context, surface, jobID string, req etl.ImportRequest) (*etl.Result, error) {
	logger := s.log.WithFields(logrus.Fields{
		"surface": surface,
		"target":  req.Target,
		"file":    req.FileName,
	})

	run := &domain.ImportRun{
		JobID:     jobID,
		Surface:   surface,
		Target:    req.Target,
		FileName:  req.FileName,
		StartedAt: time.Now(),
	}

	result, err := s.runLocked(ctx, req, logger)

	run.FinishedAt = time.Now()
	run.DurationMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	if target, lerr := etl.LookupTarget(req.Target); lerr == nil {
		run.Collection = target.Collection
	}
	if err != nil {
		run.Status = domain.StatusError
		run.Error = err.Error()
		logger.WithError(err).Warn("import failed")
	} else {
		run.Status = domain.StatusSuccess
		run.RowsRead = result.RowsRead
		run.RowsWritten = result.RowsWritten
		logger.WithFields(logrus.Fields{
			"collection": result.Collection,
			"rows":       result.RowsWritten,
		}).Info("import committed")
	}
	s.recordRun(run)

	if err != nil {
		s.emitter.Emit(ctx, EventImportFailed, ImportFailed{
			Surface: surface,
			JobID:   jobID,
			Target:  req.Target,
			Error:   err.Error(),
		})
		return nil, err
	}
	s.emitter.Emit(ctx, EventImportCompleted, ImportCompleted{
		Surface:    surface,
		JobID:      jobID,
		Target:     result.Target,
		Collection: result.Collection,
		Count:      result.RowsWritten,
	})
	return result, nil
}

// runLocked takes the per-collection lock, when configured, and runs the engine.
func (s *ImportService) runLocked(ctx context.Context, req etl.ImportRequest, logger *logrus.Entry) (*etl.Result, error) {
	if s.locker != nil {
		if target, err := etl.LookupTarget(req.Target); err == nil {
			lock, err := s.locker.Obtain(ctx, "import:"+target.Collection, s.timeout, nil)
			switch {
			case errors.Is(err, redislock.ErrNotObtained):
				return nil, ErrImportInFlight
			case err != nil:
				logger.WithError(err).Warn("error obtaining redis lock; proceeding without redis lock")
			default:
				defer func() { _ = lock.Release(context.Background()) }()
			}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.engine.Run(runCtx, req)
}

func (s *ImportService) recordRun(run *domain.ImportRun) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateRun(run); err != nil {
		config.LogError(config.GetLogger(), "service", "recordRun", "save import run", run.Target, err)
	}
}

// Preview maps req without committing and returns up to maxRows documents.
func (s *ImportService) Preview(ctx context.Context, req etl.ImportRequest, maxRows int) (*etl.Preview, error) {
	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.engine.Preview(previewCtx, req, maxRows)
}

// Targets returns the import target registry.
func (s *ImportService) Targets() []etl.Target {
	return etl.Targets()
}

// ListSources returns the accepted file formats.
func (s *ImportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRuns returns recent runs, newest first. An empty jobID lists all.
func (s *ImportService) ListRuns(jobID string, limit int) ([]domain.ImportRun, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRuns(jobID, limit)
}

// ── Saved jobs ─────────────────────────────────────────────

type CreateImportJobInput struct {
	Name          string `json:"name" validate:"required"`
	Target        string `json:"target" validate:"required"`
	FilePath      string `json:"filePath" validate:"required"`
	TriggerType   string `json:"triggerType" validate:"omitempty,oneof=manual schedule file_watch"`
	TriggerConfig string `json:"triggerConfig"`
	Enabled       bool   `json:"enabled"`
}

func (s *ImportService) CreateJob(ctx context.Context, input CreateImportJobInput) (*domain.ImportJob, error) {
	if s.store == nil {
		return nil, errors.New("saved jobs need local state storage")
	}
	if err := s.validateJob(input); err != nil {
		return nil, err
	}

	job := &domain.ImportJob{
		Name:          input.Name,
		Target:        input.Target,
		FilePath:      input.FilePath,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.TriggerType == "" {
		job.TriggerType = domain.TriggerManual
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	s.RestartWatchers()
	return job, nil
}

func (s *ImportService) validateJob(input CreateImportJobInput) error {
	if err := s.validate.Struct(input); err != nil {
		return &ValidationError{Fields: validationMessages(err)}
	}
	if _, err := etl.LookupTarget(input.Target); err != nil {
		return err
	}
	if _, err := etl.SourceFor(input.FilePath); err != nil {
		return err
	}
	if input.TriggerType == domain.TriggerSchedule {
		if _, err := cron.ParseStandard(input.TriggerConfig); err != nil {
			return &ValidationError{Fields: map[string]string{"triggerConfig": "invalid cron expression: " + err.Error()}}
		}
	}
	return nil
}

func (s *ImportService) GetJob(id string) (*domain.ImportJob, error) {
	if s.store == nil {
		return nil, storage.ErrJobNotFound
	}
	return s.store.GetJob(id)
}

func (s *ImportService) ListJobs() ([]domain.ImportJob, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListJobs()
}

// SetJobEnabled toggles a job and reschedules triggers.
func (s *ImportService) SetJobEnabled(ctx context.Context, id string, enabled bool) error {
	job, err := s.GetJob(id)
	if err != nil {
		return err
	}
	job.Enabled = enabled
	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers()
	return nil
}

func (s *ImportService) DeleteJob(ctx context.Context, id string) error {
	if s.store == nil {
		return storage.ErrJobNotFound
	}
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers()
	}
	return err
}

// RunJob reads the job's file and imports it. Each job is its own surface.
// A call rejected with ErrImportInFlight leaves the job status alone.
func (s *ImportService) RunJob(ctx context.Context, id string) (*etl.Result, error) {
	surface := "job:" + id
	if !s.running.TryLock(surface) {
		return nil, ErrImportInFlight
	}
	defer s.running.Unlock(surface)

	job, err := s.GetJob(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(job.FilePath)
	if err != nil {
		s.setJobStatus(id, domain.StatusError, err.Error())
		return nil, fmt.Errorf("open %s: %w", job.FilePath, err)
	}
	defer f.Close()

	s.setJobStatus(id, domain.StatusRunning, "")
	result, runErr := s.execute(ctx, surface, id, etl.ImportRequest{
		Target:   job.Target,
		FileName: job.FilePath,
		Body:     f,
	})

	switch {
	case errors.Is(runErr, ErrImportInFlight):
		// Another instance holds the collection lock.
		s.setJobStatus(id, job.LastStatus, job.LastError)
		return nil, runErr
	case runErr != nil:
		s.setJobStatus(id, domain.StatusError, runErr.Error())
		return nil, runErr
	}
	s.setJobStatus(id, domain.StatusSuccess, "")
	return result, nil
}

func (s *ImportService) setJobStatus(id, status, errMsg string) {
	if err := s.store.UpdateJobStatus(id, status, errMsg); err != nil {
		config.LogError(config.GetLogger(), "service", "RunJob", "update job status", map[string]string{"job": id, "status": status}, err)
	}
}

// WaitRunning blocks until all running imports finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ImportService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}
