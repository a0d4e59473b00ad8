package domain

import "time"

// Trigger types for an ImportJob.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ImportJob is a saved import: a target plus the file to read, optionally
// re-run on a cron schedule or whenever the file changes.
type ImportJob struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Target        string    `json:"target" validate:"required"`
	FilePath      string    `json:"filePath" validate:"required"`
	TriggerType   string    `json:"triggerType" validate:"omitempty,oneof=manual schedule file_watch"` // "manual" | "schedule" | "file_watch"
	TriggerConfig string    `json:"triggerConfig"`                                                     // cron expression for "schedule"
	Enabled       bool      `json:"enabled"`
	LastRunAt     time.Time `json:"lastRunAt"`
	LastStatus    string    `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string    `json:"lastError"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ImportRun is one attempt at an import, whatever triggered it.
type ImportRun struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId,omitempty"`
	Surface     string    `json:"surface"`
	Target      string    `json:"target"`
	Collection  string    `json:"collection"`
	FileName    string    `json:"fileName"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	DurationMs  int64     `json:"durationMs"`
	Error       string    `json:"error,omitempty"`
}
