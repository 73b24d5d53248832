package core

import "time"

// Store defines the interface for run-history operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(target string, selection []string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Entity run operations
	RecordEntityRun(er *EntityRun) error
	UpdateEntityRun(id string, status EntityRunStatus, rowsAffected int64, errMsg string) error
	GetEntityRunsForRun(runID string) ([]*EntityRun, error)
	GetLatestEntityRun(entity string) (*EntityRun, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one pipeline execution.
type Run struct {
	ID          string
	Target      string
	Selection   []string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// EntityKind distinguishes dimension tables from the fact table.
type EntityKind string

// Entity kinds.
const (
	EntityDimension EntityKind = "dimension"
	EntityFact      EntityKind = "fact"
)

// EntityRunStatus represents the status of one entity within a run.
type EntityRunStatus string

// Entity run status constants.
const (
	EntityRunStatusPending EntityRunStatus = "pending"
	EntityRunStatusRunning EntityRunStatus = "running"
	EntityRunStatusSuccess EntityRunStatus = "success"
	EntityRunStatusFailed  EntityRunStatus = "failed"
	EntityRunStatusSkipped EntityRunStatus = "skipped"
)

// EntityRun records the outcome of materializing one dimension or loading
// the fact table within a run.
type EntityRun struct {
	ID           string
	RunID        string
	Entity       string
	Kind         EntityKind
	Status       EntityRunStatus
	RowsAffected int64
	StartedAt    time.Time
	CompletedAt  *time.Time
	Error        string
	ExecutionMS  int64
}
