package storage

import (
	"context"
	"time"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// RunKind identifies which pipeline produced a run.
type RunKind string

const (
	KindRun       RunKind = "run"
	KindComment   RunKind = "comment"
	KindTest      RunKind = "test"
	KindEvaluate  RunKind = "evaluate"
	KindSummarize RunKind = "summarize"
	KindAgent     RunKind = "agent"
)

// Run is the persisted record of one workspace execution or pipeline.
type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	Label     string    `json:"label"` // sample name, repo URL, or free text
	SandboxID string    `json:"sandbox_id"`
	Status    RunStatus `json:"status"`
	ExitCode  int       `json:"exit_code"`
	Source    string    `json:"source,omitempty"` // code that was executed
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
	Output    string    `json:"output,omitempty"` // pipeline artifact (commented code, summary, report JSON)
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunListOptions controls filtering and pagination for ListRuns.
type RunListOptions struct {
	Kind   RunKind
	Status RunStatus
	Limit  int
	Offset int
}

// Store is the persistence interface for runs.
type Store interface {
	// CreateRun inserts a new run. The ID field must be set by the caller.
	CreateRun(ctx context.Context, r *Run) error

	// GetRun returns a run by ID or ID prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs ordered by updated_at descending.
	ListRuns(ctx context.Context, opts RunListOptions) ([]Run, error)

	// UpdateRun updates mutable fields (status, outputs, updated_at).
	UpdateRun(ctx context.Context, r *Run) error

	// DeleteRun removes a run.
	DeleteRun(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
