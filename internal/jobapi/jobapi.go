package jobapi

import (
	"context"
)

// RemoteStatus is the status the remote job service reports for a sub-job or
// batch. It is a smaller vocabulary than the local task status: the remote
// service never reports cancellations.
type RemoteStatus string

const (
	RemoteStatusPending   RemoteStatus = "pending"
	RemoteStatusRunning   RemoteStatus = "running"
	RemoteStatusCompleted RemoteStatus = "completed"
	RemoteStatusFailed    RemoteStatus = "failed"
)

// IsTerminal returns true once the remote work is resolved.
func (s RemoteStatus) IsTerminal() bool {
	return s == RemoteStatusCompleted || s == RemoteStatusFailed
}

// SubTaskStatus is the reported state of one translation sub-job.
type SubTaskStatus struct {
	Status RemoteStatus
	Error  string
}

// BatchProgress holds the aggregate counters of a reprocess batch.
type BatchProgress struct {
	Success int
	Failed  int
	Skipped int
	Missing int
	Total   int
}

// BatchStatus is the reported state of one reprocess batch.
type BatchStatus struct {
	Status   RemoteStatus
	Progress BatchProgress
	Errors   []string
	Error    string
}

// Client is the boundary to the remote job API the probes poll against.
type Client interface {
	// GetSubTaskStatus returns the status of a single translation sub-job.
	GetSubTaskStatus(ctx context.Context, subTaskID string) (*SubTaskStatus, error)

	// GetBatchStatus returns the aggregate status of a reprocess batch.
	GetBatchStatus(ctx context.Context, batchID string) (*BatchStatus, error)

	// RefreshBulletins asks the backend to reload the bulletin list that
	// displays task-derived results. Fire and forget: callers log failures
	// and move on.
	RefreshBulletins(ctx context.Context) error
}
