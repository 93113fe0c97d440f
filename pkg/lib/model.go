package lib

import (
	"errors"
	"time"

	"github.com/meteosahel/tasktrack/internal/model"
)

var (
	// ErrNotFound is returned when the requested task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrNotValid is returned on invalid input or configuration.
	ErrNotValid = errors.New("not valid")
)

// StorageType selects the durable storage backend for the task collection.
type StorageType string

const (
	// StorageSQLite persists the task collection in a SQLite database file.
	// This is the default.
	StorageSQLite StorageType = "sqlite"

	// StorageMemory keeps the task collection in memory only. Tasks do not
	// survive the process. Use this for testing.
	StorageMemory StorageType = "memory"
)

// TaskStatus represents the lifecycle state of a tracked task.
//
// The typical lifecycle is:
//
//	pending -> running -> completed | failed | cancelled
//
// A pending task may also jump straight to a terminal state. Terminal states
// are final: no later update changes them.
type TaskStatus string

const (
	// TaskStatusPending indicates the task was created but no progress has
	// been observed yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is making progress.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished with a majority of
	// successful work units.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task finished unsuccessfully.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled by the user.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true once the status is final.
func (s TaskStatus) IsTerminal() bool {
	return model.TaskStatus(s).IsTerminal()
}

// TaskType identifies the kind of background work a task tracks.
type TaskType string

const (
	// TaskTypeBulkTranslation tracks a set of per-bulletin translation sub-jobs.
	TaskTypeBulkTranslation TaskType = "bulk_translation"
	// TaskTypeBatchReprocess tracks a single server-side reprocess batch.
	TaskTypeBatchReprocess TaskType = "batch_reprocess"
)

// Progress is the observed completion state of a task.
type Progress struct {
	// Current is the number of resolved work units.
	Current int
	// Total is the number of work units the task is observed over.
	Total int
}

// Percent returns the completion percentage in [0, 100].
func (p Progress) Percent() float64 {
	return model.Progress{Current: p.Current, Total: p.Total}.Percent()
}

// BulkTranslationMetadata describes a bulk translation run.
type BulkTranslationMetadata struct {
	// TaskIDs are the remote sub-job ids, one per bulletin.
	TaskIDs    []string
	Languages  []string
	DateFilter string
	TypeFilter string
}

// BatchReprocessMetadata describes a batch reprocess run.
type BatchReprocessMetadata struct {
	// BatchID is the remote batch id.
	BatchID    string
	DateFilter string
	TypeFilter string
}

// Metadata is the descriptive context a task was created with. Exactly one of
// the type-specific fields is set, matching the task type.
type Metadata struct {
	// StartTime is when the task was created.
	StartTime time.Time
	// Label is a free-form description shown in listings.
	Label           string
	BulkTranslation *BulkTranslationMetadata
	BatchReprocess  *BatchReprocessMetadata
}

// Result summarizes the outcome of a terminal task.
type Result struct {
	SuccessCount int
	FailedCount  int
	SkippedCount int
	MissingCount int
	// Details carries per-item diagnostics (e.g. failed sub-job errors).
	Details []string
}

// Task is a read-only snapshot of one tracked background task at the time of
// the API call. Use [Client.Task] to get the latest state.
type Task struct {
	// ID is the unique identifier (ULID) assigned at creation.
	ID       string
	Type     TaskType
	Status   TaskStatus
	Progress Progress
	Metadata Metadata
	// Result is set once the task reaches a terminal status. Nil before that.
	Result *Result
	// Error is a terminal diagnostic message, empty otherwise.
	Error string
}

// BulkTranslationOpts configures a bulk translation tracking task.
//
// TaskIDs is required and must be non-empty: the task's total is the number
// of sub-jobs.
type BulkTranslationOpts struct {
	TaskIDs    []string
	Languages  []string
	DateFilter string
	TypeFilter string
	Label      string
}

// BatchReprocessOpts configures a batch reprocess tracking task.
//
// BatchID is required and Total must be positive.
type BatchReprocessOpts struct {
	BatchID    string
	Total      int
	DateFilter string
	TypeFilter string
	Label      string
}

func fromInternalTask(t model.Task) Task {
	task := Task{
		ID:       t.ID,
		Type:     TaskType(t.Type),
		Status:   TaskStatus(t.Status),
		Progress: Progress{Current: t.Progress.Current, Total: t.Progress.Total},
		Metadata: Metadata{
			StartTime: t.Metadata.StartTime,
			Label:     t.Metadata.Label,
		},
		Error: t.Error,
	}

	if m := t.Metadata.BulkTranslation; m != nil {
		task.Metadata.BulkTranslation = &BulkTranslationMetadata{
			TaskIDs:    m.TaskIDs,
			Languages:  m.Languages,
			DateFilter: m.DateFilter,
			TypeFilter: m.TypeFilter,
		}
	}
	if m := t.Metadata.BatchReprocess; m != nil {
		task.Metadata.BatchReprocess = &BatchReprocessMetadata{
			BatchID:    m.BatchID,
			DateFilter: m.DateFilter,
			TypeFilter: m.TypeFilter,
		}
	}
	if r := t.Result; r != nil {
		task.Result = &Result{
			SuccessCount: r.SuccessCount,
			FailedCount:  r.FailedCount,
			SkippedCount: r.SkippedCount,
			MissingCount: r.MissingCount,
			Details:      r.Details,
		}
	}

	return task
}

func fromInternalTaskList(ts []model.Task) []Task {
	result := make([]Task, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTask(t)
	}
	return result
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

// mappedError makes the public sentinel visible to errors.Is while keeping
// the original message and chain.
type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
