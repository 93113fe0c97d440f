package model

import (
	"fmt"
	"time"
)

// TaskStatus represents the status of a tracked background task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been created but no probe
	// has reported progress yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the remote work is in progress.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the remote work finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the remote work finished with failures.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled by the user.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further status transition is permitted.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition returns true if a task may move from one status to another.
// Terminal statuses are absolute: nothing transitions out of them. A pending
// task may jump straight to a terminal status when a probe resolves
// immediately.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}

	switch from {
	case TaskStatusPending:
		return to == TaskStatusRunning || to.IsTerminal()
	case TaskStatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// TaskType represents the kind of background work being tracked.
type TaskType string

const (
	// TaskTypeBulkTranslation tracks a bulk bulletin translation job made of
	// independent remote sub-jobs.
	TaskTypeBulkTranslation TaskType = "bulk_translation"
	// TaskTypeBatchReprocess tracks a single remote document re-extraction batch.
	TaskTypeBatchReprocess TaskType = "batch_reprocess"
)

// Valid returns true if the task type is a known type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeBulkTranslation, TaskTypeBatchReprocess:
		return true
	default:
		return false
	}
}

// Progress represents how much of the tracked work has been observed as done.
type Progress struct {
	Current int
	Total   int
}

// Percent returns the progress as a percentage for display. A task with
// Total == 0 has no observable progress and reports 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Current) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// BulkTranslationMetadata is the creation-time input of a bulk translation task.
type BulkTranslationMetadata struct {
	// TaskIDs are the remote sub-job identifiers being aggregated.
	TaskIDs    []string
	Languages  []string
	DateFilter string
	TypeFilter string
}

// BatchReprocessMetadata is the creation-time input of a reprocess batch task.
type BatchReprocessMetadata struct {
	// BatchID is the remote batch identifier.
	BatchID    string
	DateFilter string
	TypeFilter string
}

// Metadata captures the task-kind-specific inputs at creation time. Exactly
// one variant is set, matching the task type. Immutable after creation except
// that StartTime is fixed at creation and drives retention decisions.
type Metadata struct {
	StartTime time.Time
	Label     string

	BulkTranslation *BulkTranslationMetadata
	BatchReprocess  *BatchReprocessMetadata
}

// Result is the outcome payload of a task, present only once the task
// reaches a terminal status.
type Result struct {
	SuccessCount int
	FailedCount  int
	SkippedCount int
	MissingCount int
	Details      []string
}

// Task represents a tracked background operation.
type Task struct {
	ID       string
	Type     TaskType
	Status   TaskStatus
	Progress Progress
	Metadata Metadata
	Result   *Result
	Error    string
}

// Validate validates the task record.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("unknown task type %q: %w", t.Type, ErrNotValid)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown task status %q: %w", t.Status, ErrNotValid)
	}
	if t.Progress.Current < 0 || t.Progress.Total < 0 {
		return fmt.Errorf("progress counters must not be negative: %w", ErrNotValid)
	}
	if t.Metadata.StartTime.IsZero() {
		return fmt.Errorf("metadata start time is required: %w", ErrNotValid)
	}

	switch t.Type {
	case TaskTypeBulkTranslation:
		if t.Metadata.BulkTranslation == nil {
			return fmt.Errorf("bulk translation metadata is required: %w", ErrNotValid)
		}
		if len(t.Metadata.BulkTranslation.TaskIDs) == 0 {
			return fmt.Errorf("bulk translation task ids are required: %w", ErrNotValid)
		}
	case TaskTypeBatchReprocess:
		if t.Metadata.BatchReprocess == nil {
			return fmt.Errorf("batch reprocess metadata is required: %w", ErrNotValid)
		}
		if t.Metadata.BatchReprocess.BatchID == "" {
			return fmt.Errorf("batch reprocess batch id is required: %w", ErrNotValid)
		}
	}

	if t.Result != nil && !t.Status.IsTerminal() {
		return fmt.Errorf("result is only allowed on terminal statuses: %w", ErrNotValid)
	}
	if t.Error != "" && !t.Status.IsTerminal() {
		return fmt.Errorf("error message is only allowed on terminal statuses: %w", ErrNotValid)
	}

	return nil
}
