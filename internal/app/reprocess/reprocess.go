package reprocess

import (
	"context"
	"fmt"

	"github.com/meteosahel/tasktrack/internal/jobapi"
	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/poll"
	"github.com/meteosahel/tasktrack/internal/task"
)

// failedCheckError is the diagnostic attached to a task whose status check
// could not be completed. Batch status is a single aggregate query, there is
// no per-item state to fall back on, so the check is not retried.
const failedCheckError = "reprocess status check failed"

// ServiceConfig is the configuration for the batch reprocess service.
type ServiceConfig struct {
	Store        *task.Store
	Orchestrator *poll.Orchestrator
	APIClient    jobapi.Client
	Logger       log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("task store is required")
	}
	if c.Orchestrator == nil {
		return fmt.Errorf("polling orchestrator is required")
	}
	if c.APIClient == nil {
		return fmt.Errorf("job api client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Reprocess"})
	return nil
}

// Service tracks batch reprocess jobs: it creates the tracking task and
// observes the remote batch until it is resolved.
type Service struct {
	store        *task.Store
	orchestrator *poll.Orchestrator
	apiClient    jobapi.Client
	logger       log.Logger
}

// NewService creates a new batch reprocess service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		apiClient:    cfg.APIClient,
		logger:       cfg.Logger,
	}, nil
}

// Request describes a batch reprocess run to track.
type Request struct {
	// BatchID is the remote batch id.
	BatchID string
	// Total is the number of documents in the batch.
	Total      int
	DateFilter string
	TypeFilter string
	Label      string
}

// Run creates a tracking task for the reprocess batch and starts polling it.
// It returns the new task id.
func (s *Service) Run(ctx context.Context, req Request) (string, error) {
	if req.BatchID == "" {
		return "", fmt.Errorf("batch id is required: %w", model.ErrNotValid)
	}
	if req.Total <= 0 {
		return "", fmt.Errorf("total must be greater than zero: %w", model.ErrNotValid)
	}

	id, err := s.store.Create(ctx, model.TaskTypeBatchReprocess, model.Metadata{
		Label: req.Label,
		BatchReprocess: &model.BatchReprocessMetadata{
			BatchID:    req.BatchID,
			DateFilter: req.DateFilter,
			TypeFilter: req.TypeFilter,
		},
	}, req.Total)
	if err != nil {
		return "", fmt.Errorf("could not create task: %w", err)
	}

	s.orchestrator.Start(id, s.probe(id))

	s.logger.Infof("Tracking reprocess task %s (batch %s, %d documents)", id, req.BatchID, req.Total)
	return id, nil
}

// Resume restarts polling for an already persisted batch reprocess task.
func (s *Service) Resume(ctx context.Context, t model.Task) {
	s.orchestrator.Start(t.ID, s.probe(t.ID))
}

// probe builds the per-tick status check for one task. Each tick re-reads the
// task from the store so cancellations and removals landing between ticks are
// honored.
func (s *Service) probe(id string) poll.Probe {
	return func(ctx context.Context) error {
		t, err := s.store.Get(ctx, id)
		if err != nil || t.Status.IsTerminal() || t.Metadata.BatchReprocess == nil {
			return nil
		}

		status, err := s.apiClient.GetBatchStatus(ctx, t.Metadata.BatchReprocess.BatchID)
		if err != nil {
			s.fail(ctx, id, err)
			return nil
		}

		current := status.Progress.Success + status.Progress.Failed +
			status.Progress.Skipped + status.Progress.Missing

		switch status.Status {
		case jobapi.RemoteStatusCompleted, jobapi.RemoteStatusFailed:
			final := model.TaskStatusCompleted
			if status.Status == jobapi.RemoteStatusFailed {
				final = model.TaskStatusFailed
			}
			u := task.Update{
				Status:  &final,
				Current: &current,
				Result: &model.Result{
					SuccessCount: status.Progress.Success,
					FailedCount:  status.Progress.Failed,
					SkippedCount: status.Progress.Skipped,
					MissingCount: status.Progress.Missing,
					Details:      status.Errors,
				},
			}
			if status.Error != "" {
				u.Error = &status.Error
			}
			s.store.Update(ctx, id, u)
			s.orchestrator.Stop(id)
			s.logger.Infof("Reprocess task %s resolved: %s (%d ok, %d failed)", id, final, status.Progress.Success, status.Progress.Failed)
		case jobapi.RemoteStatusRunning:
			running := model.TaskStatusRunning
			s.store.Update(ctx, id, task.Update{Status: &running, Current: &current})
		default:
			s.store.Update(ctx, id, task.Update{Current: &current})
		}

		return nil
	}
}

// fail marks the task as failed with a fixed diagnostic and stops polling.
func (s *Service) fail(ctx context.Context, id string, cause error) {
	s.logger.Errorf("Status check for reprocess task %s failed: %s", id, cause)

	failed := model.TaskStatusFailed
	diag := failedCheckError
	s.store.Update(ctx, id, task.Update{Status: &failed, Error: &diag})
	s.orchestrator.Stop(id)
}
