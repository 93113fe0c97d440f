package bulktranslate

import (
	"context"
	"fmt"

	"github.com/meteosahel/tasktrack/internal/jobapi"
	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/poll"
	"github.com/meteosahel/tasktrack/internal/task"
)

// ServiceConfig is the configuration for the bulk translation service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.BulkTranslate"})
	return nil
}

// Service tracks bulk translation jobs: it creates the tracking task and
// observes the remote sub-jobs until every one of them is resolved.
type Service struct {
	store        *task.Store
	orchestrator *poll.Orchestrator
	apiClient    jobapi.Client
	logger       log.Logger
}

// NewService creates a new bulk translation service.
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

// Request describes a bulk translation run to track.
type Request struct {
	// TaskIDs are the remote sub-job ids, one per bulletin being translated.
	TaskIDs    []string
	Languages  []string
	DateFilter string
	TypeFilter string
	Label      string
}

// Run creates a tracking task for the bulk translation run and starts polling
// it. It returns the new task id.
func (s *Service) Run(ctx context.Context, req Request) (string, error) {
	// A task with no sub-jobs would never make progress, keep it out of the
	// polling loop entirely.
	if len(req.TaskIDs) == 0 {
		return "", fmt.Errorf("at least one sub-job id is required: %w", model.ErrNotValid)
	}

	id, err := s.store.Create(ctx, model.TaskTypeBulkTranslation, model.Metadata{
		Label: req.Label,
		BulkTranslation: &model.BulkTranslationMetadata{
			TaskIDs:    req.TaskIDs,
			Languages:  req.Languages,
			DateFilter: req.DateFilter,
			TypeFilter: req.TypeFilter,
		},
	}, 0)
	if err != nil {
		return "", fmt.Errorf("could not create task: %w", err)
	}

	s.orchestrator.Start(id, s.probe(id))

	s.logger.Infof("Tracking bulk translation task %s (%d sub-jobs)", id, len(req.TaskIDs))
	return id, nil
}

// Resume restarts polling for an already persisted bulk translation task.
func (s *Service) Resume(ctx context.Context, t model.Task) {
	s.orchestrator.Start(t.ID, s.probe(t.ID))
}

// probe builds the per-tick status check for one task. Each tick re-reads the
// task from the store so cancellations and removals landing between ticks are
// honored.
func (s *Service) probe(id string) poll.Probe {
	return func(ctx context.Context) error {
		t, err := s.store.Get(ctx, id)
		if err != nil || t.Status.IsTerminal() || t.Metadata.BulkTranslation == nil {
			return nil
		}

		var completed, failed int
		var details []string
		for _, subID := range t.Metadata.BulkTranslation.TaskIDs {
			status, err := s.apiClient.GetSubTaskStatus(ctx, subID)
			if err != nil {
				// Transient: the orchestrator retries on the next tick.
				return fmt.Errorf("could not get sub-job %s status: %w", subID, err)
			}

			switch status.Status {
			case jobapi.RemoteStatusCompleted:
				completed++
			case jobapi.RemoteStatusFailed:
				failed++
				if status.Error != "" {
					details = append(details, fmt.Sprintf("%s: %s", subID, status.Error))
				}
			}
		}

		current := completed + failed
		if current < t.Progress.Total {
			running := model.TaskStatusRunning
			s.store.Update(ctx, id, task.Update{Status: &running, Current: &current})
			return nil
		}

		// Every sub-job resolved: fold the counters into the final verdict.
		final := model.TaskStatusFailed
		if completed > failed {
			final = model.TaskStatusCompleted
		}
		s.store.Update(ctx, id, task.Update{
			Status:  &final,
			Current: &current,
			Result: &model.Result{
				SuccessCount: completed,
				FailedCount:  failed,
				Details:      details,
			},
		})

		if err := s.apiClient.RefreshBulletins(ctx); err != nil {
			s.logger.Warningf("Could not refresh bulletin list after task %s: %s", id, err)
		}
		s.orchestrator.Stop(id)

		s.logger.Infof("Bulk translation task %s resolved: %s (%d ok, %d failed)", id, final, completed, failed)
		return nil
	}
}
