package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/task"
)

// DefaultInterval is the default tick interval between probe invocations.
const DefaultInterval = 3 * time.Second

// Probe queries remote status for one task and applies the outcome through
// the task store. Probes must re-read current store state inside every tick
// instead of caching the task across ticks: a cancellation may land between
// ticks.
type Probe func(ctx context.Context) error

// OrchestratorConfig is the configuration for the polling orchestrator.
type OrchestratorConfig struct {
	// Store is consulted before every tick: missing or terminal tasks stop
	// their own polling job.
	Store *task.Store
	// Interval between probe invocations. Default: 3s.
	Interval time.Duration
	Logger   log.Logger
}

func (c *OrchestratorConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("task store is required")
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poll.Orchestrator"})
	return nil
}

// Orchestrator drives periodic status checks for non-terminal tasks.
//
// It maintains at most one repeating polling job per task id (idempotent
// start). Each job re-reads the task's status before invoking its probe and
// cancels itself once the task disappears or reaches a terminal status.
// Probe failures are logged and retried on the next tick.
type Orchestrator struct {
	store    *task.Store
	interval time.Duration
	logger   log.Logger

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
	wg   sync.WaitGroup
}

// NewOrchestrator creates a new polling orchestrator and registers it as the
// store's polling release hook.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &Orchestrator{
		store:    cfg.Store,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		jobs:     map[string]context.CancelFunc{},
	}
	cfg.Store.SetReleaseHook(o.Stop)

	return o, nil
}

// Start begins a repeating polling job for the task id. Starting an id that
// already has an active job is a no-op.
func (o *Orchestrator) Start(id string, probe Probe) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.jobs[id]; ok {
		o.logger.Debugf("Polling already active for task %s", id)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.jobs[id] = cancel
	o.wg.Add(1)
	go o.run(ctx, id, probe)

	o.logger.Debugf("Started polling task %s every %s", id, o.interval)
}

// Stop cancels and removes the polling job for the task id, if present.
func (o *Orchestrator) Stop(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked(id)
}

// Active returns true if the task id currently has a polling job.
func (o *Orchestrator) Active(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.jobs[id]
	return ok
}

// StopAll cancels every polling job and waits for them to finish.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	for id := range o.jobs {
		o.stopLocked(id)
	}
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Orchestrator) stopLocked(id string) {
	cancel, ok := o.jobs[id]
	if !ok {
		return
	}
	cancel()
	delete(o.jobs, id)
	o.logger.Debugf("Stopped polling task %s", id)
}

func (o *Orchestrator) run(ctx context.Context, id string, probe Probe) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The task may have been cancelled or removed between ticks.
			t, err := o.store.Get(ctx, id)
			if err != nil || t.Status.IsTerminal() {
				o.Stop(id)
				return
			}

			if err := probe(ctx); err != nil {
				// Best effort retry policy: a transient failure during one
				// tick does not abort observation.
				o.logger.Warningf("Probe for task %s failed, will retry next tick: %s", id, err)
			}
		}
	}
}

// ResumeFn restarts polling for one persisted task, picking the probe that
// matches its type.
type ResumeFn func(ctx context.Context, t model.Task)

// Resume restarts polling for every task still in a non-terminal status,
// dispatching each to the resume function registered for its type. Polling
// state itself is never persisted, only the decision of which tasks need a
// fresh timer.
func (o *Orchestrator) Resume(ctx context.Context, resumers map[model.TaskType]ResumeFn) {
	for _, t := range o.store.ListActive(ctx) {
		resume, ok := resumers[t.Type]
		if !ok {
			o.logger.Warningf("No resumer for task %s of type %s", t.ID, t.Type)
			continue
		}
		resume(ctx, t)
		o.logger.Debugf("Resumed polling for task %s (%s)", t.ID, t.Type)
	}
}
