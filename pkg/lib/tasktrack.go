package lib

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/meteosahel/tasktrack/internal/app/bulktranslate"
	"github.com/meteosahel/tasktrack/internal/app/reprocess"
	"github.com/meteosahel/tasktrack/internal/jobapi"
	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/poll"
	"github.com/meteosahel/tasktrack/internal/storage"
	"github.com/meteosahel/tasktrack/internal/storage/memory"
	"github.com/meteosahel/tasktrack/internal/storage/sqlite"
	"github.com/meteosahel/tasktrack/internal/task"
)

const (
	defaultDataDir = ".tasktrack"
	defaultDBFile  = "tasktrack.db"
)

// Config configures the SDK client.
//
// APIBaseURL is required, everything else has sensible defaults: SQLite
// storage at ~/.tasktrack/tasktrack.db, a 3 second poll interval and a 1 hour
// retention window for finished tasks.
type Config struct {
	// APIBaseURL is the root URL of the remote job API (required).
	APIBaseURL string

	// APIAuthToken, when set, is sent as a bearer token on every API request.
	APIAuthToken string

	// HTTPClient is the HTTP client used for job API requests.
	// Default: http.DefaultClient. Inject a client with a fake transport for
	// testing without a real API.
	HTTPClient *http.Client

	// Storage selects the storage backend.
	// Default: [StorageSQLite]. Use [StorageMemory] for testing.
	Storage StorageType

	// DBPath is the SQLite database path.
	// Default: ~/.tasktrack/tasktrack.db. Ignored for [StorageMemory].
	DBPath string

	// Namespace prefixes the persisted collection key, isolating collections
	// that share a database. Default: "tasktrack".
	Namespace string

	// PollInterval is the time between remote status checks per active task.
	// Default: 3s.
	PollInterval time.Duration

	// RetentionWindow is how long finished tasks are kept before the
	// retention sweep purges them. Default: 1h.
	RetentionWindow time.Duration

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base url is required: %w", ErrNotValid)
	}

	if c.Storage == "" {
		c.Storage = StorageSQLite
	}

	if c.DBPath == "" && c.Storage == StorageSQLite {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = filepath.Join(home, defaultDataDir, defaultDBFile)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for tracking background tasks.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	store        *task.Store
	orchestrator *poll.Orchestrator
	bulkSvc      *bulktranslate.Service
	reprocessSvc *reprocess.Service
	logger       log.Logger
	closeFn      func() error
}

// New creates a new SDK client.
//
// It loads the persisted task collection, purges tasks past the retention
// window, and restarts polling for every task still in an active status.
//
// The caller must call [Client.Close] when done to stop polling and release
// the storage. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{APIBaseURL: "https://api.example.org/v1"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w", err))
	}

	kv, closeFn, err := newKV(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create storage: %w", err)
	}

	store, err := task.NewStore(ctx, task.StoreConfig{
		KV:              kv,
		Namespace:       cfg.Namespace,
		RetentionWindow: cfg.RetentionWindow,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task store: %w", err)
	}

	orchestrator, err := poll.NewOrchestrator(poll.OrchestratorConfig{
		Store:    store,
		Interval: cfg.PollInterval,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create polling orchestrator: %w", err)
	}

	apiClient, err := jobapi.NewHTTPClient(jobapi.HTTPClientConfig{
		BaseURL:    cfg.APIBaseURL,
		AuthToken:  cfg.APIAuthToken,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create job api client: %w", err)
	}

	bulkSvc, err := bulktranslate.NewService(bulktranslate.ServiceConfig{
		Store:        store,
		Orchestrator: orchestrator,
		APIClient:    apiClient,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create bulk translation service: %w", err)
	}

	reprocessSvc, err := reprocess.NewService(reprocess.ServiceConfig{
		Store:        store,
		Orchestrator: orchestrator,
		APIClient:    apiClient,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create reprocess service: %w", err)
	}

	// Tasks persisted as active get a fresh polling timer: polling state
	// itself is never persisted.
	orchestrator.Resume(ctx, map[model.TaskType]poll.ResumeFn{
		model.TaskTypeBulkTranslation: bulkSvc.Resume,
		model.TaskTypeBatchReprocess:  reprocessSvc.Resume,
	})

	return &Client{
		store:        store,
		orchestrator: orchestrator,
		bulkSvc:      bulkSvc,
		reprocessSvc: reprocessSvc,
		logger:       cfg.Logger,
		closeFn:      closeFn,
	}, nil
}

func newKV(ctx context.Context, cfg Config) (storage.KV, func() error, error) {
	switch cfg.Storage {
	case StorageMemory:
		mem, err := memory.NewKV(memory.KVConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, nil, err
		}
		return mem, func() error { return nil }, nil
	case StorageSQLite:
		db, err := sqlite.NewKV(ctx, sqlite.KVConfig{DBPath: cfg.DBPath, Logger: cfg.Logger})
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s: %w", cfg.Storage, ErrNotValid)
	}
}

// Close stops every polling job and releases the storage. After Close
// returns, the client must not be used.
func (c *Client) Close() error {
	c.orchestrator.StopAll()
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// CreateBulkTranslationTask creates a tracking task for a set of remote
// translation sub-jobs and starts polling their status. It returns the new
// task id.
//
// Returns [ErrNotValid] when opts has no sub-job ids.
func (c *Client) CreateBulkTranslationTask(ctx context.Context, opts BulkTranslationOpts) (string, error) {
	id, err := c.bulkSvc.Run(ctx, bulktranslate.Request{
		TaskIDs:    opts.TaskIDs,
		Languages:  opts.Languages,
		DateFilter: opts.DateFilter,
		TypeFilter: opts.TypeFilter,
		Label:      opts.Label,
	})
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// CreateBatchReprocessTask creates a tracking task for a remote reprocess
// batch and starts polling its status. It returns the new task id.
//
// Returns [ErrNotValid] when the batch id is empty or the total is not
// positive.
func (c *Client) CreateBatchReprocessTask(ctx context.Context, opts BatchReprocessOpts) (string, error) {
	id, err := c.reprocessSvc.Run(ctx, reprocess.Request{
		BatchID:    opts.BatchID,
		Total:      opts.Total,
		DateFilter: opts.DateFilter,
		TypeFilter: opts.TypeFilter,
		Label:      opts.Label,
	})
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

// Task returns a snapshot of the task with the given id.
//
// Returns [ErrNotFound] when the task does not exist.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	t, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	task := fromInternalTask(*t)
	return &task, nil
}

// AllTasks returns every tracked task in creation order.
func (c *Client) AllTasks(ctx context.Context) []Task {
	return fromInternalTaskList(c.store.List(ctx))
}

// ActiveTasks returns every task in pending or running status, in creation
// order.
func (c *Client) ActiveTasks(ctx context.Context) []Task {
	return fromInternalTaskList(c.store.ListActive(ctx))
}

// CancelTask marks a task as cancelled and stops its polling. Cancelling an
// unknown or already finished task has no effect.
func (c *Client) CancelTask(ctx context.Context, id string) {
	c.store.Cancel(ctx, id)
}

// RemoveTask deletes a task and stops its polling. Removing an unknown task
// has no effect.
func (c *Client) RemoveTask(ctx context.Context, id string) {
	c.store.Remove(ctx, id)
}

// ClearCompletedTasks removes every finished task (completed, failed or
// cancelled) in one operation.
func (c *Client) ClearCompletedTasks(ctx context.Context) {
	c.store.ClearCompleted(ctx)
}

// Subscribe registers a callback invoked after every change to the task
// collection. It returns a function that removes the subscription.
//
// Callbacks run synchronously on the mutating goroutine: read the new state
// with [Client.AllTasks] or [Client.ActiveTasks] and keep the callback cheap.
func (c *Client) Subscribe(fn func()) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}
