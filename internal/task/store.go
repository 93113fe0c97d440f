package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/storage"
)

const (
	// DefaultNamespace is the default namespace for the persisted collection key.
	DefaultNamespace = "tasktrack"
	// DefaultRetentionWindow is how long terminal tasks are kept before the
	// retention sweep purges them.
	DefaultRetentionWindow = 1 * time.Hour

	storageKeySuffix = "background_tasks"
)

// StoreConfig is the configuration for the task store.
type StoreConfig struct {
	// KV is the durable storage the collection is serialized into.
	KV storage.KV
	// Namespace prefixes the storage key. Default: "tasktrack".
	Namespace string
	// RetentionWindow is the age after which terminal tasks are purged.
	// Default: 1 hour.
	RetentionWindow time.Duration
	Logger          log.Logger

	// TimeNow is used to get the current time (for testing purposes).
	TimeNow func() time.Time
}

func (c *StoreConfig) defaults() error {
	if c.KV == nil {
		return fmt.Errorf("kv storage is required")
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.RetentionWindow == 0 {
		c.RetentionWindow = DefaultRetentionWindow
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Store"})
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	return nil
}

// Update is a partial, per-field merge applied to an existing task. Nil
// fields are left untouched (last write wins per field).
type Update struct {
	Status  *model.TaskStatus
	Current *int
	Total   *int
	Result  *model.Result
	Error   *string
}

// Store is the single source of truth for all tracked background tasks.
//
// It keeps the collection in memory, mirrors every mutation into durable
// storage, and notifies subscribers after every mutating operation.
// Persistence failures are logged and swallowed: they never surface to the
// caller. A Store is safe for concurrent use.
type Store struct {
	kv        storage.KV
	key       string
	retention time.Duration
	logger    log.Logger
	timeNow   func() time.Time

	mu          sync.RWMutex
	tasks       map[string]*model.Task
	order       []string
	subscribers map[int]func()
	nextSubID   int
	releaseFn   func(id string)
}

// NewStore creates a new task store, loading any previously persisted
// collection and running the retention sweep before returning.
//
// A corrupt persisted payload is discarded (and deleted from storage) rather
// than propagated as an error.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Store{
		kv:          cfg.KV,
		key:         cfg.Namespace + ":" + storageKeySuffix,
		retention:   cfg.RetentionWindow,
		logger:      cfg.Logger,
		timeNow:     cfg.TimeNow,
		tasks:       map[string]*model.Task{},
		subscribers: map[int]func(){},
	}

	s.load(ctx)
	s.Sweep(ctx)

	return s, nil
}

// SetReleaseHook registers the function called with a task id whenever the
// task is removed, cancelled, or swept, so the owner of the polling resource
// can drop its timer. Must be set before polling starts.
func (s *Store) SetReleaseHook(fn func(id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseFn = fn
}

// Create allocates a fresh task in pending status and persists it.
//
// total is the number of work units the task will be observed over. For bulk
// translation tasks it is derived from the metadata sub-job ids and the
// argument is ignored. The metadata start time is set to now when unset.
func (s *Store) Create(ctx context.Context, typ model.TaskType, metadata model.Metadata, total int) (string, error) {
	if metadata.StartTime.IsZero() {
		metadata.StartTime = s.timeNow()
	}
	if typ == model.TaskTypeBulkTranslation && metadata.BulkTranslation != nil {
		total = len(metadata.BulkTranslation.TaskIDs)
	}

	t := model.Task{
		ID:       ulid.Make().String(),
		Type:     typ,
		Status:   model.TaskStatusPending,
		Progress: model.Progress{Current: 0, Total: total},
		Metadata: metadata,
	}
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("invalid task: %w", err)
	}

	s.mu.Lock()
	s.tasks[t.ID] = &t
	s.order = append(s.order, t.ID)
	payload := s.encodeLocked()
	s.mu.Unlock()

	s.persist(ctx, payload)
	s.notify()

	s.logger.Debugf("Created task %s (%s, total %d)", t.ID, typ, t.Progress.Total)
	return t.ID, nil
}

// Update merges the given fields into an existing task and persists the
// collection. Unknown ids and updates to tasks already in a terminal status
// are silent no-ops: terminality is absolute.
func (s *Store) Update(ctx context.Context, id string, u Update) {
	s.mu.Lock()

	t, ok := s.tasks[id]
	if !ok || t.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}

	if u.Current != nil {
		t.Progress.Current = *u.Current
	}
	if u.Total != nil {
		t.Progress.Total = *u.Total
	}
	if u.Status != nil && model.CanTransition(t.Status, *u.Status) {
		t.Status = *u.Status
	}
	// Result and error are only attached once the task has gone terminal.
	if t.Status.IsTerminal() {
		if u.Result != nil && t.Result == nil {
			r := *u.Result
			t.Result = &r
		}
		if u.Error != nil && t.Error == "" {
			t.Error = *u.Error
		}
	}

	payload := s.encodeLocked()
	s.mu.Unlock()

	s.persist(ctx, payload)
	s.notify()
}

// Get returns a copy of the task with the given id, or model.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return copyTask(t), nil
}

// List returns all tasks in insertion order.
func (s *Store) List(ctx context.Context) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, *copyTask(s.tasks[id]))
	}
	return tasks
}

// ListActive returns all tasks in pending or running status, in insertion order.
func (s *Store) ListActive(ctx context.Context) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		t := s.tasks[id]
		if !t.Status.IsTerminal() {
			tasks = append(tasks, *copyTask(t))
		}
	}
	return tasks
}

// Remove deletes a task and releases its polling resource. Unknown ids are a
// silent no-op and fire no notification.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()

	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.deleteLocked(id)
	payload := s.encodeLocked()
	release := s.releaseFn
	s.mu.Unlock()

	if release != nil {
		release(id)
	}
	s.persist(ctx, payload)
	s.notify()

	s.logger.Debugf("Removed task %s", id)
}

// Cancel sets a task to cancelled and releases its polling resource. It has
// no effect on unknown ids or tasks already in a terminal status.
func (s *Store) Cancel(ctx context.Context, id string) {
	s.mu.Lock()

	t, ok := s.tasks[id]
	if !ok || t.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	t.Status = model.TaskStatusCancelled
	payload := s.encodeLocked()
	release := s.releaseFn
	s.mu.Unlock()

	if release != nil {
		release(id)
	}
	s.persist(ctx, payload)
	s.notify()

	s.logger.Debugf("Cancelled task %s", id)
}

// ClearCompleted removes every task in a terminal status, persisting and
// notifying once.
func (s *Store) ClearCompleted(ctx context.Context) {
	s.mu.Lock()

	var removed []string
	for _, id := range s.order {
		if s.tasks[id].Status.IsTerminal() {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		s.deleteLocked(id)
	}
	if len(removed) == 0 {
		s.mu.Unlock()
		return
	}
	payload := s.encodeLocked()
	release := s.releaseFn
	s.mu.Unlock()

	if release != nil {
		for _, id := range removed {
			release(id)
		}
	}
	s.persist(ctx, payload)
	s.notify()

	s.logger.Debugf("Cleared %d terminal tasks", len(removed))
}

// Sweep purges every terminal task whose start time is older than the
// retention window. It runs at construction and may be re-run at any time.
func (s *Store) Sweep(ctx context.Context) {
	now := s.timeNow()

	s.mu.Lock()

	var removed []string
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status.IsTerminal() && now.Sub(t.Metadata.StartTime) > s.retention {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		s.deleteLocked(id)
	}
	if len(removed) == 0 {
		s.mu.Unlock()
		return
	}
	payload := s.encodeLocked()
	release := s.releaseFn
	s.mu.Unlock()

	if release != nil {
		for _, id := range removed {
			release(id)
		}
	}
	s.persist(ctx, payload)
	s.notify()

	s.logger.Debugf("Retention sweep purged %d tasks", len(removed))
}

// Subscribe registers a callback invoked after every mutating operation and
// returns a function that deregisters it. No ordering is guaranteed between
// subscribers.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) deleteLocked(id string) {
	delete(s.tasks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// load reads the persisted collection. Any storage or decode failure is
// treated as "no cached state": the store starts empty and a corrupt payload
// is deleted from storage.
func (s *Store) load(ctx context.Context) {
	payload, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.Debugf("No persisted tasks loaded: %s", err)
		return
	}

	tasks, order, err := decodeTasks(payload)
	if err != nil {
		s.logger.Warningf("Discarding corrupt persisted task collection: %s", err)
		if delErr := s.kv.Delete(ctx, s.key); delErr != nil {
			s.logger.Errorf("Could not delete corrupt task collection: %s", delErr)
		}
		return
	}

	for id, t := range tasks {
		if err := t.Validate(); err != nil {
			s.logger.Warningf("Skipping invalid persisted task %s: %s", id, err)
			delete(tasks, id)
		}
	}
	for _, id := range order {
		if _, ok := tasks[id]; ok {
			s.order = append(s.order, id)
		}
	}
	s.tasks = tasks

	s.logger.Debugf("Loaded %d persisted tasks", len(s.tasks))
}

// persist writes the serialized collection back to storage, best effort.
func (s *Store) persist(ctx context.Context, payload []byte) {
	if payload == nil {
		return
	}
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		s.logger.Errorf("Could not persist task collection: %s", err)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func copyTask(t *model.Task) *model.Task {
	tc := *t
	if t.Result != nil {
		r := *t.Result
		r.Details = append([]string(nil), t.Result.Details...)
		tc.Result = &r
	}
	if t.Metadata.BulkTranslation != nil {
		m := *t.Metadata.BulkTranslation
		m.TaskIDs = append([]string(nil), t.Metadata.BulkTranslation.TaskIDs...)
		m.Languages = append([]string(nil), t.Metadata.BulkTranslation.Languages...)
		tc.Metadata.BulkTranslation = &m
	}
	if t.Metadata.BatchReprocess != nil {
		m := *t.Metadata.BatchReprocess
		tc.Metadata.BatchReprocess = &m
	}
	return &tc
}
