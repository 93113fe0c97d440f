package lib_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosahel/tasktrack/pkg/lib"
)

const testInterval = 20 * time.Millisecond

// fakeJobAPI is a minimal in-process job API. Sub-job and batch statuses can
// be changed while clients poll.
type fakeJobAPI struct {
	mu       sync.Mutex
	subJobs  map[string]string
	batches  map[string]map[string]any
	refreshs int
}

func newFakeJobAPI() *fakeJobAPI {
	return &fakeJobAPI{
		subJobs: map[string]string{},
		batches: map[string]map[string]any{},
	}
}

func (f *fakeJobAPI) setSubJob(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subJobs[id] = status
}

func (f *fakeJobAPI) setBatch(id string, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[id] = body
}

func (f *fakeJobAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/bulletins/refresh":
		f.refreshs++
		w.WriteHeader(http.StatusAccepted)
	case strings.HasPrefix(r.URL.Path, "/tasks/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tasks/"), "/status")
		status, ok := f.subJobs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": status})
	case strings.HasPrefix(r.URL.Path, "/batches/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/batches/"), "/status")
		body, ok := f.batches[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeJobAPI) *lib.Client {
	t.Helper()

	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	client, err := lib.New(context.Background(), lib.Config{
		APIBaseURL:   server.URL,
		Storage:      lib.StorageMemory,
		PollInterval: testInterval,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNew(t *testing.T) {
	t.Run("Missing api base url should fail", func(t *testing.T) {
		_, err := lib.New(context.Background(), lib.Config{Storage: lib.StorageMemory})
		require.Error(t, err)
		assert.True(t, errors.Is(err, lib.ErrNotValid))
	})

	t.Run("Unsupported storage type should fail", func(t *testing.T) {
		_, err := lib.New(context.Background(), lib.Config{
			APIBaseURL: "http://127.0.0.1:1",
			Storage:    lib.StorageType("etcd"),
		})
		require.Error(t, err)
	})
}

func TestClientBulkTranslationLifecycle(t *testing.T) {
	ctx := context.Background()
	api := newFakeJobAPI()
	api.setSubJob("sub-1", "running")
	api.setSubJob("sub-2", "running")
	client := newTestClient(t, api)

	id, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{
		TaskIDs:   []string{"sub-1", "sub-2"},
		Languages: []string{"fr"},
		Label:     "weekly bulletins",
	})
	require.NoError(t, err)

	got, err := client.Task(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, lib.TaskTypeBulkTranslation, got.Type)
	assert.Equal(t, 2, got.Progress.Total)
	assert.Equal(t, "weekly bulletins", got.Metadata.Label)
	assert.Len(t, client.ActiveTasks(ctx), 1)

	// Resolve both sub-jobs and wait for the task to settle.
	api.setSubJob("sub-1", "completed")
	api.setSubJob("sub-2", "completed")

	require.Eventually(t, func() bool {
		got, err := client.Task(ctx, id)
		return err == nil && got.Status == lib.TaskStatusCompleted
	}, 50*testInterval, testInterval/4)

	got, err = client.Task(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.SuccessCount)
	assert.Equal(t, 0, got.Result.FailedCount)
	assert.Empty(t, client.ActiveTasks(ctx))
}

func TestClientBatchReprocessLifecycle(t *testing.T) {
	ctx := context.Background()
	api := newFakeJobAPI()
	api.setBatch("batch-1", map[string]any{
		"status":   "completed",
		"progress": map[string]any{"success": 4, "failed": 1, "skipped": 0, "missing": 0, "total": 5},
		"errors":   []string{"doc-3 unreadable"},
	})
	client := newTestClient(t, api)

	id, err := client.CreateBatchReprocessTask(ctx, lib.BatchReprocessOpts{
		BatchID: "batch-1",
		Total:   5,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := client.Task(ctx, id)
		return err == nil && got.Status == lib.TaskStatusCompleted
	}, 50*testInterval, testInterval/4)

	got, err := client.Task(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Progress.Current)
	require.NotNil(t, got.Result)
	assert.Equal(t, 4, got.Result.SuccessCount)
	assert.Equal(t, []string{"doc-3 unreadable"}, got.Result.Details)
}

func TestClientValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, newFakeJobAPI())

	_, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{})
	assert.True(t, errors.Is(err, lib.ErrNotValid))

	_, err = client.CreateBatchReprocessTask(ctx, lib.BatchReprocessOpts{BatchID: "b", Total: 0})
	assert.True(t, errors.Is(err, lib.ErrNotValid))

	_, err = client.Task(ctx, "missing")
	assert.True(t, errors.Is(err, lib.ErrNotFound))
}

func TestClientCancelAndClear(t *testing.T) {
	ctx := context.Background()
	api := newFakeJobAPI()
	api.setSubJob("sub-1", "running")
	client := newTestClient(t, api)

	id, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)

	client.CancelTask(ctx, id)
	got, err := client.Task(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, lib.TaskStatusCancelled, got.Status)
	assert.Empty(t, client.ActiveTasks(ctx))

	client.ClearCompletedTasks(ctx)
	assert.Empty(t, client.AllTasks(ctx))
}

func TestClientSubscribe(t *testing.T) {
	ctx := context.Background()
	api := newFakeJobAPI()
	api.setSubJob("sub-1", "running")
	client := newTestClient(t, api)

	var mu sync.Mutex
	notified := 0
	unsubscribe := client.Subscribe(func() {
		mu.Lock()
		defer mu.Unlock()
		notified++
	})

	id, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)
	client.CancelTask(ctx, id)

	mu.Lock()
	afterMutations := notified
	mu.Unlock()
	assert.GreaterOrEqual(t, afterMutations, 2, "create and cancel both notify")

	unsubscribe()
	client.RemoveTask(ctx, id)

	mu.Lock()
	assert.Equal(t, afterMutations, notified, "no notification after unsubscribe")
	mu.Unlock()
}

func TestClientResumesPersistedTasks(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tasktrack.db")

	api := newFakeJobAPI()
	api.setSubJob("sub-1", "running")
	server := httptest.NewServer(api)
	defer server.Close()

	cfg := lib.Config{
		APIBaseURL:   server.URL,
		DBPath:       dbPath,
		PollInterval: testInterval,
	}

	// First process: start tracking, then go away before resolution.
	client1, err := lib.New(ctx, cfg)
	require.NoError(t, err)
	id, err := client1.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)
	require.NoError(t, client1.Close())

	// Second process: the task is still there and polling resumes on its own.
	api.setSubJob("sub-1", "completed")
	client2, err := lib.New(ctx, cfg)
	require.NoError(t, err)
	defer client2.Close()

	require.Len(t, client2.ActiveTasks(ctx), 1)
	require.Eventually(t, func() bool {
		got, err := client2.Task(ctx, id)
		return err == nil && got.Status == lib.TaskStatusCompleted
	}, 50*testInterval, testInterval/4, "an active persisted task resumes polling in the new process")
}

func TestClientConcurrentReads(t *testing.T) {
	ctx := context.Background()
	api := newFakeJobAPI()
	api.setSubJob("sub-1", "running")
	client := newTestClient(t, api)

	_, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = client.AllTasks(ctx)
				_ = client.ActiveTasks(ctx)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, client.AllTasks(ctx), 1)
}

func ExampleNew() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		APIBaseURL: "https://api.example.org/v1",
		Storage:    lib.StorageMemory,
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	id, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{
		TaskIDs:   []string{"sub-1", "sub-2"},
		Languages: []string{"fr", "ha"},
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	task, _ := client.Task(ctx, id)
	fmt.Println(task.Status)
	// Output: pending
}
