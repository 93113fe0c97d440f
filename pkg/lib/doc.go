// Package lib provides a Go SDK for tracking long-running background tasks
// of a weather-bulletin dashboard.
//
// The dashboard backend runs two kinds of slow work: bulk translation of
// bulletins (one remote sub-job per bulletin) and batch reprocessing of
// source documents (one remote aggregate batch). This package tracks that
// work: it keeps a durable record per task, polls the remote job API until
// each task resolves, and notifies subscribers on every change so views can
// re-render.
//
// # Quick Start
//
// Create a client, start tracking a bulk translation, and watch it resolve:
//
//	client, err := lib.New(ctx, lib.Config{
//	    APIBaseURL: "https://api.example.org/v1",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	id, err := client.CreateBulkTranslationTask(ctx, lib.BulkTranslationOpts{
//	    TaskIDs:   []string{"sub-1", "sub-2", "sub-3"},
//	    Languages: []string{"fr", "ha"},
//	    Label:     "weekly bulletins",
//	})
//
//	unsubscribe := client.Subscribe(func() {
//	    for _, t := range client.AllTasks(ctx) {
//	        fmt.Printf("%s %s %d/%d\n", t.ID, t.Status, t.Progress.Current, t.Progress.Total)
//	    }
//	})
//	defer unsubscribe()
//
// # Task Lifecycle
//
// Every task starts pending and moves to running once progress is observed.
// It resolves to completed, failed, or cancelled, and a resolved task never
// changes again: late poll results and duplicate updates are dropped.
//
// Cancelling, removing, or clearing tasks goes through the same client:
//
//	client.CancelTask(ctx, id)
//	client.RemoveTask(ctx, id)
//	client.ClearCompletedTasks(ctx)
//
// # Persistence and Resumption
//
// The task collection is persisted on every change. A new client loads the
// previous collection, drops finished tasks older than the retention window,
// and restarts polling for every task that was still active, so tracking
// survives process restarts. A corrupt persisted payload is discarded and
// tracking starts fresh.
//
// # Polling
//
// Each active task is polled independently at the configured interval
// (default 3s). Transient job API failures are logged and retried on the
// next tick. Polling stops on its own as soon as a task resolves or is
// removed.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Task does not exist.
//   - [ErrNotValid]: Invalid input or configuration (e.g. a bulk translation
//     without sub-job ids).
//
// # Testing
//
// Use [StorageMemory] and an httptest server for the job API to write tests
// without real infrastructure:
//
//	server := httptest.NewServer(fakeJobAPI)
//	client, _ := lib.New(ctx, lib.Config{
//	    APIBaseURL: server.URL,
//	    Storage:    lib.StorageMemory,
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The
// underlying SQLite storage uses WAL mode, and every task polls on its own
// goroutine.
package lib
