package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meteosahel/tasktrack/internal/app/bulktranslate"
	"github.com/meteosahel/tasktrack/internal/app/reprocess"
	"github.com/meteosahel/tasktrack/internal/jobapi"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/poll"
	"github.com/meteosahel/tasktrack/internal/printer"
	"github.com/meteosahel/tasktrack/internal/view"
)

// sweepEvery is how often the watch loop re-runs the retention sweep.
const sweepEvery = 10 * time.Minute

type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Poll active tasks and re-render the collection on every change until interrupted.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	apiCfg, err := c.rootCmd.LoadAPIConfig()
	if err != nil {
		return err
	}
	if apiCfg.BaseURL == "" {
		return fmt.Errorf("api_base_url missing in %s: watch needs the job API to poll", c.rootCmd.ConfigPath)
	}

	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	orchestrator, err := poll.NewOrchestrator(poll.OrchestratorConfig{
		Store:    store,
		Interval: apiCfg.PollInterval,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create polling orchestrator: %w", err)
	}
	defer orchestrator.StopAll()

	apiClient, err := jobapi.NewHTTPClient(jobapi.HTTPClientConfig{
		BaseURL:   apiCfg.BaseURL,
		AuthToken: apiCfg.AuthToken,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create job api client: %w", err)
	}

	bulkSvc, err := bulktranslate.NewService(bulktranslate.ServiceConfig{
		Store:        store,
		Orchestrator: orchestrator,
		APIClient:    apiClient,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create bulk translation service: %w", err)
	}

	reprocessSvc, err := reprocess.NewService(reprocess.ServiceConfig{
		Store:        store,
		Orchestrator: orchestrator,
		APIClient:    apiClient,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("could not create reprocess service: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	binding, err := view.NewBinding(ctx, view.BindingConfig{
		Store:    store,
		Renderer: p,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create view binding: %w", err)
	}
	defer binding.Close()

	orchestrator.Resume(ctx, map[model.TaskType]poll.ResumeFn{
		model.TaskTypeBulkTranslation: bulkSvc.Resume,
		model.TaskTypeBatchReprocess:  reprocessSvc.Resume,
	})

	// Finished tasks keep aging while watch runs, re-run the retention sweep
	// periodically.
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweep.C:
			store.Sweep(ctx)
		}
	}
}
