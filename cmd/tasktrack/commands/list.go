package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/printer"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	activeOnly bool
	format     string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List tracked background tasks.")
	c.Cmd.Flag("active", "Show only pending and running tasks.").BoolVar(&c.activeOnly)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var tasks []model.Task
	if c.activeOnly {
		tasks = store.ListActive(ctx)
	} else {
		tasks = store.List(ctx)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintTasks(tasks); err != nil {
		return fmt.Errorf("could not print tasks: %w", err)
	}

	return nil
}
