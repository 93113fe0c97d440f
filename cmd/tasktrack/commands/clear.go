package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type ClearCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewClearCommand returns the clear command.
func NewClearCommand(rootCmd *RootCommand, app *kingpin.Application) *ClearCommand {
	c := &ClearCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("clear", "Remove every finished task (completed, failed or cancelled).")

	return c
}

func (c ClearCommand) Name() string { return c.Cmd.FullCommand() }

func (c ClearCommand) Run(ctx context.Context) error {
	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	before := len(store.List(ctx))
	store.ClearCompleted(ctx)
	cleared := before - len(store.List(ctx))

	fmt.Fprintf(c.rootCmd.Stdout, "Cleared %d finished tasks\n", cleared)
	return nil
}
