package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meteosahel/tasktrack/internal/model"
)

type CancelCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
}

// NewCancelCommand returns the cancel command.
func NewCancelCommand(rootCmd *RootCommand, app *kingpin.Application) *CancelCommand {
	c := &CancelCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("cancel", "Cancel an active task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)

	return c
}

func (c CancelCommand) Name() string { return c.Cmd.FullCommand() }

func (c CancelCommand) Run(ctx context.Context) error {
	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	// Cancelling an unknown id is a store no-op, check first so the user gets
	// an error instead of silence.
	if _, err := store.Get(ctx, c.taskID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("task %s does not exist", c.taskID)
		}
		return fmt.Errorf("could not get task: %w", err)
	}

	store.Cancel(ctx, c.taskID)

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s cancelled\n", c.taskID)
	return nil
}
