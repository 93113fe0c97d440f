package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/meteosahel/tasktrack/internal/model"
)

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
}

// NewRemoveCommand returns the rm command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Remove a task from the collection.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
	store, closeStore, err := c.rootCmd.newStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if _, err := store.Get(ctx, c.taskID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("task %s does not exist", c.taskID)
		}
		return fmt.Errorf("could not get task: %w", err)
	}

	store.Remove(ctx, c.taskID)

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s removed\n", c.taskID)
	return nil
}
