package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/meteosahel/tasktrack/internal/model"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTasks prints tasks in a table format.
func (t *TablePrinter) PrintTasks(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPROGRESS\tSTARTED\tERROR")

	// Print rows.
	for _, tk := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tk.ID,
			tk.Type,
			tk.Status,
			formatProgress(tk.Progress),
			TimeAgo(tk.Metadata.StartTime),
			tk.Error,
		)
	}

	return nil
}

// PrintTask prints one task in detail.
func (t *TablePrinter) PrintTask(task model.Task) error {
	fmt.Fprintf(t.writer, "ID:        %s\n", task.ID)
	fmt.Fprintf(t.writer, "Type:      %s\n", task.Type)
	fmt.Fprintf(t.writer, "Status:    %s\n", task.Status)
	fmt.Fprintf(t.writer, "Progress:  %s\n", formatProgress(task.Progress))
	fmt.Fprintf(t.writer, "Started:   %s\n", FormatTimestamp(task.Metadata.StartTime))

	if task.Metadata.Label != "" {
		fmt.Fprintf(t.writer, "Label:     %s\n", task.Metadata.Label)
	}
	if m := task.Metadata.BulkTranslation; m != nil {
		fmt.Fprintf(t.writer, "Sub-jobs:  %d\n", len(m.TaskIDs))
		if len(m.Languages) > 0 {
			fmt.Fprintf(t.writer, "Languages: %v\n", m.Languages)
		}
	}
	if m := task.Metadata.BatchReprocess; m != nil {
		fmt.Fprintf(t.writer, "Batch:     %s\n", m.BatchID)
	}

	if r := task.Result; r != nil {
		fmt.Fprintf(t.writer, "Result:    %d ok, %d failed, %d skipped, %d missing\n",
			r.SuccessCount, r.FailedCount, r.SkippedCount, r.MissingCount)
		for _, d := range r.Details {
			fmt.Fprintf(t.writer, "  - %s\n", d)
		}
	}
	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:     %s\n", task.Error)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func formatProgress(p model.Progress) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", p.Current, p.Total, p.Percent())
}
