package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/meteosahel/tasktrack/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskOutput represents one task in the JSON output.
type taskOutput struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Status    string        `json:"status"`
	Current   int           `json:"current"`
	Total     int           `json:"total"`
	Percent   float64       `json:"percent"`
	Label     string        `json:"label,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Result    *resultOutput `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// resultOutput represents a terminal task outcome.
type resultOutput struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Missing int      `json:"missing"`
	Details []string `json:"details,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintTasks prints tasks in JSON format.
func (j *JSONPrinter) PrintTasks(tasks []model.Task) error {
	items := make([]taskOutput, len(tasks))
	for i, t := range tasks {
		items[i] = newTaskOutput(t)
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintTask prints one task in JSON format.
func (j *JSONPrinter) PrintTask(task model.Task) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(newTaskOutput(task))
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func newTaskOutput(t model.Task) taskOutput {
	out := taskOutput{
		ID:        t.ID,
		Type:      string(t.Type),
		Status:    string(t.Status),
		Current:   t.Progress.Current,
		Total:     t.Progress.Total,
		Percent:   t.Progress.Percent(),
		Label:     t.Metadata.Label,
		StartedAt: t.Metadata.StartTime.UTC(),
		Error:     t.Error,
	}
	if r := t.Result; r != nil {
		out.Result = &resultOutput{
			Success: r.SuccessCount,
			Failed:  r.FailedCount,
			Skipped: r.SkippedCount,
			Missing: r.MissingCount,
			Details: r.Details,
		}
	}
	return out
}
