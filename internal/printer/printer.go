package printer

import "github.com/meteosahel/tasktrack/internal/model"

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintTasks(tasks []model.Task) error
	PrintTask(task model.Task) error
	PrintMessage(msg string) error
}
