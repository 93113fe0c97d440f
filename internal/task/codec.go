package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/meteosahel/tasktrack/internal/model"
)

// Wire format of the persisted collection: a JSON array of task objects with
// a flat metadata shape shared by both task kinds. Timestamps travel as Unix
// milliseconds.
type wireTask struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Status   string       `json:"status"`
	Progress wireProgress `json:"progress"`
	Metadata wireMetadata `json:"metadata"`
	Result   *wireResult  `json:"result,omitempty"`
	Error    string       `json:"error,omitempty"`
}

type wireProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type wireMetadata struct {
	TaskIDs    []string `json:"taskIds"`
	DateFilter string   `json:"dateFilter,omitempty"`
	TypeFilter string   `json:"typeFilter,omitempty"`
	Languages  []string `json:"languages,omitempty"`
	Label      string   `json:"label,omitempty"`
	StartTime  int64    `json:"startTime"`
}

type wireResult struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	SkippedCount int      `json:"skippedCount,omitempty"`
	MissingCount int      `json:"missingCount,omitempty"`
	Details      []string `json:"details,omitempty"`
}

// encodeLocked serializes the collection in insertion order. Callers must
// hold the store lock.
func (s *Store) encodeLocked() []byte {
	wts := make([]wireTask, 0, len(s.order))
	for _, id := range s.order {
		wts = append(wts, encodeTask(s.tasks[id]))
	}

	payload, err := json.Marshal(wts)
	if err != nil {
		// A task collection is always marshalable; keep the previous payload
		// on the off chance it is not.
		s.logger.Errorf("Could not serialize task collection: %s", err)
		return nil
	}
	return payload
}

func encodeTask(t *model.Task) wireTask {
	wt := wireTask{
		ID:     t.ID,
		Type:   string(t.Type),
		Status: string(t.Status),
		Progress: wireProgress{
			Current: t.Progress.Current,
			Total:   t.Progress.Total,
		},
		Metadata: wireMetadata{
			Label:     t.Metadata.Label,
			StartTime: t.Metadata.StartTime.UnixMilli(),
		},
		Error: t.Error,
	}

	switch {
	case t.Metadata.BulkTranslation != nil:
		m := t.Metadata.BulkTranslation
		wt.Metadata.TaskIDs = m.TaskIDs
		wt.Metadata.Languages = m.Languages
		wt.Metadata.DateFilter = m.DateFilter
		wt.Metadata.TypeFilter = m.TypeFilter
	case t.Metadata.BatchReprocess != nil:
		m := t.Metadata.BatchReprocess
		wt.Metadata.TaskIDs = []string{m.BatchID}
		wt.Metadata.DateFilter = m.DateFilter
		wt.Metadata.TypeFilter = m.TypeFilter
	}

	if t.Result != nil {
		wt.Result = &wireResult{
			SuccessCount: t.Result.SuccessCount,
			FailedCount:  t.Result.FailedCount,
			SkippedCount: t.Result.SkippedCount,
			MissingCount: t.Result.MissingCount,
			Details:      t.Result.Details,
		}
	}

	return wt
}

func decodeTasks(payload []byte) (tasks map[string]*model.Task, order []string, err error) {
	var wts []wireTask
	if err := json.Unmarshal(payload, &wts); err != nil {
		return nil, nil, fmt.Errorf("could not decode task collection: %w", err)
	}

	tasks = make(map[string]*model.Task, len(wts))
	order = make([]string, 0, len(wts))
	for _, wt := range wts {
		t := decodeTask(wt)
		if _, ok := tasks[t.ID]; ok {
			continue
		}
		tasks[t.ID] = t
		order = append(order, t.ID)
	}

	return tasks, order, nil
}

func decodeTask(wt wireTask) *model.Task {
	t := model.Task{
		ID:     wt.ID,
		Type:   model.TaskType(wt.Type),
		Status: model.TaskStatus(wt.Status),
		Progress: model.Progress{
			Current: wt.Progress.Current,
			Total:   wt.Progress.Total,
		},
		Metadata: model.Metadata{
			Label:     wt.Metadata.Label,
			StartTime: time.UnixMilli(wt.Metadata.StartTime).UTC(),
		},
		Error: wt.Error,
	}

	switch t.Type {
	case model.TaskTypeBulkTranslation:
		t.Metadata.BulkTranslation = &model.BulkTranslationMetadata{
			TaskIDs:    wt.Metadata.TaskIDs,
			Languages:  wt.Metadata.Languages,
			DateFilter: wt.Metadata.DateFilter,
			TypeFilter: wt.Metadata.TypeFilter,
		}
	case model.TaskTypeBatchReprocess:
		m := &model.BatchReprocessMetadata{
			DateFilter: wt.Metadata.DateFilter,
			TypeFilter: wt.Metadata.TypeFilter,
		}
		if len(wt.Metadata.TaskIDs) > 0 {
			m.BatchID = wt.Metadata.TaskIDs[0]
		}
		t.Metadata.BatchReprocess = m
	}

	if wt.Result != nil {
		t.Result = &model.Result{
			SuccessCount: wt.Result.SuccessCount,
			FailedCount:  wt.Result.FailedCount,
			SkippedCount: wt.Result.SkippedCount,
			MissingCount: wt.Result.MissingCount,
			Details:      wt.Result.Details,
		}
	}

	return &t
}
