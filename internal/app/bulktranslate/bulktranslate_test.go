package bulktranslate_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meteosahel/tasktrack/internal/app/bulktranslate"
	"github.com/meteosahel/tasktrack/internal/jobapi"
	"github.com/meteosahel/tasktrack/internal/jobapi/jobapimock"
	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/poll"
	"github.com/meteosahel/tasktrack/internal/storage/memory"
	"github.com/meteosahel/tasktrack/internal/task"
)

const testInterval = 20 * time.Millisecond

type testEnv struct {
	store        *task.Store
	orchestrator *poll.Orchestrator
	apiClient    *jobapimock.MockClient
	svc          *bulktranslate.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	kv, err := memory.NewKV(memory.KVConfig{})
	require.NoError(t, err)
	store, err := task.NewStore(context.Background(), task.StoreConfig{KV: kv, Logger: log.Noop})
	require.NoError(t, err)
	orchestrator, err := poll.NewOrchestrator(poll.OrchestratorConfig{
		Store:    store,
		Interval: testInterval,
		Logger:   log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(orchestrator.StopAll)

	apiClient := &jobapimock.MockClient{}
	svc, err := bulktranslate.NewService(bulktranslate.ServiceConfig{
		Store:        store,
		Orchestrator: orchestrator,
		APIClient:    apiClient,
		Logger:       log.Noop,
	})
	require.NoError(t, err)

	return &testEnv{store: store, orchestrator: orchestrator, apiClient: apiClient, svc: svc}
}

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    func(env *testEnv) bulktranslate.ServiceConfig
		expErr string
	}{
		"Valid config": {
			cfg: func(env *testEnv) bulktranslate.ServiceConfig {
				return bulktranslate.ServiceConfig{
					Store:        env.store,
					Orchestrator: env.orchestrator,
					APIClient:    env.apiClient,
				}
			},
		},
		"Missing store returns error": {
			cfg: func(env *testEnv) bulktranslate.ServiceConfig {
				return bulktranslate.ServiceConfig{
					Orchestrator: env.orchestrator,
					APIClient:    env.apiClient,
				}
			},
			expErr: "task store is required",
		},
		"Missing orchestrator returns error": {
			cfg: func(env *testEnv) bulktranslate.ServiceConfig {
				return bulktranslate.ServiceConfig{
					Store:     env.store,
					APIClient: env.apiClient,
				}
			},
			expErr: "polling orchestrator is required",
		},
		"Missing api client returns error": {
			cfg: func(env *testEnv) bulktranslate.ServiceConfig {
				return bulktranslate.ServiceConfig{
					Store:        env.store,
					Orchestrator: env.orchestrator,
				}
			},
			expErr: "job api client is required",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			svc, err := bulktranslate.NewService(tt.cfg(env))

			if tt.expErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expErr)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRunValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Run(context.Background(), bulktranslate.Request{TaskIDs: nil})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotValid)
	assert.Empty(t, env.store.List(context.Background()))
}

func TestServiceRunCreatesAndPolls(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, mock.Anything).
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusRunning}, nil)

	id, err := env.svc.Run(ctx, bulktranslate.Request{
		TaskIDs:   []string{"sub-1", "sub-2"},
		Languages: []string{"fr", "ha"},
		Label:     "weekly bulletins",
	})
	require.NoError(t, err)

	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeBulkTranslation, got.Type)
	assert.Equal(t, 2, got.Progress.Total, "total is derived from the sub-job ids")
	assert.Equal(t, "weekly bulletins", got.Metadata.Label)
	assert.True(t, env.orchestrator.Active(id))
}

func TestServicePartialProgressKeepsPolling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-2").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusRunning}, nil)

	id, err := env.svc.Run(ctx, bulktranslate.Request{TaskIDs: []string{"sub-1", "sub-2"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(ctx, id)
		return err == nil && got.Status == model.TaskStatusRunning && got.Progress.Current == 1
	}, 30*testInterval, testInterval/4)

	assert.True(t, env.orchestrator.Active(id), "an unresolved sub-job keeps the task polling")
}

func TestServiceMajoritySuccessCompletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-2").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-3").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusFailed, Error: "model unavailable"}, nil)
	env.apiClient.On("RefreshBulletins", mock.Anything).Return(nil)

	id, err := env.svc.Run(ctx, bulktranslate.Request{TaskIDs: []string{"sub-1", "sub-2", "sub-3"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(ctx, id)
		return err == nil && got.Status.IsTerminal()
	}, 30*testInterval, testInterval/4)

	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Progress.Current)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.SuccessCount)
	assert.Equal(t, 1, got.Result.FailedCount)
	assert.Equal(t, []string{"sub-3: model unavailable"}, got.Result.Details)

	assert.False(t, env.orchestrator.Active(id), "a resolved task releases its polling job")
	env.apiClient.AssertCalled(t, "RefreshBulletins", mock.Anything)
}

func TestServiceFailureTieFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-2").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusFailed}, nil)
	env.apiClient.On("RefreshBulletins", mock.Anything).Return(nil)

	id, err := env.svc.Run(ctx, bulktranslate.Request{TaskIDs: []string{"sub-1", "sub-2"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(ctx, id)
		return err == nil && got.Status.IsTerminal()
	}, 30*testInterval, testInterval/4)

	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status, "a tie between successes and failures fails the task")
}

func TestServiceRefreshFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("RefreshBulletins", mock.Anything).Return(errors.New("view backend down"))

	id, err := env.svc.Run(ctx, bulktranslate.Request{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := env.store.Get(ctx, id)
		return err == nil && got.Status == model.TaskStatusCompleted
	}, 30*testInterval, testInterval/4, "a failed view refresh does not change the task outcome")
}

func TestServiceTransientAPIErrorKeepsPolling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var calls atomic.Int64
	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(func(ctx context.Context, subID string) (*jobapi.SubTaskStatus, error) {
			calls.Add(1)
			return nil, errors.New("remote api down")
		})

	id, err := env.svc.Run(ctx, bulktranslate.Request{TaskIDs: []string{"sub-1"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 30*testInterval, testInterval/4, "a transient api error is retried on following ticks")

	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Status.IsTerminal())
	assert.True(t, env.orchestrator.Active(id))
}

func TestServiceResume(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.apiClient.On("GetSubTaskStatus", mock.Anything, "sub-1").
		Return(&jobapi.SubTaskStatus{Status: jobapi.RemoteStatusCompleted}, nil)
	env.apiClient.On("RefreshBulletins", mock.Anything).Return(nil)

	id, err := env.store.Create(ctx, model.TaskTypeBulkTranslation, model.Metadata{
		BulkTranslation: &model.BulkTranslationMetadata{TaskIDs: []string{"sub-1"}},
	}, 0)
	require.NoError(t, err)
	got, err := env.store.Get(ctx, id)
	require.NoError(t, err)

	env.svc.Resume(ctx, *got)
	require.True(t, env.orchestrator.Active(id))

	require.Eventually(t, func() bool {
		got, err := env.store.Get(ctx, id)
		return err == nil && got.Status == model.TaskStatusCompleted
	}, 30*testInterval, testInterval/4)
}
