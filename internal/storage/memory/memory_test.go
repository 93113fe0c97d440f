package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/storage/memory"
)

func TestKVGetSetDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Getting a missing key should return not found", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{Logger: log.Noop})
		require.NoError(t, err)

		_, err = kv.Get(ctx, "missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("Setting and getting a key should round trip", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{})
		require.NoError(t, err)

		err = kv.Set(ctx, "ns:background_tasks", []byte(`[{"id":"t1"}]`))
		require.NoError(t, err)

		got, err := kv.Get(ctx, "ns:background_tasks")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[{"id":"t1"}]`), got)
	})

	t.Run("Setting an existing key should overwrite", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{})
		require.NoError(t, err)

		require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
		require.NoError(t, kv.Set(ctx, "k", []byte("v2")))

		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("Deleting a key should remove it", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{})
		require.NoError(t, err)

		require.NoError(t, kv.Set(ctx, "k", []byte("v")))
		require.NoError(t, kv.Delete(ctx, "k"))

		_, err = kv.Get(ctx, "k")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("Deleting a missing key should not fail", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{})
		require.NoError(t, err)

		assert.NoError(t, kv.Delete(ctx, "missing"))
	})

	t.Run("Mutating a returned value should not affect the stored one", func(t *testing.T) {
		kv, err := memory.NewKV(memory.KVConfig{})
		require.NoError(t, err)

		require.NoError(t, kv.Set(ctx, "k", []byte("abc")))

		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		got[0] = 'z'

		again, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})
}
