package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/storage/sqlite"
)

func newKV(t *testing.T) *sqlite.KV {
	t.Helper()
	kv, err := sqlite.NewKV(context.Background(), sqlite.KVConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestNewKV(t *testing.T) {
	t.Run("Missing db path should fail", func(t *testing.T) {
		_, err := sqlite.NewKV(context.Background(), sqlite.KVConfig{})
		assert.Error(t, err)
	})

	t.Run("Valid config should create the store and schema", func(t *testing.T) {
		kv := newKV(t)
		assert.NotNil(t, kv)
	})
}

func TestKVGetSetDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Getting a missing key should return not found", func(t *testing.T) {
		kv := newKV(t)

		_, err := kv.Get(ctx, "missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("Setting and getting a key should round trip", func(t *testing.T) {
		kv := newKV(t)

		err := kv.Set(ctx, "ns:background_tasks", []byte(`[{"id":"t1"}]`))
		require.NoError(t, err)

		got, err := kv.Get(ctx, "ns:background_tasks")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[{"id":"t1"}]`), got)
	})

	t.Run("Setting an existing key should overwrite", func(t *testing.T) {
		kv := newKV(t)

		require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
		require.NoError(t, kv.Set(ctx, "k", []byte("v2")))

		got, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("Deleting a key should remove it", func(t *testing.T) {
		kv := newKV(t)

		require.NoError(t, kv.Set(ctx, "k", []byte("v")))
		require.NoError(t, kv.Delete(ctx, "k"))

		_, err := kv.Get(ctx, "k")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("Deleting a missing key should not fail", func(t *testing.T) {
		kv := newKV(t)

		assert.NoError(t, kv.Delete(ctx, "missing"))
	})

	t.Run("Values should survive a reopen of the same db file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		kv, err := sqlite.NewKV(ctx, sqlite.KVConfig{DBPath: dbPath, Logger: log.Noop})
		require.NoError(t, err)
		require.NoError(t, kv.Set(ctx, "k", []byte("persisted")))
		require.NoError(t, kv.Close())

		kv2, err := sqlite.NewKV(ctx, sqlite.KVConfig{DBPath: dbPath, Logger: log.Noop})
		require.NoError(t, err)
		defer kv2.Close()

		got, err := kv2.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("persisted"), got)
	})
}
