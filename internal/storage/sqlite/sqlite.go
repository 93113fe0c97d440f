package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/storage/sqlite/migrations"
)

// KVConfig is the configuration for the SQLite key-value store.
type KVConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *KVConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// KV is a SQLite implementation of storage.KV.
type KV struct {
	db     *sql.DB
	logger log.Logger
}

// NewKV creates a new SQLite key-value store.
func NewKV(ctx context.Context, cfg KVConfig) (*KV, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite key-value store initialized at %s", cfg.DBPath)

	return &KV{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (k *KV) Close() error { return k.db.Close() }

// Get returns the value stored under a key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv WHERE key = ?`

	var value []byte
	err := k.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("key %s: %w", key, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query key: %w", err)
	}

	return value, nil
}

// Set stores a value under a key, overwriting any previous value.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := k.db.ExecContext(ctx, query, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("could not store key: %w", err)
	}

	k.logger.Debugf("Set key %s (%d bytes)", key, len(value))
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (k *KV) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv WHERE key = ?`

	_, err := k.db.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("could not delete key: %w", err)
	}

	k.logger.Debugf("Deleted key %s", key)
	return nil
}
