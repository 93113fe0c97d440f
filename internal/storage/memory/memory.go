package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
)

// KVConfig is the configuration for the memory key-value store.
type KVConfig struct {
	Logger log.Logger
}

func (c *KVConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// KV is an in-memory implementation of storage.KV.
type KV struct {
	values map[string][]byte
	mu     sync.RWMutex
	logger log.Logger
}

// NewKV creates a new memory key-value store.
func NewKV(cfg KVConfig) (*KV, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &KV{
		values: map[string][]byte{},
		logger: cfg.Logger,
	}, nil
}

// Get returns the value stored under a key.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	value, ok := k.values[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, model.ErrNotFound)
	}

	// Return a copy.
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, nil
}

// Set stores a value under a key.
func (k *KV) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	k.values[key] = valueCopy

	k.logger.Debugf("Set key %s (%d bytes)", key, len(value))
	return nil
}

// Delete removes a key.
func (k *KV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.values, key)
	k.logger.Debugf("Deleted key %s", key)
	return nil
}
