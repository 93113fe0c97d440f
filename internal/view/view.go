package view

import (
	"context"
	"fmt"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/model"
	"github.com/meteosahel/tasktrack/internal/task"
)

// Renderer receives the full task collection after every change.
type Renderer interface {
	PrintTasks(tasks []model.Task) error
}

// BindingConfig is the configuration for the view binding.
type BindingConfig struct {
	Store    *task.Store
	Renderer Renderer
	Logger   log.Logger
}

func (c *BindingConfig) defaults() error {
	if c.Store == nil {
		return fmt.Errorf("task store is required")
	}
	if c.Renderer == nil {
		return fmt.Errorf("renderer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "view.Binding"})
	return nil
}

// Binding keeps a renderer in sync with the task store: every store change
// re-reads the full collection and renders it. Render failures are logged and
// never propagated back into the store.
type Binding struct {
	store       *task.Store
	renderer    Renderer
	logger      log.Logger
	unsubscribe func()
}

// NewBinding creates a new view binding, renders the current collection once
// and subscribes to further changes.
func NewBinding(ctx context.Context, cfg BindingConfig) (*Binding, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	b := &Binding{
		store:    cfg.Store,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
	}

	b.render(ctx)
	b.unsubscribe = cfg.Store.Subscribe(func() { b.render(ctx) })

	return b, nil
}

// Close unsubscribes the binding from the store. Safe to call more than once.
func (b *Binding) Close() {
	b.unsubscribe()
}

func (b *Binding) render(ctx context.Context) {
	if err := b.renderer.PrintTasks(b.store.List(ctx)); err != nil {
		b.logger.Errorf("Could not render task collection: %s", err)
	}
}
