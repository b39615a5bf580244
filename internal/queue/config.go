package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/queuectl/queuectl/internal/core"
)

func (e *Engine) intConfig(ctx context.Context, key string) (int, error) {
	defaults := core.DefaultConfig()
	raw, err := e.store.ConfigValue(ctx, key, defaults[key])
	if err != nil {
		return 0, fmt.Errorf("read config %q: %w", key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config %q is not an integer: %q", key, raw)
	}
	return n, nil
}

// SetConfig writes a single config key/value pair.
func (e *Engine) SetConfig(ctx context.Context, key, value string) error {
	return e.store.SetConfig(ctx, key, value)
}

// ConfigValue reads a single config key, falling back to its default.
func (e *Engine) ConfigValue(ctx context.Context, key string) (string, error) {
	return e.store.ConfigValue(ctx, key, core.DefaultConfig()[key])
}

// AllConfig returns every config key/value, defaults included.
func (e *Engine) AllConfig(ctx context.Context) (map[string]string, error) {
	stored, err := e.store.AllConfig(ctx)
	if err != nil {
		return nil, err
	}
	merged := core.DefaultConfig()
	for k, v := range stored {
		merged[k] = v
	}
	return merged, nil
}
