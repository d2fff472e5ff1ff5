package workflow

import (
	"context"

	"ferry/internal/queue"
)

// WithItemLoader replaces the store lookup of a freshly claimed item.
func WithItemLoader(fn func(ctx context.Context, id int64) (*queue.Item, error)) ManagerOption {
	return func(m *Manager) { m.loadItem = fn }
}
