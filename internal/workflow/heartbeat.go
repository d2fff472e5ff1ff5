package workflow

import (
	"context"
	"time"

	"ferry/internal/logging"
)

// watchStalledImports warns about importing items whose heartbeat has not
// advanced within stallAfter.
func (m *Manager) watchStalledImports(ctx context.Context, stallAfter time.Duration) {
	defer m.pollWG.Done()
	ticker := time.NewTicker(stallAfter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stale, err := m.store.StaleImports(ctx, time.Now().Add(-stallAfter))
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("stalled import check failed", logging.Error(err))
			}
			continue
		}
		for _, item := range stale {
			logging.WarnWithContext(m.logger, "import heartbeat is stale", "import_stalled",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("title", item.Title),
				logging.String(logging.FieldErrorHint, "check disk activity on the destination root"),
				logging.String(logging.FieldImpact, "import may be hung; restart ferry to reconcile"),
			)
		}
	}
}
