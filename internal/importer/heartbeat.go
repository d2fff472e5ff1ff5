package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"ferry/internal/logging"
)

func (im *Importer) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, itemID int64, interval time.Duration) {
	defer wg.Done()
	if interval <= 0 {
		return
	}
	if err := im.store.UpdateHeartbeat(ctx, itemID); err != nil && !errors.Is(err, context.Canceled) {
		im.logger.Warn("heartbeat update failed", logging.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := im.store.UpdateHeartbeat(ctx, itemID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				im.logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
