package workflow

import (
	"context"
	"os"

	"github.com/fsnotify/fsnotify"

	"ferry/internal/logging"
)

// watchCompletedDir requests an early poll whenever an entry appears in or
// moves into the agent's completed directory.
func (m *Manager) watchCompletedDir(ctx context.Context, p *poller) {
	defer m.pollWG.Done()

	dir := p.cfg.CompletedDir
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logging.WarnWithContext(p.logger, "completed directory not watchable", "watch_unavailable",
			logging.String("path", dir),
			logging.String(logging.FieldErrorHint, "check the agent completed_dir setting"),
			logging.String(logging.FieldImpact, "completions are noticed on the regular poll interval"),
		)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(p.logger, "filesystem watcher unavailable", "watch_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "completions are noticed on the regular poll interval"),
		)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		logging.WarnWithContext(p.logger, "failed to watch completed directory", "watch_unavailable",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "completions are noticed on the regular poll interval"),
		)
		return
	}
	p.logger.Debug("watching completed directory", logging.String("path", dir))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				p.requestPoll()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("completed directory watch error", logging.Error(err))
		}
	}
}
