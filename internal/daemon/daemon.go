package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/importer"
	"ferry/internal/logging"
	"ferry/internal/preflight"
	"ferry/internal/queue"
	"ferry/internal/workflow"
)

const lockFileName = "ferry.lock"

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	settings *config.Holder
	logger   *slog.Logger
	store    *queue.Store
	importer *importer.Importer
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(settings *config.Holder, store *queue.Store, logger *slog.Logger, im *importer.Importer, wf *workflow.Manager) (*Daemon, error) {
	if settings == nil || store == nil || logger == nil || im == nil || wf == nil {
		return nil, errors.New("daemon requires settings, store, logger, importer, and workflow manager")
	}
	lockPath := filepath.Join(settings.Current().Paths.DataDir, lockFileName)
	return &Daemon{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		importer: im,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, reconciles interrupted imports, runs
// preflight checks, and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ferry daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.reconcile(runCtx)
	d.preflight(runCtx)

	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("ferry daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) reconcile(ctx context.Context) {
	outcomes, err := d.importer.Reconcile(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "import reconciliation failed", "reconcile_failed",
			logging.String(logging.FieldErrorHint, "inspect items stuck in importing with `ferry queue list`"),
			logging.String(logging.FieldImpact, "items that errored stay in importing"),
			logging.Error(err),
		)
	}
	if len(outcomes) == 0 {
		return
	}
	counts := map[importer.Outcome]int{}
	for _, outcome := range outcomes {
		counts[outcome]++
	}
	d.logger.Info("reconciled interrupted imports",
		logging.Int("committed", counts[importer.OutcomeCommitted]),
		logging.Int("rolled_back", counts[importer.OutcomeRolledBack]),
		logging.Int("failed", counts[importer.OutcomeFailed]),
	)
}

func (d *Daemon) preflight(ctx context.Context) {
	cfg := d.settings.Current()
	clients, err := agent.NewAll(cfg.Agents, d.logger)
	if err != nil {
		d.logger.Warn("agent clients unavailable for preflight", logging.Error(err))
	}
	for _, result := range preflight.RunAll(ctx, cfg, clients) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String(logging.FieldErrorHint, "run `ferry agents test` and check library root permissions"),
			logging.String(logging.FieldImpact, "imports touching this dependency will fail until it recovers"),
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
}

// Reload re-reads the configuration file and restarts pollers.
func (d *Daemon) Reload() error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.workflow.Reload()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ferry daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.settings.Current().DatabasePath(),
		LockFilePath: d.lockPath,
	}
}
