package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ferry/internal/agent"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/services"
)

// pollStatuses are the items a poll asks the agent about. Importing items are
// owned by their import goroutine.
var pollStatuses = append(append([]queue.Status{}, queue.ActiveStatuses...), queue.StatusCompleted)

// Poll runs one poll of the named agent now. It reports false when the agent
// is unknown or a poll of it was already running.
func (m *Manager) Poll(ctx context.Context, agentName string) bool {
	m.mu.Lock()
	p := m.pollers[agentName]
	m.mu.Unlock()
	if p == nil {
		return false
	}
	return m.poll(ctx, p)
}

// SkippedPolls reports how many overlapping polls were suppressed for an agent.
func (m *Manager) SkippedPolls(agentName string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.pollers[agentName]; p != nil {
		return p.skipped.Load()
	}
	return 0
}

func (m *Manager) poll(ctx context.Context, p *poller) bool {
	if !p.busy.TryLock() {
		skipped := p.skipped.Add(1)
		p.logger.Debug("poll already running; skipped", logging.Int64("skipped_polls", skipped))
		return false
	}
	defer p.busy.Unlock()

	now := time.Now()
	p.lastPoll.Store(&now)

	ctx = services.WithRequestID(services.WithAgent(ctx, p.cfg.Name), uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)
	if p.client == nil {
		return true
	}

	items, err := m.store.ItemsForAgent(ctx, p.cfg.Name, pollStatuses...)
	if err != nil {
		logger.Error("failed to load agent items",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fetch_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return true
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return true
		}
		m.syncItem(ctx, p.client, item)
	}
	return true
}

func (m *Manager) syncItem(ctx context.Context, client agent.Client, item *queue.Item) {
	ctx = services.WithItemID(ctx, item.ID)
	logger := logging.WithContext(ctx, m.logger)

	// An item rolled back after an interrupted import already knows its payload.
	if item.Status == queue.StatusCompleted && strings.TrimSpace(item.ContentPath) != "" {
		m.startImport(ctx, item.ID)
		return
	}

	snap := client.Status(ctx, item.AgentHandle)
	if snap == nil {
		logger.Debug("agent did not report item; retrying next poll")
		return
	}

	if snap.Status == queue.StatusFailed {
		reason := fmt.Sprintf("agent reported %s", snap.VendorState)
		if ok, err := m.store.MarkFailed(ctx, item.ID, reason); err != nil {
			logger.Error("failed to mark item failed", logging.Error(err))
		} else if ok {
			logging.WarnWithContext(logger, "acquisition failed on agent", "agent_item_failed",
				logging.String("vendor_state", snap.VendorState),
				logging.String(logging.FieldErrorHint, "inspect the item in the agent UI"),
				logging.String(logging.FieldImpact, "item marked failed"),
			)
		}
		return
	}

	from := item.Status
	for _, step := range queue.TransitionPath(from, snap.Status) {
		ok, err := m.store.Transition(ctx, item.ID, from, step, "")
		if err != nil {
			logger.Error("status transition failed",
				logging.String("from", string(from)),
				logging.String("to", string(step)),
				logging.Error(err),
			)
			return
		}
		if !ok {
			logger.Debug("item changed concurrently; transition skipped", logging.String("from", string(from)))
			return
		}
		logger.Debug("status advanced", logging.String("from", string(from)), logging.String("to", string(step)))
		from = step
	}

	if from != queue.StatusCompleted {
		return
	}
	if snap.ContentPath != "" {
		if err := m.store.SetContentPath(ctx, item.ID, snap.ContentPath); err != nil {
			logger.Error("failed to record content path", logging.Error(err))
			return
		}
	}
	m.startImport(ctx, item.ID)
}

func (m *Manager) startImport(ctx context.Context, id int64) {
	logger := logging.WithContext(ctx, m.logger)
	ok, err := m.store.ClaimForImport(ctx, id)
	if err != nil {
		logger.Error("failed to claim item for import", logging.Error(err))
		return
	}
	if !ok {
		return
	}
	item, err := m.loadItem(ctx, id)
	if err != nil || item == nil {
		if err == nil {
			err = errors.New("claimed item disappeared")
		}
		logging.ErrorWithContext(logger, "failed to load claimed item", "import_claim_lost",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item marked failed instead of left importing"),
		)
		if _, markErr := m.store.MarkFailed(context.WithoutCancel(ctx), id, "load claimed item: "+err.Error()); markErr != nil {
			logger.Error("failed to persist claim failure", logging.Error(markErr))
		}
		return
	}
	logger.Info("import started",
		logging.String("content_path", item.ContentPath),
		logging.String(logging.FieldEventType, "import_started"),
	)

	// Imports outlive the poll that started them; Stop waits for them.
	importCtx := context.WithoutCancel(ctx)
	m.imports.Add(1)
	go func() {
		defer m.imports.Done()
		if _, err := m.importer.Run(importCtx, item); err != nil {
			logger.Debug("import run returned error", logging.Error(err))
		}
	}()
}
