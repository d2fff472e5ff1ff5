package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferry/internal/config"
	"ferry/internal/logging"
)

// Start launches one poller per configured agent.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	m.base = ctx
	if err := m.startPollersLocked(m.settings.Current()); err != nil {
		return err
	}
	m.running = true
	return nil
}

// Stop ends polling and waits for in-flight imports to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.stopPollersLocked()
	m.mu.Unlock()

	m.imports.Wait()
}

// Reload re-reads the configuration and restarts pollers with the new agent
// set. Running imports are unaffected. On error the previous pollers keep
// running.
func (m *Manager) Reload() error {
	cfg, err := m.settings.Reload()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.stopPollersLocked()
	if err := m.startPollersLocked(cfg); err != nil {
		m.running = false
		return err
	}
	m.logger.Info("configuration reloaded",
		logging.Int("agents", len(cfg.Agents)),
		logging.String(logging.FieldEventType, "config_reloaded"),
	)
	return nil
}

func (m *Manager) startPollersLocked(cfg *config.Config) error {
	clients, err := m.newClients(cfg.Agents, m.logger)
	if err != nil {
		return fmt.Errorf("build agent clients: %w", err)
	}
	interval := time.Duration(cfg.Workflow.PollInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	stallAfter := 3 * time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second

	runCtx, cancel := context.WithCancel(m.base)
	m.cancel = cancel
	m.pollers = make(map[string]*poller, len(cfg.Agents))
	for _, agentCfg := range cfg.Agents {
		p := &poller{
			cfg:      agentCfg,
			client:   clients[agentCfg.Name],
			interval: interval,
			logger:   m.logger.With(logging.String(logging.FieldAgent, agentCfg.Name)),
			wake:     make(chan struct{}, 1),
		}
		m.pollers[agentCfg.Name] = p
		m.pollWG.Add(1)
		go m.runPoller(runCtx, p)
		if agentCfg.CompletedDir != "" {
			m.pollWG.Add(1)
			go m.watchCompletedDir(runCtx, p)
		}
	}
	if stallAfter > 0 {
		m.pollWG.Add(1)
		go m.watchStalledImports(runCtx, stallAfter)
	}
	return nil
}

func (m *Manager) stopPollersLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.pollWG.Wait()
}

func (m *Manager) runPoller(ctx context.Context, p *poller) {
	defer m.pollWG.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	m.poll(ctx, p)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.wake:
		}
		m.poll(ctx, p)
	}
}
