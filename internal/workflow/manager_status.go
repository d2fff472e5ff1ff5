package workflow

import (
	"context"
	"sort"
	"time"

	"ferry/internal/logging"
	"ferry/internal/queue"
)

// AgentStatus summarizes one poller.
type AgentStatus struct {
	Name         string
	Kind         string
	LastPoll     time.Time
	SkippedPolls int64
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Agents     []AgentStatus
	QueueStats map[queue.Status]int
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{Running: m.running}
	for name, p := range m.pollers {
		st := AgentStatus{Name: name, Kind: p.cfg.Kind, SkippedPolls: p.skipped.Load()}
		if last := p.lastPoll.Load(); last != nil {
			st.LastPoll = *last
		}
		summary.Agents = append(summary.Agents, st)
	}
	m.mu.Unlock()
	sort.Slice(summary.Agents, func(i, j int) bool { return summary.Agents[i].Name < summary.Agents[j].Name })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}
