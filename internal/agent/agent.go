package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ferry/internal/config"
	"ferry/internal/queue"
	"ferry/internal/services"
)

// Snapshot is one observation of an acquisition on its agent. Progress is
// the completed fraction in [0, 1].
type Snapshot struct {
	Status      queue.Status
	VendorState string
	Progress    float64
	Name        string
	ContentPath string
}

// Client is the capability every fetch agent backend provides.
type Client interface {
	Name() string
	Kind() string
	TestConnection(ctx context.Context) error
	// Enqueue hands sourceURI to the agent and returns its handle, or "" on failure.
	Enqueue(ctx context.Context, sourceURI, category string) string
	// Status returns nil when the agent could not be reached.
	Status(ctx context.Context, handle string) *Snapshot
	Pause(ctx context.Context, handle string) bool
	Resume(ctx context.Context, handle string) bool
	Remove(ctx context.Context, handle string, deleteData bool) bool
}

// New builds the client for cfg.Kind.
func New(cfg config.Agent, logger *slog.Logger) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case config.AgentQBittorrent:
		return newQBittorrent(cfg, logger), nil
	case config.AgentTransmission:
		return newTransmission(cfg, logger), nil
	case config.AgentDeluge:
		return newDeluge(cfg, logger), nil
	case config.AgentSABnzbd:
		return newSABnzbd(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: agent %q has unknown kind %q", services.ErrConfiguration, cfg.Name, cfg.Kind)
	}
}

// NewAll builds a client per configured agent, keyed by agent name.
func NewAll(agents []config.Agent, logger *slog.Logger) (map[string]Client, error) {
	clients := make(map[string]Client, len(agents))
	for _, cfg := range agents {
		client, err := New(cfg, logger)
		if err != nil {
			return nil, err
		}
		clients[cfg.Name] = client
	}
	return clients, nil
}

// missingSnapshot reports an acquisition the agent no longer knows about.
func missingSnapshot() *Snapshot {
	return &Snapshot{Status: queue.StatusFailed, VendorState: "missing"}
}
