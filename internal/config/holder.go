package config

import (
	"fmt"
	"sync"
)

// Holder owns the active configuration value. Readers take a snapshot with
// Current; Reload swaps in a freshly loaded value without touching snapshots
// already handed out.
type Holder struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewHolder wraps an already loaded configuration. path is the file Reload
// re-reads; an empty path repeats the default lookup.
func NewHolder(path string, cfg *Config) *Holder {
	return &Holder{path: path, cfg: cfg}
}

// Current returns the active configuration. Callers must treat it as read-only.
func (h *Holder) Current() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Path returns the configuration file backing the holder.
func (h *Holder) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Reload re-reads the configuration file. On error the previous value stays active.
func (h *Holder) Reload() (*Config, error) {
	h.mu.RLock()
	path := h.path
	h.mu.RUnlock()

	cfg, resolved, _, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	h.cfg = cfg
	if h.path == "" {
		h.path = resolved
	}
	h.mu.Unlock()
	return cfg, nil
}
