package testsupport

import (
	"path/filepath"
	"testing"

	"ferry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Media.Roots = []string{filepath.Join(base, "library")}
	cfgVal.Media.MinFreeSpaceMB = 0
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRoots replaces the library roots with directories under the test base.
func WithRoots(names ...string) ConfigOption {
	return func(b *configBuilder) {
		roots := make([]string, 0, len(names))
		for _, name := range names {
			roots = append(roots, filepath.Join(b.baseDir, name))
		}
		b.cfg.Media.Roots = roots
	}
}

// WithTransferMode overrides media.transfer_mode.
func WithTransferMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Media.TransferMode = mode
	}
}

// WithAgent appends an agent definition. An empty CompletedDir is pointed at
// a per-agent directory under the test base.
func WithAgent(agent config.Agent) ConfigOption {
	return func(b *configBuilder) {
		if agent.CompletedDir == "" {
			agent.CompletedDir = filepath.Join(b.baseDir, "downloads", agent.Name)
		}
		if agent.Category == "" {
			agent.Category = "ferry"
		}
		b.cfg.Agents = append(b.cfg.Agents, agent)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
