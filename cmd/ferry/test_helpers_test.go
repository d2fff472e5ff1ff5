package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/config"
	"ferry/internal/queue"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

type agentBlock struct {
	name, kind, host string
	port             int
}

func setupCLITestEnv(t *testing.T, agents ...agentBlock) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "ferry", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\n\n", filepath.Join(base, "data"), filepath.Join(base, "logs"))
	for _, a := range agents {
		fmt.Fprintf(&b, "[[agents]]\nname = %q\nkind = %q\nhost = %q\nport = %d\nusername = \"admin\"\npassword = \"secret\"\ntimeout_seconds = 2\n\n",
			a.name, a.kind, a.host, a.port)
	}
	fmt.Fprintf(&b, "[media]\nroots = [%q]\nmin_free_space_mb = 0\n", filepath.Join(base, "library"))
	if err := os.WriteFile(configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// withStore opens the env's database for direct seeding and assertions.
func (e *cliTestEnv) withStore(t *testing.T, fn func(*queue.Store)) {
	t.Helper()
	store, err := queue.Open(e.cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	defer store.Close()
	fn(store)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
