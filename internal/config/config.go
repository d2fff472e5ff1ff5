package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Agent describes one fetch agent backend. Agents are immutable while in use;
// edits take effect on the next poll after a reload.
type Agent struct {
	Name           string `toml:"name"`
	Kind           string `toml:"kind"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	UseTLS         bool   `toml:"use_tls"`
	URLBase        string `toml:"url_base"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	APIKey         string `toml:"api_key"`
	Category       string `toml:"category"`
	CompletedDir   string `toml:"completed_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// BaseURL returns the scheme, host, port, and url_base prefix for the agent.
func (a Agent) BaseURL() string {
	scheme := "http"
	if a.UseTLS {
		scheme = "https"
	}
	host := a.Host
	if a.Port > 0 {
		host = net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	}
	base := strings.Trim(strings.TrimSpace(a.URLBase), "/")
	if base == "" {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s/%s", scheme, host, base)
}

// Timeout returns the bounded network timeout applied to agent requests.
func (a Agent) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return defaultAgentTimeoutSeconds * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Media contains the media management settings applied to import runs.
type Media struct {
	Roots              []string `toml:"roots"`
	FolderTemplate     string   `toml:"folder_template"`
	FileTemplate       string   `toml:"file_template"`
	TransferMode       string   `toml:"transfer_mode"`
	MinFreeSpaceMB     int64    `toml:"min_free_space_mb"`
	SkipFreeSpaceCheck bool     `toml:"skip_free_space_check"`
	CleanupSource      bool     `toml:"cleanup_source"`
	Extensions         []string `toml:"extensions"`
	CopyBufferKB       int      `toml:"copy_buffer_kb"`
}

// MinFreeSpaceBytes converts the configured buffer to bytes.
func (m Media) MinFreeSpaceBytes() uint64 {
	if m.MinFreeSpaceMB <= 0 {
		return 0
	}
	return uint64(m.MinFreeSpaceMB) * 1024 * 1024
}

// CopyBufferBytes returns the fixed buffer size used for streaming copies.
func (m Media) CopyBufferBytes() int {
	if m.CopyBufferKB <= 0 {
		return defaultCopyBufferKB * 1024
	}
	return m.CopyBufferKB * 1024
}

// Permissions controls mode and ownership applied to imported files.
type Permissions struct {
	Enabled    bool   `toml:"enabled"`
	FileMode   string `toml:"file_mode"`
	FolderMode string `toml:"folder_mode"`
	Owner      string `toml:"owner"`
	Group      string `toml:"group"`
}

// FileModeBits parses file_mode as an octal permission value.
func (p Permissions) FileModeBits() (os.FileMode, error) {
	return parseMode(p.FileMode)
}

// FolderModeBits parses folder_mode as an octal permission value.
func (p Permissions) FolderModeBits() (os.FileMode, error) {
	return parseMode(p.FolderMode)
}

func parseMode(value string) (os.FileMode, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty mode")
	}
	parsed, err := strconv.ParseUint(value, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("parse mode %q: %w", value, err)
	}
	if parsed > 0o7777 {
		return 0, fmt.Errorf("mode %q out of range", value)
	}
	return os.FileMode(parsed), nil
}

// Jellyfin contains configuration for Jellyfin library refresh after imports.
type Jellyfin struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	APIKey  string `toml:"api_key"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	ImportCompleted bool   `toml:"import_completed"`
	ImportFailed    bool   `toml:"import_failed"`
	RootFallback    bool   `toml:"root_fallback"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ferry.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Agents: fetch agent backends polled by the synchronizer
//   - Media: roots, naming templates, transfer mode, and cleanup
//   - Permissions: mode and ownership applied after transfer
//   - Jellyfin: media server library refresh integration
//   - Notifications: ntfy push notification settings
//   - Workflow: polling and heartbeat intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Agents        []Agent       `toml:"agents"`
	Media         Media         `toml:"media"`
	Permissions   Permissions   `toml:"permissions"`
	Jellyfin      Jellyfin      `toml:"jellyfin"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// AgentByName returns the configured agent with the given name.
func (c *Config) AgentByName(name string) (Agent, bool) {
	for _, agent := range c.Agents {
		if strings.EqualFold(agent.Name, strings.TrimSpace(name)) {
			return agent, true
		}
	}
	return Agent{}, false
}

// DatabasePath returns the location of the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ferry.db")
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Roots are created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, root := range c.Media.Roots {
		// Offline roots are reported as unreachable by the root selector.
		_ = os.MkdirAll(root, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
