package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAgents(); err != nil {
		return err
	}
	if err := c.normalizeMedia(); err != nil {
		return err
	}
	c.normalizePermissions()
	c.normalizeJellyfin()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAgents() error {
	for i := range c.Agents {
		agent := &c.Agents[i]
		agent.Name = strings.TrimSpace(agent.Name)
		agent.Kind = strings.ToLower(strings.TrimSpace(agent.Kind))
		agent.Host = strings.TrimSpace(agent.Host)
		agent.URLBase = strings.Trim(strings.TrimSpace(agent.URLBase), "/")
		agent.Username = strings.TrimSpace(agent.Username)
		agent.APIKey = strings.TrimSpace(agent.APIKey)
		agent.Category = strings.TrimSpace(agent.Category)
		if agent.Category == "" {
			agent.Category = defaultAgentCategory
		}
		if agent.Port == 0 {
			agent.Port = defaultPortForKind(agent.Kind)
		}
		if agent.Kind == AgentTransmission && agent.URLBase == "" {
			agent.URLBase = defaultTransmissionRPCBase
		}
		if agent.TimeoutSeconds <= 0 {
			agent.TimeoutSeconds = defaultAgentTimeoutSeconds
		}
		envName := envToken(agent.Name)
		if agent.Password == "" && envName != "" {
			if value, ok := os.LookupEnv(fmt.Sprintf(defaultAgentPasswordEnvPattern, envName)); ok {
				agent.Password = value
			}
		}
		if agent.APIKey == "" && envName != "" {
			if value, ok := os.LookupEnv(fmt.Sprintf(defaultAgentAPIKeyEnvPattern, envName)); ok {
				agent.APIKey = strings.TrimSpace(value)
			}
		}
		if strings.TrimSpace(agent.CompletedDir) != "" {
			expanded, err := expandPath(agent.CompletedDir)
			if err != nil {
				return fmt.Errorf("agents[%s].completed_dir: %w", agent.Name, err)
			}
			agent.CompletedDir = expanded
		}
	}
	return nil
}

func defaultPortForKind(kind string) int {
	switch kind {
	case AgentQBittorrent:
		return defaultQBittorrentPort
	case AgentTransmission:
		return defaultTransmissionPort
	case AgentDeluge:
		return defaultDelugePort
	case AgentSABnzbd:
		return defaultSABnzbdPort
	default:
		return 0
	}
}

// envToken turns an agent name into the upper-case token used in env fallbacks.
func envToken(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (c *Config) normalizeMedia() error {
	roots := make([]string, 0, len(c.Media.Roots))
	seen := make(map[string]struct{}, len(c.Media.Roots))
	for _, root := range c.Media.Roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(root))
		if err != nil {
			return fmt.Errorf("media.roots: %w", err)
		}
		if _, ok := seen[expanded]; ok {
			continue
		}
		seen[expanded] = struct{}{}
		roots = append(roots, expanded)
	}
	c.Media.Roots = roots

	c.Media.FolderTemplate = strings.TrimSpace(c.Media.FolderTemplate)
	c.Media.FileTemplate = strings.TrimSpace(c.Media.FileTemplate)
	if c.Media.FileTemplate == "" {
		c.Media.FileTemplate = defaultFileTemplate
	}
	c.Media.TransferMode = strings.ToLower(strings.TrimSpace(c.Media.TransferMode))
	if c.Media.TransferMode == "" {
		c.Media.TransferMode = defaultTransferMode
	}
	if c.Media.CopyBufferKB <= 0 {
		c.Media.CopyBufferKB = defaultCopyBufferKB
	}

	exts := make([]string, 0, len(c.Media.Extensions))
	seenExt := make(map[string]struct{}, len(c.Media.Extensions))
	for _, ext := range c.Media.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seenExt[normalized]; ok {
			continue
		}
		seenExt[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = defaultExtensions()
	}
	c.Media.Extensions = exts
	return nil
}

func (c *Config) normalizePermissions() {
	c.Permissions.FileMode = strings.TrimSpace(c.Permissions.FileMode)
	if c.Permissions.FileMode == "" {
		c.Permissions.FileMode = defaultFileMode
	}
	c.Permissions.FolderMode = strings.TrimSpace(c.Permissions.FolderMode)
	if c.Permissions.FolderMode == "" {
		c.Permissions.FolderMode = defaultFolderMode
	}
	c.Permissions.Owner = strings.TrimSpace(c.Permissions.Owner)
	c.Permissions.Group = strings.TrimSpace(c.Permissions.Group)
}

func (c *Config) normalizeJellyfin() {
	if c.Jellyfin.APIKey == "" {
		if value, ok := os.LookupEnv("JELLYFIN_API_KEY"); ok {
			c.Jellyfin.APIKey = strings.TrimSpace(value)
		}
	}
	c.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.URL), "/")
	c.Jellyfin.APIKey = strings.TrimSpace(c.Jellyfin.APIKey)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
