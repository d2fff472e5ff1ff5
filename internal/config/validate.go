package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAgents(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validatePermissions(); err != nil {
		return err
	}
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAgents() error {
	seen := make(map[string]struct{}, len(c.Agents))
	for i, agent := range c.Agents {
		if agent.Name == "" {
			return fmt.Errorf("agents[%d].name must be set", i)
		}
		key := strings.ToLower(agent.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("agents[%d].name %q is duplicated", i, agent.Name)
		}
		seen[key] = struct{}{}

		switch agent.Kind {
		case AgentQBittorrent, AgentTransmission, AgentDeluge:
		case AgentSABnzbd:
			if agent.APIKey == "" {
				return fmt.Errorf("agents[%s].api_key must be set for sabnzbd", agent.Name)
			}
		case "":
			return fmt.Errorf("agents[%s].kind must be set", agent.Name)
		default:
			return fmt.Errorf("agents[%s].kind %q is not supported (qbittorrent, transmission, deluge, sabnzbd)", agent.Name, agent.Kind)
		}
		if agent.Host == "" {
			return fmt.Errorf("agents[%s].host must be set", agent.Name)
		}
		if agent.Port < 1 || agent.Port > 65535 {
			return fmt.Errorf("agents[%s].port must be between 1 and 65535", agent.Name)
		}
	}
	return nil
}

func (c *Config) validateMedia() error {
	if len(c.Media.Roots) == 0 {
		return errors.New("media.roots must list at least one root folder")
	}
	switch c.Media.TransferMode {
	case TransferMove, TransferCopy, TransferHardlink:
	default:
		return fmt.Errorf("media.transfer_mode %q must be one of move, copy, hardlink", c.Media.TransferMode)
	}
	if c.Media.MinFreeSpaceMB < 0 {
		return errors.New("media.min_free_space_mb must not be negative")
	}
	if strings.ContainsAny(c.Media.FileTemplate, `/\`) {
		return errors.New("media.file_template must not contain path separators")
	}
	return nil
}

func (c *Config) validatePermissions() error {
	if !c.Permissions.Enabled {
		return nil
	}
	if _, err := c.Permissions.FileModeBits(); err != nil {
		return fmt.Errorf("permissions.file_mode: %w", err)
	}
	if _, err := c.Permissions.FolderModeBits(); err != nil {
		return fmt.Errorf("permissions.folder_mode: %w", err)
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	if !c.Jellyfin.Enabled {
		return nil
	}
	if c.Jellyfin.URL == "" {
		return errors.New("jellyfin.url must be set when jellyfin.enabled is true")
	}
	if c.Jellyfin.APIKey == "" {
		return errors.New("jellyfin.api_key must be set when jellyfin.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.heartbeat_interval":   c.Workflow.HeartbeatInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
