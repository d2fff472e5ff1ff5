package config

const (
	defaultConfigPath              = "~/.config/ferry/config.toml"
	defaultDataDir                 = "~/.local/share/ferry"
	defaultLogDir                  = "~/.local/share/ferry/logs"
	defaultRoot                    = "~/media"
	defaultFolderTemplate          = "{Title}"
	defaultFileTemplate            = "{Title} - {Date} - {Quality}"
	defaultTransferMode            = "move"
	defaultMinFreeSpaceMB          = 100
	defaultCopyBufferKB            = 1024
	defaultFileMode                = "0644"
	defaultFolderMode              = "0755"
	defaultAgentTimeoutSeconds     = 15
	defaultPollInterval            = 30
	defaultHeartbeatInterval       = 15
	defaultErrorRetryInterval      = 10
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultQBittorrentPort         = 8080
	defaultTransmissionPort        = 9091
	defaultDelugePort              = 8112
	defaultSABnzbdPort             = 8080
	defaultTransmissionRPCBase     = "transmission"
	defaultAgentCategory           = "ferry"
	defaultAgentPasswordEnvPattern = "FERRY_AGENT_%s_PASSWORD"
	defaultAgentAPIKeyEnvPattern   = "FERRY_AGENT_%s_API_KEY"
)

// Agent kinds understood by the agent factory.
const (
	AgentQBittorrent  = "qbittorrent"
	AgentTransmission = "transmission"
	AgentDeluge       = "deluge"
	AgentSABnzbd      = "sabnzbd"
)

// Transfer modes accepted by media.transfer_mode.
const (
	TransferMove     = "move"
	TransferCopy     = "copy"
	TransferHardlink = "hardlink"
)

func defaultExtensions() []string {
	return []string{".mkv", ".mp4", ".avi", ".m4v", ".ts", ".mov", ".wmv"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Media: Media{
			Roots:          []string{defaultRoot},
			FolderTemplate: defaultFolderTemplate,
			FileTemplate:   defaultFileTemplate,
			TransferMode:   defaultTransferMode,
			MinFreeSpaceMB: defaultMinFreeSpaceMB,
			CleanupSource:  true,
			Extensions:     defaultExtensions(),
			CopyBufferKB:   defaultCopyBufferKB,
		},
		Permissions: Permissions{
			FileMode:   defaultFileMode,
			FolderMode: defaultFolderMode,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyRequestTimeout,
			ImportCompleted: true,
			ImportFailed:    true,
			RootFallback:    true,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
