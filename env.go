package rewardboard

const (
	// ConfigPathEnv defines the environment variable pointing at the YAML configuration file.
	ConfigPathEnv = "REWARDBOARD_CONFIG"

	// ListenAddrEnv overrides the HTTP listen address.
	ListenAddrEnv = "REWARDBOARD_LISTEN"

	// LogLevelEnv overrides the configured log level.
	LogLevelEnv = "REWARDBOARD_LOG_LEVEL"
)
