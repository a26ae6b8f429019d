package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the config file, applies environment overrides, and returns a
// merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults after a file
// load zeroed them out.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Relay.Port == 0 {
		cfg.Relay.Port = d.Relay.Port
	}
	if cfg.Relay.Bind == "" {
		cfg.Relay.Bind = d.Relay.Bind
	}
	if cfg.Peer.PingSeconds == 0 {
		cfg.Peer.PingSeconds = d.Peer.PingSeconds
	}
	if cfg.Peer.ReconnectBaseMs == 0 {
		cfg.Peer.ReconnectBaseMs = d.Peer.ReconnectBaseMs
	}
	if cfg.Peer.MaxReconnects == 0 {
		cfg.Peer.MaxReconnects = d.Peer.MaxReconnects
	}
	if cfg.Peer.HandshakeSeconds == 0 {
		cfg.Peer.HandshakeSeconds = d.Peer.HandshakeSeconds
	}
	if cfg.Persist.TimeoutSeconds == 0 {
		cfg.Persist.TimeoutSeconds = d.Persist.TimeoutSeconds
	}
	if cfg.Persist.RetryBaseMs == 0 {
		cfg.Persist.RetryBaseMs = d.Persist.RetryBaseMs
	}
	if cfg.Persist.MaxAttempts == 0 {
		cfg.Persist.MaxAttempts = d.Persist.MaxAttempts
	}
	if cfg.Reconcile.SettleMs == 0 {
		cfg.Reconcile.SettleMs = d.Reconcile.SettleMs
	}
	if cfg.Reconcile.MaxPolls == 0 {
		cfg.Reconcile.MaxPolls = d.Reconcile.MaxPolls
	}
	if cfg.Reconcile.PollIntervalSeconds == 0 {
		cfg.Reconcile.PollIntervalSeconds = d.Reconcile.PollIntervalSeconds
	}
	if cfg.Directory.AgentTTLMinutes == 0 {
		cfg.Directory.AgentTTLMinutes = d.Directory.AgentTTLMinutes
	}
	if cfg.Directory.UserTTLMinutes == 0 {
		cfg.Directory.UserTTLMinutes = d.Directory.UserTTLMinutes
	}
	if cfg.Directory.AgentCapacity == 0 {
		cfg.Directory.AgentCapacity = d.Directory.AgentCapacity
	}
	if cfg.Directory.UserCapacity == 0 {
		cfg.Directory.UserCapacity = d.Directory.UserCapacity
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides lets PARLEY_* environment variables win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_USER_ID"); v != "" {
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("PARLEY_USER_NAME"); v != "" {
		cfg.Identity.Name = v
	}
	if v := os.Getenv("PARLEY_RELAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Relay.Port = port
		}
	}
	if v := os.Getenv("PARLEY_RELAY_BIND"); v != "" {
		cfg.Relay.Bind = v
	}
	if v := os.Getenv("PARLEY_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("PARLEY_PEER_URL"); v != "" {
		cfg.Peer.URL = v
	}
	if v := os.Getenv("PARLEY_PERSIST_URL"); v != "" {
		cfg.Persist.URL = v
	}
	if v := os.Getenv("PARLEY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
