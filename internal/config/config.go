// Package config loads Parley's YAML configuration with environment
// overrides.
package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Relay: RelayConfig{
			Port: 18790,
			Bind: "loopback",
		},
		Peer: PeerConfig{
			PingSeconds:      30,
			ReconnectBaseMs:  1000,
			MaxReconnects:    5,
			HandshakeSeconds: 5,
		},
		Persist: PersistConfig{
			TimeoutSeconds: 15,
			RetryBaseMs:    1000,
			MaxAttempts:    3,
		},
		Reconcile: ReconcileConfig{
			SettleMs:            1000,
			MaxPolls:            3,
			PollIntervalSeconds: 2,
		},
		Directory: DirectoryConfig{
			AgentTTLMinutes: 30,
			UserTTLMinutes:  2,
			AgentCapacity:   64,
			UserCapacity:    256,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
