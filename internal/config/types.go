package config

// Config is the root configuration for Parley.
type Config struct {
	Identity  IdentityConfig  `yaml:"identity,omitempty"`
	Relay     RelayConfig     `yaml:"relay,omitempty"`
	Backend   BackendConfig   `yaml:"backend,omitempty"`
	Peer      PeerConfig      `yaml:"peer,omitempty"`
	Persist   PersistConfig   `yaml:"persist,omitempty"`
	Reconcile ReconcileConfig `yaml:"reconcile,omitempty"`
	Directory DirectoryConfig `yaml:"directory,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// IdentityConfig names the local user.
type IdentityConfig struct {
	UserID string `yaml:"userId,omitempty"`
	Name   string `yaml:"name,omitempty"`
}

// RelayConfig controls the relay HTTP/WebSocket server.
type RelayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "all"
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// BackendConfig points at the turn backend.
type BackendConfig struct {
	URL string `yaml:"url,omitempty"`
}

// PeerConfig tunes the outbound peer channel.
type PeerConfig struct {
	URL              string `yaml:"url,omitempty"`
	PingSeconds      int    `yaml:"pingSeconds,omitempty"`
	ReconnectBaseMs  int    `yaml:"reconnectBaseMs,omitempty"`
	MaxReconnects    int    `yaml:"maxReconnects,omitempty"`
	HandshakeSeconds int    `yaml:"handshakeSeconds,omitempty"`
}

// PersistConfig tunes the persistence client and worker.
type PersistConfig struct {
	URL            string `yaml:"url,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	RetryBaseMs    int    `yaml:"retryBaseMs,omitempty"`
	MaxAttempts    int    `yaml:"maxAttempts,omitempty"`
}

// ReconcileConfig tunes offline catch-up after reconnect.
type ReconcileConfig struct {
	SettleMs            int `yaml:"settleMs,omitempty"`
	MaxPolls            int `yaml:"maxPolls,omitempty"`
	PollIntervalSeconds int `yaml:"pollIntervalSeconds,omitempty"`
}

// DirectoryConfig sizes the display-name cache.
type DirectoryConfig struct {
	AgentTTLMinutes int `yaml:"agentTtlMinutes,omitempty"`
	UserTTLMinutes  int `yaml:"userTtlMinutes,omitempty"`
	AgentCapacity   int `yaml:"agentCapacity,omitempty"`
	UserCapacity    int `yaml:"userCapacity,omitempty"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
