// Package config defines the server configuration structure.
package config

// ServerConfig is the root configuration for drawhub-server.
type ServerConfig struct {
	Status  StatusSection  `koanf:"status"`
	Session SessionSection `koanf:"session"`
	Storage StorageSection `koanf:"storage"`
	Log     LogSection     `koanf:"log"`
}

// StatusSection configures the status/introspection HTTP API.
type StatusSection struct {
	Addr string `koanf:"addr"`

	// RateLimitPerSecond and RateLimitBurst bound requests per client IP.
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	RateLimitBurst     int     `koanf:"rate_limit_burst"`
}

// SessionSection configures per-session history behavior.
type SessionSection struct {
	// SizeLimit is the byte budget of a session's retained log.
	// Zero means unlimited.
	SizeLimit int64 `koanf:"size_limit"`

	// AutoResetThreshold is the growth in bytes since the last
	// compaction at which an automatic reset is requested. Zero
	// disables auto-reset.
	AutoResetThreshold int64 `koanf:"auto_reset_threshold"`

	// Workers is the size of the session worker pool. Zero picks the
	// default.
	Workers int `koanf:"workers"`
}

// StorageSection configures history persistence.
type StorageSection struct {
	// Backend selects the history backend ("badger" or "memory").
	Backend string `koanf:"backend"`

	// DataDir is the Badger data directory. Ignored for memory.
	DataDir string `koanf:"data_dir"`

	// EncryptionKey enables at-rest encryption when non-empty.
	// Must be 32 bytes.
	EncryptionKey string `koanf:"encryption_key"`

	// GCInterval is how often the Badger value log GC runs.
	GCInterval string `koanf:"gc_interval"`

	// SyncWrites makes every Badger write durable before returning.
	SyncWrites bool `koanf:"sync_writes"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
