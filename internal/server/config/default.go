// Package config defines the server configuration structure.
package config

// Default configuration values.
const (
	DefaultStatusAddr         = "127.0.0.1:27750"
	DefaultRateLimitPerSecond = 10.0
	DefaultRateLimitBurst     = 30

	DefaultSessionSizeLimit = int64(64 << 20) // 64MB
	DefaultStorageBackend   = "badger"
	DefaultDataDir          = "/var/lib/drawhub-server/data"
	DefaultGCInterval       = "10m"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Status: StatusSection{
			Addr:               DefaultStatusAddr,
			RateLimitPerSecond: DefaultRateLimitPerSecond,
			RateLimitBurst:     DefaultRateLimitBurst,
		},
		Session: SessionSection{
			SizeLimit: DefaultSessionSizeLimit,
		},
		Storage: StorageSection{
			Backend:    DefaultStorageBackend,
			DataDir:    DefaultDataDir,
			GCInterval: DefaultGCInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
