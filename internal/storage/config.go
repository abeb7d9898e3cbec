package storage

// Config configures the storage engine.
type Config struct {
	// Dir is the Badger data directory.
	Dir string `koanf:"dir"`

	// EncryptionKey enables at-rest encryption of message payloads when
	// non-empty. Must be 32 bytes.
	EncryptionKey string `koanf:"encryption_key"`

	// Badger holds engine tuning knobs.
	Badger BadgerConfig `koanf:"badger"`
}

// BadgerConfig tunes the underlying Badger instance.
type BadgerConfig struct {
	// CacheSize is the block cache size in bytes.
	CacheSize int64 `koanf:"cache_size"`

	// ValueLogFileSize is the max size of a single value log file.
	ValueLogFileSize int64 `koanf:"value_log_file_size"`

	// NumMemtables is the number of in-memory tables.
	NumMemtables int `koanf:"num_memtables"`

	// SyncWrites makes every write durable before returning.
	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often the value log garbage collector runs.
	GCInterval string `koanf:"gc_interval"`

	// GCThreshold is the rewrite ratio passed to the value log GC.
	GCThreshold float64 `koanf:"gc_threshold"`
}

// DefaultConfig returns the storage defaults for the given directory.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns conservative Badger tuning defaults.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		CacheSize:        64 << 20,
		ValueLogFileSize: 256 << 20,
		NumMemtables:     4,
		SyncWrites:       false,
		GCInterval:       "10m",
		GCThreshold:      0.5,
	}
}
