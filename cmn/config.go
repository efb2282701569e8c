package cmn

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root server configuration, loaded from YAML at startup and
// validated before anything else runs.
type Config struct {
	SpaceName string       `yaml:"space_name"`
	HTTP      HTTPConf     `yaml:"http"`
	Store     StoreConf    `yaml:"store"`
	Transfer  TransferConf `yaml:"transfer"`
	Backend   BackendConf  `yaml:"backend"`
	Log       LogConf      `yaml:"log"`
}

type HTTPConf struct {
	ListenAddr string `yaml:"listen_addr"`
}

type StoreConf struct {
	// Path to the bbolt database file backing the metadata store.
	DBPath string `yaml:"db_path"`
	// LockWaitTimeout bounds how long a transaction waits for the
	// single-writer lock before the store surfaces Conflict (§5, §7).
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout"`
}

type TransferConf struct {
	// MaxConcurrent bounds the number of EXECUTING jobs running at once.
	MaxConcurrent int `yaml:"max_concurrent"`
	// AbortGrace bounds how long the engine waits for a backend to respond
	// to a cancellation request before forcing the terminal transition (§5).
	AbortGrace time.Duration `yaml:"abort_grace"`
}

type BackendConf struct {
	// Provider selects the storage backend adapter: "mem", "s3", "azure", "gcs".
	Provider string            `yaml:"provider"`
	Options  map[string]string `yaml:"options"`
}

type LogConf struct {
	Level string `yaml:"level"` // debug|info|warn|error
}

// Default returns the configuration used when no file is supplied, suitable
// for local development against the in-memory backend.
func Default() *Config {
	return &Config{
		SpaceName: "icrar.org",
		HTTP:      HTTPConf{ListenAddr: ":8080"},
		Store: StoreConf{
			DBPath:          "vospace.db",
			LockWaitTimeout: 5 * time.Second,
		},
		Transfer: TransferConf{
			MaxConcurrent: 16,
			AbortGrace:    10 * time.Second,
		},
		Backend: BackendConf{Provider: "mem"},
		Log:     LogConf{Level: "info"},
	}
}

// Load reads and validates a YAML configuration file, filling any absent
// field from Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field in turn, mirroring the teacher's own
// one-check-per-field Validate chain.
func (c *Config) Validate() error {
	if c.SpaceName == "" {
		return fmt.Errorf("invalid space_name: must be non-empty")
	}
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("invalid http.listen_addr: must be non-empty")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("invalid store.db_path: must be non-empty")
	}
	if c.Store.LockWaitTimeout <= 0 {
		return fmt.Errorf("invalid store.lock_wait_timeout: %v (must be > 0)", c.Store.LockWaitTimeout)
	}
	if c.Transfer.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid transfer.max_concurrent: %d (must be > 0)", c.Transfer.MaxConcurrent)
	}
	if c.Transfer.AbortGrace <= 0 {
		return fmt.Errorf("invalid transfer.abort_grace: %v (must be > 0)", c.Transfer.AbortGrace)
	}
	switch c.Backend.Provider {
	case "mem", "s3", "azure", "gcs":
	default:
		return fmt.Errorf("invalid backend.provider: %q (expected one of mem, s3, azure, gcs)", c.Backend.Provider)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	return nil
}
