// Package config handles FalkorDB configuration.
//
// Configuration loads in three layers: built-in defaults, then an
// optional YAML file, then FALKORDB_-prefixed environment variables,
// each layer overriding the previous. Validate before use.
//
// Example Usage:
//
//	cfg, err := config.Load("falkordb.yml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.ListenAddress)
//
// Environment Variables:
//   - FALKORDB_LISTEN_ADDRESS=:6380
//   - FALKORDB_DATA_DIR=./data
//   - FALKORDB_QUERY_TIMEOUT=30s
//   - FALKORDB_MAX_QUEUED_QUERIES=256
//   - FALKORDB_THREAD_POOL_SIZE=8
//   - FALKORDB_MATRIX_SYNC_POLICY=flush-resize | resize | nop
//   - FALKORDB_INDEX_BATCH_SIZE=1000
//   - FALKORDB_PLAN_CACHE_SIZE=256
//   - FALKORDB_REQUIRE_PASS=<bcrypt hash>
//   - FALKORDB_LOG_LEVEL=info
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig groups the network-facing settings.
type ServerConfig struct {
	// ListenAddress is the TCP address the keyspace server binds.
	ListenAddress string `yaml:"listen_address"`
	// RequirePass, when non-empty, is the bcrypt hash clients must
	// match via AUTH before issuing commands.
	RequirePass string `yaml:"require_pass"`
	// MaxQueuedQueries bounds the per-server query admission queue.
	MaxQueuedQueries int `yaml:"max_queued_queries"`
}

// QueryConfig groups query-engine settings.
type QueryConfig struct {
	// Timeout aborts queries running longer than this. Zero disables.
	Timeout time.Duration `yaml:"timeout"`
	// ThreadPoolSize is the number of concurrent query executors.
	ThreadPoolSize int `yaml:"thread_pool_size"`
	// PlanCacheSize is the per-server LRU capacity for compiled plans.
	PlanCacheSize int `yaml:"plan_cache_size"`
}

// StorageConfig groups persistence and matrix settings.
type StorageConfig struct {
	// DataDir is where snapshots persist. Empty keeps everything in
	// memory.
	DataDir string `yaml:"data_dir"`
	// MatrixSyncPolicy is the steady-state sync policy: flush-resize,
	// resize or nop.
	MatrixSyncPolicy string `yaml:"matrix_sync_policy"`
	// IndexBatchSize is the index populator's per-lock-window batch.
	IndexBatchSize int `yaml:"index_batch_size"`
}

// LoggingConfig groups logging settings.
type LoggingConfig struct {
	// Level is a logrus level name: debug, info, warn, error.
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Query   QueryConfig   `yaml:"query"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:    ":6380",
			MaxQueuedQueries: 256,
		},
		Query: QueryConfig{
			Timeout:        30 * time.Second,
			ThreadPoolSize: runtime.NumCPU(),
			PlanCacheSize:  256,
		},
		Storage: StorageConfig{
			MatrixSyncPolicy: "flush-resize",
			IndexBatchSize:   1000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file
// at path (empty path skips the file layer) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("FALKORDB_LISTEN_ADDRESS"); v != "" {
		c.Server.ListenAddress = v
	}
	if v := os.Getenv("FALKORDB_REQUIRE_PASS"); v != "" {
		c.Server.RequirePass = v
	}
	if v := os.Getenv("FALKORDB_MAX_QUEUED_QUERIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxQueuedQueries = n
		}
	}
	if v := os.Getenv("FALKORDB_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Query.Timeout = d
		}
	}
	if v := os.Getenv("FALKORDB_THREAD_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.ThreadPoolSize = n
		}
	}
	if v := os.Getenv("FALKORDB_PLAN_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.PlanCacheSize = n
		}
	}
	if v := os.Getenv("FALKORDB_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("FALKORDB_MATRIX_SYNC_POLICY"); v != "" {
		c.Storage.MatrixSyncPolicy = v
	}
	if v := os.Getenv("FALKORDB_INDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.IndexBatchSize = n
		}
	}
	if v := os.Getenv("FALKORDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects nonsensical settings.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return errors.New("config: listen address must not be empty")
	}
	if c.Server.MaxQueuedQueries < 1 {
		return errors.New("config: max_queued_queries must be positive")
	}
	if c.Query.ThreadPoolSize < 1 {
		return errors.New("config: thread_pool_size must be positive")
	}
	if c.Query.PlanCacheSize < 1 {
		return errors.New("config: plan_cache_size must be positive")
	}
	if c.Storage.IndexBatchSize < 1 {
		return errors.New("config: index_batch_size must be positive")
	}
	switch c.Storage.MatrixSyncPolicy {
	case "flush-resize", "resize", "nop":
	default:
		return errors.Errorf("config: unknown matrix_sync_policy %q", c.Storage.MatrixSyncPolicy)
	}
	return nil
}
