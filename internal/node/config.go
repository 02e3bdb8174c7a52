// Package node implements the Node Worker (spec.md §4.6): a long-running
// process that polls Hive for an assignment, syncs the job's data files,
// runs the Search Engine, and reports improvements back.
package node

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is Node's service configuration, loaded the same layered way as
// Hive's (see internal/hive/config.go): YAML file over defaults, then
// environment overrides (KEYFORGE_DATA_DIR, HIVE_SECRET, KEYFORGE_NODE_ID
// per spec.md §6).
type Config struct {
	HiveAddr         string        `yaml:"hive_addr"`
	NodeId           string        `yaml:"node_id"`
	DataDir          string        `yaml:"data_dir"`
	Secret           string        `yaml:"secret"`
	IdlePollInterval time.Duration `yaml:"idle_poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns Node's out-of-the-box configuration, with the
// connect/overall deadlines spec.md §5 specifies (30s overall, 5s connect).
func DefaultConfig() Config {
	return Config{
		HiveAddr:          "http://localhost:8080",
		DataDir:           "./node-cache",
		IdlePollInterval:  10 * time.Second,
		HeartbeatInterval: 20 * time.Second,
		ConnectTimeout:    5 * time.Second,
		RequestTimeout:    30 * time.Second,
	}
}

// Load reads path (if present) over DefaultConfig(), then applies
// environment overrides and assigns a fresh node id if none is configured.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("KEYFORGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("HIVE_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("KEYFORGE_NODE_ID"); v != "" {
		cfg.NodeId = v
	}
	if cfg.NodeId == "" {
		cfg.NodeId = uuid.New().String()
	}

	return cfg, nil
}
