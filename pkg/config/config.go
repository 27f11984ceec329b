package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level spineldbd configuration, loaded from a YAML file
// the way the teacher's `apply` command decodes a YAML resource into a
// tagged struct.
type Config struct {
	BindAddr   string `yaml:"bind_addr"`
	Port       int    `yaml:"port"`
	DataDir    string `yaml:"data_dir"`
	Databases  int    `yaml:"databases"`
	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`

	Persistence PersistenceConfig `yaml:"persistence"`
	Replication ReplicationConfig `yaml:"replication"`
	Cluster     ClusterConfig     `yaml:"cluster"`
	ACL         ACLConfig         `yaml:"acl"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	MaxMemory   MaxMemoryConfig   `yaml:"maxmemory"`
}

// PersistenceConfig controls AOF and snapshotting.
type PersistenceConfig struct {
	AOFEnabled      bool          `yaml:"aof_enabled"`
	AOFFsync        string        `yaml:"aof_fsync"` // always|everysec|no
	SnapshotEnabled bool          `yaml:"snapshot_enabled"`
	SnapshotEvery   time.Duration `yaml:"snapshot_every"`
}

// ReplicationConfig controls this node's role as master or replica.
type ReplicationConfig struct {
	ReplicaOf        string        `yaml:"replica_of"`
	BacklogSize      int           `yaml:"backlog_size"`
	ReplicaReadOnly  bool          `yaml:"replica_read_only"`
	ReplPingInterval time.Duration `yaml:"repl_ping_interval"`
}

// ClusterConfig controls CLUSTER mode.
type ClusterConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ConfigFile     string `yaml:"config_file"`
	NodeTimeout    time.Duration `yaml:"node_timeout"`
	AnnounceAddr   string `yaml:"announce_addr"`
}

// ACLConfig points at the persisted user table.
type ACLConfig struct {
	File string `yaml:"file"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MaxMemoryConfig controls the eviction policy.
type MaxMemoryConfig struct {
	Bytes  int64  `yaml:"bytes"`
	Policy string `yaml:"policy"` // noeviction|allkeys-lru|volatile-lru|allkeys-random|volatile-random|volatile-ttl
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		BindAddr:  "0.0.0.0",
		Port:      6380,
		DataDir:   "./data",
		Databases: 16,
		LogLevel:  "info",
		Persistence: PersistenceConfig{
			AOFEnabled:      true,
			AOFFsync:        "everysec",
			SnapshotEnabled: true,
			SnapshotEvery:   5 * time.Minute,
		},
		Replication: ReplicationConfig{
			BacklogSize:      1 << 20,
			ReplPingInterval: 10 * time.Second,
		},
		Cluster: ClusterConfig{
			NodeTimeout: 15 * time.Second,
		},
		MaxMemory: MaxMemoryConfig{
			Policy: "noeviction",
		},
	}
}

// Load reads and parses a YAML configuration file, starting from Default()
// so unset fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
