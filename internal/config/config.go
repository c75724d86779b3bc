// Package config loads the model server's configuration from an
// optional TOML file, a .env overlay, and process environment
// variables, in that order of increasing precedence — the same
// layering the teacher used (godotenv.Load before reading os.Getenv),
// extended with a TOML base file per spec §6 (store/poller/worker
// tuning belongs in a checked-in file, not a wall of env vars).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// StoreKind selects which artifact store driver backs the registry.
type StoreKind string

const (
	StoreLocal StoreKind = "local"
	StoreS3    StoreKind = "s3"
	StoreMinIO StoreKind = "minio"
	StoreAzure StoreKind = "azure"
)

// Config is the full process configuration (spec §6).
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Poller  PollerConfig  `toml:"poller"`
	Worker  WorkerConfig  `toml:"worker"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	GRPCPort int    `toml:"grpc_port"`
}

// StoreConfig configures exactly one artifact store backend, selected
// by Kind; only the fields relevant to that Kind need be set (spec
// §4.D).
type StoreConfig struct {
	Kind StoreKind `toml:"kind"`

	// local
	Dir string `toml:"dir"`

	// s3 / minio
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`

	// azure
	Account   string `toml:"account"`
	Container string `toml:"container"`
}

type PollerConfig struct {
	Interval time.Duration `toml:"interval"`
}

// WorkerConfig bounds the CPU-bound predict worker pool (spec §5
// "async/CPU-pool boundary").
type WorkerConfig struct {
	Count int `toml:"count"`
}

type LoggingConfig struct {
	Level          string `toml:"level"`
	SyslogEnabled  bool   `toml:"syslog_enabled"`
	SyslogNetwork  string `toml:"syslog_network"`
	SyslogAddress  string `toml:"syslog_address"`
	SyslogTag      string `toml:"syslog_tag"`
	SyslogFacility string `toml:"syslog_facility"`
	LogFile        string `toml:"log_file"`
}

// Load reads tomlPath if it exists (a missing file is not an error —
// every field then falls back to its default/env value), overlays a
// .env file if present, then applies environment variable overrides,
// and finally validates the result.
func Load(tomlPath string) (*Config, error) {
	cfg := defaults()

	if tomlPath != "" {
		if _, err := os.Stat(tomlPath); err == nil {
			if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %q: %w", tomlPath, err)
			}
		}
	}

	godotenv.Load()
	applyEnvOverrides(cfg)

	return cfg, cfg.Validate()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			GRPCPort: 9090,
		},
		Store: StoreConfig{
			Kind: StoreLocal,
			Dir:  "/app/models",
		},
		Poller: PollerConfig{
			Interval: 30 * time.Second,
		},
		Worker: WorkerConfig{
			Count: 4,
		},
		Logging: LoggingConfig{
			Level:          "info",
			SyslogTag:      "modelserver",
			SyslogFacility: "LOG_LOCAL0",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.GRPCPort = getEnvAsInt("GRPC_PORT", cfg.Server.GRPCPort)

	cfg.Store.Kind = StoreKind(getEnv("STORE_KIND", string(cfg.Store.Kind)))
	cfg.Store.Dir = getEnv("MODEL_DIR", cfg.Store.Dir)
	cfg.Store.Bucket = getEnv("STORE_BUCKET", cfg.Store.Bucket)
	cfg.Store.Region = getEnv("STORE_REGION", cfg.Store.Region)
	cfg.Store.Endpoint = getEnv("STORE_ENDPOINT", cfg.Store.Endpoint)
	cfg.Store.AccessKey = getEnv("STORE_ACCESS_KEY", cfg.Store.AccessKey)
	cfg.Store.SecretKey = getEnv("STORE_SECRET_KEY", cfg.Store.SecretKey)
	cfg.Store.UsePathStyle = getEnvAsBool("STORE_USE_PATH_STYLE", cfg.Store.UsePathStyle)
	cfg.Store.Account = getEnv("STORE_ACCOUNT", cfg.Store.Account)
	cfg.Store.Container = getEnv("STORE_CONTAINER", cfg.Store.Container)

	cfg.Poller.Interval = getEnvAsDuration("POLL_INTERVAL", cfg.Poller.Interval)
	cfg.Worker.Count = getEnvAsInt("WORKER_COUNT", cfg.Worker.Count)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.SyslogEnabled = getEnvAsBool("SYSLOG_ENABLED", cfg.Logging.SyslogEnabled)
	cfg.Logging.SyslogNetwork = getEnv("SYSLOG_NETWORK", cfg.Logging.SyslogNetwork)
	cfg.Logging.SyslogAddress = getEnv("SYSLOG_ADDRESS", cfg.Logging.SyslogAddress)
	cfg.Logging.SyslogTag = getEnv("SYSLOG_TAG", cfg.Logging.SyslogTag)
	cfg.Logging.SyslogFacility = getEnv("SYSLOG_FACILITY", cfg.Logging.SyslogFacility)
	cfg.Logging.LogFile = getEnv("LOG_FILE", cfg.Logging.LogFile)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreLocal:
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir must be set for a local store")
		}
	case StoreS3, StoreMinIO:
		if c.Store.Bucket == "" {
			return fmt.Errorf("store.bucket must be set for an s3/minio store")
		}
	case StoreAzure:
		if c.Store.Account == "" || c.Store.Container == "" {
			return fmt.Errorf("store.account and store.container must be set for an azure store")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535")
	}
	if c.Server.GRPCPort < 1 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port must be in 1..65535")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return duration
}
