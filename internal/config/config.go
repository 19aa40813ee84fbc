// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Storage StorageConfig `mapstructure:"storage"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// EngineConfig holds transformation engine configuration.
type EngineConfig struct {
	Target         string `mapstructure:"target"`           // Default target CRS
	ChainCacheSize int    `mapstructure:"chain_cache_size"` // Cached chains, 0 disables the cache
}

// BatchConfig holds batch processing configuration.
type BatchConfig struct {
	Source   string        `mapstructure:"source"`   // Source CRS for files without directive
	Target   string        `mapstructure:"target"`   // Target CRS, defaults to engine.target
	Interval time.Duration `mapstructure:"interval"` // Periodic runs, 0 disables them
	Cooldown time.Duration `mapstructure:"cooldown"` // Minimum time between triggered runs
}

// StorageConfig holds batch file storage configuration.
type StorageConfig struct {
	Type       string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath  string      `mapstructure:"local_path"`
	Extensions []string    `mapstructure:"extensions"`
	S3         S3Config    `mapstructure:"s3"`
	Azure      AzureConfig `mapstructure:"azure"`
	HTTP       HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// WatchConfig holds hot folder configuration. Only local storage can be
// watched.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// OutputConfig holds result sink configuration.
type OutputConfig struct {
	Sink   string `mapstructure:"sink"`   // csv, sqlite
	Path   string `mapstructure:"path"`   // SQLite database file
	Prefix string `mapstructure:"prefix"` // Key prefix of CSV result files
}

// ServerConfig holds the operations HTTP server configuration.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text, console
}

// Defaults sets the default configuration values.
func Defaults() {
	// Engine defaults
	viper.SetDefault("engine.target", "EPSG:4326")
	viper.SetDefault("engine.chain_cache_size", 64)

	// Batch defaults
	viper.SetDefault("batch.source", "EPSG:4326")
	viper.SetDefault("batch.interval", time.Duration(0))
	viper.SetDefault("batch.cooldown", 30*time.Second)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data/batches")
	viper.SetDefault("storage.extensions", []string{".csv", ".txt", ".xyz"})
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Watch defaults
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// Output defaults
	viper.SetDefault("output.sink", "csv")
	viper.SetDefault("output.path", "./data/results.db")

	// Server defaults
	viper.SetDefault("server.enabled", true)
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 9090)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	viper.SetEnvPrefix("GEOTRANS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/geotrans")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Batch.Target == "" {
		cfg.Batch.Target = cfg.Engine.Target
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Target == "" {
		return fmt.Errorf("engine target crs is required")
	}
	if c.Engine.ChainCacheSize < 0 {
		return fmt.Errorf("invalid chain cache size: %d", c.Engine.ChainCacheSize)
	}
	if c.Batch.Interval < 0 {
		return fmt.Errorf("invalid batch interval: %s", c.Batch.Interval)
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return fmt.Errorf("HTTP base URL is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	if c.Watch.Enabled && c.Storage.Type != "local" {
		return fmt.Errorf("watch requires local storage, got %s", c.Storage.Type)
	}

	switch c.Output.Sink {
	case "csv":
	case "sqlite":
		if c.Output.Path == "" {
			return fmt.Errorf("sqlite output path is required")
		}
		if c.Storage.Type == "local" && c.Watch.Enabled && within(c.Storage.LocalPath, c.Output.Path) {
			return fmt.Errorf("sqlite output %s must not be inside the watched directory %s",
				c.Output.Path, c.Storage.LocalPath)
		}
	default:
		return fmt.Errorf("unknown output sink: %s", c.Output.Sink)
	}

	switch c.Logging.Format {
	case "json", "text", "console":
	default:
		return fmt.Errorf("unknown logging format: %s", c.Logging.Format)
	}

	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// within reports whether path lies inside dir.
func within(dir, path string) bool {
	d, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
