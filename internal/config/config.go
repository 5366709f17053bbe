package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soochol/datafiles/internal/storage"
)

// Config holds the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Content  ContentConfig  `yaml:"content"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database connection settings. An empty URL keeps
// records in memory only.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects and configures the content store.
type StorageConfig struct {
	Type     string           `yaml:"type"` // "local" or "s3"
	Dir      string           `yaml:"dir"`
	Compress bool             `yaml:"compress"`
	S3       storage.S3Config `yaml:"s3"`
}

// ContentConfig controls how stored content is streamed.
type ContentConfig struct {
	DelimitedExtensions []string `yaml:"delimited_extensions"`
}

// SweeperConfig holds the orphan blob sweeper schedule. Empty disables it.
type SweeperConfig struct {
	Schedule string `yaml:"schedule"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxUploadBytes:  512 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Type: "local",
			Dir:  "data/files",
		},
		Content: ContentConfig{
			DelimitedExtensions: []string{".csv"},
		},
		Sweeper: SweeperConfig{
			Schedule: "@hourly",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and deployment paths from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATAFILES_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATAFILES_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("DATAFILES_S3_ACCESS_KEY"); v != "" {
		c.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("DATAFILES_S3_SECRET_KEY"); v != "" {
		c.Storage.S3.SecretKey = v
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Type) {
	case "local":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for local storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	return nil
}
