// Package config provides unified configuration for the Tessera index
// service and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend selects the session backend implementation. The backend is an
// explicit capability chosen at startup and resolved through a registry;
// there is no dynamic class lookup.
type Backend string

const (
	BackendDefault  Backend = "default"
	BackendExtended Backend = "extended"
)

// Config holds the full Tessera configuration.
type Config struct {
	// DataDir is the base directory for all local state
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Backend selects the session backend: default, extended
	Backend Backend `json:"backend" yaml:"backend"`

	// Build configuration
	Build BuildConfig `json:"build" yaml:"build"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// BuildConfig holds index build configuration.
type BuildConfig struct {
	// Parallelism is the number of concurrent build tasks (0 = GOMAXPROCS)
	Parallelism int `json:"parallelism" yaml:"parallelism"`

	// StatsKinds lists the statistics kinds written into every segment
	StatsKinds []string `json:"stats_kinds" yaml:"stats_kinds"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/tessera",
		Backend: BackendDefault,
		Build: BuildConfig{
			Parallelism: 0,
			StatsKinds:  []string{"minmax"},
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/tessera"
	}
	if c.Backend == "" {
		c.Backend = BackendDefault
	}
	if len(c.Build.StatsKinds) == 0 {
		c.Build.StatsKinds = []string{"minmax"}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// CatalogPath returns the path to the catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Backend {
	case BackendDefault, BackendExtended:
	default:
		return fmt.Errorf("invalid backend: %s (must be default or extended)", c.Backend)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Build.Parallelism < 0 {
		return fmt.Errorf("build.parallelism must be >= 0, got %d", c.Build.Parallelism)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TESSERA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TESSERA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TESSERA_BACKEND"); v != "" {
		cfg.Backend = Backend(v)
	}
	if v := os.Getenv("TESSERA_BUILD_PARALLELISM"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Build.Parallelism)
	}
	if v := os.Getenv("TESSERA_BUILD_STATS_KINDS"); v != "" {
		cfg.Build.StatsKinds = strings.Split(v, ",")
	}
	if v := os.Getenv("TESSERA_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("TESSERA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("TESSERA_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("TESSERA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("TESSERA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("TESSERA_S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
