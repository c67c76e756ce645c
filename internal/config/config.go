// Package config provides configuration loading and management for the
// publishing server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database *DatabaseConfig `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	Sync     SyncConfig      `yaml:"sync"`
	Upload   UploadConfig    `yaml:"upload"`
	Auth     AuthConfig      `yaml:"auth"`
}

// AuthConfig defines the static API token table: token to user ID. Sites
// are owned by user IDs, so tokens gate every owner-scoped route.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address, e.g. ":8080"
	Address string `yaml:"address"`
}

// DatabaseConfig defines PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslMode,omitempty"`

	// Password may be set inline, but PasswordFile and the
	// INKWELL_DB_PASSWORD environment variable take precedence.
	Password     string `yaml:"password,omitempty"`
	PasswordFile string `yaml:"passwordFile,omitempty"`

	MaxConns int `yaml:"maxConns,omitempty"`
}

// GetPassword resolves the database password using secure priority order:
// file, then environment, then inline config value.
func (c *DatabaseConfig) GetPassword() (string, error) {
	if c.PasswordFile != "" {
		data, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if env := os.Getenv("INKWELL_DB_PASSWORD"); env != "" {
		return env, nil
	}

	return c.Password, nil
}

// ConnString builds a pgx connection string from the configuration.
func (c *DatabaseConfig) ConnString() (string, error) {
	password, err := c.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, password, c.Database, sslMode,
	), nil
}

// URL builds a postgres:// connection URL, the form the migration tooling
// expects.
func (c *DatabaseConfig) URL() (string, error) {
	password, err := c.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String(), nil
}

// StorageConfig defines the object storage backend
type StorageConfig struct {
	// Type selects the backend: "s3" or "memory" (tests only)
	Type string `yaml:"type"`

	S3 *S3Config `yaml:"s3,omitempty"`
}

// S3Config defines S3-compatible object storage settings
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Endpoint overrides the AWS endpoint for S3-compatible stores
	// (MinIO, R2). Empty uses AWS.
	Endpoint string `yaml:"endpoint,omitempty"`

	// UsePathStyle forces path-style addressing, required by most
	// non-AWS S3 implementations.
	UsePathStyle bool `yaml:"usePathStyle,omitempty"`

	AccessKeyID     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`
}

// SyncConfig defines reconciliation worker settings
type SyncConfig struct {
	// Workers is the size of the reconciliation worker pool. Each worker
	// handles one site at a time; per-site ordering is enforced by the
	// sync lease, not by the pool.
	Workers int `yaml:"workers,omitempty"`

	// PollInterval is how often workers poll the job queue.
	PollInterval time.Duration `yaml:"pollInterval,omitempty"`

	// LeaseTTL bounds how long a crashed worker can leave a site stuck
	// in PENDING before the lease is reclaimable.
	LeaseTTL time.Duration `yaml:"leaseTTL,omitempty"`
}

// UploadConfig defines direct-publish batch limits and capability URL
// validity. Zero values fall back to defaults at validation time.
type UploadConfig struct {
	// MaxFiles caps the number of files in one batch request.
	MaxFiles int `yaml:"maxFiles,omitempty"`

	// MaxFileSize caps a single declared file size, in bytes.
	MaxFileSize int64 `yaml:"maxFileSize,omitempty"`

	// MaxTotalSize caps the summed declared size of a batch, in bytes.
	MaxTotalSize int64 `yaml:"maxTotalSize,omitempty"`

	// URLTTL is the validity window of issued capability URLs.
	URLTTL time.Duration `yaml:"urlTTL,omitempty"`
}

// Defaults observed across this domain.
const (
	DefaultMaxFiles     = 1000
	DefaultMaxFileSize  = 100 << 20 // 100MB
	DefaultMaxTotalSize = 500 << 20 // 500MB
	DefaultURLTTL       = time.Hour

	DefaultSyncWorkers  = 4
	DefaultPollInterval = 2 * time.Second
	DefaultLeaseTTL     = 15 * time.Minute
)

// Load builds and validates configuration from the given options.
func Load(opts ...Option) (*Config, error) {
	loader := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loader); err != nil {
			return nil, err
		}
	}

	if loader.path == "" {
		return nil, fmt.Errorf("no configuration source provided")
	}

	data, err := os.ReadFile(loader.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = DefaultSyncWorkers
	}
	if c.Sync.PollInterval == 0 {
		c.Sync.PollInterval = DefaultPollInterval
	}
	if c.Sync.LeaseTTL == 0 {
		c.Sync.LeaseTTL = DefaultLeaseTTL
	}
	if c.Upload.MaxFiles == 0 {
		c.Upload.MaxFiles = DefaultMaxFiles
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if c.Upload.MaxTotalSize == 0 {
		c.Upload.MaxTotalSize = DefaultMaxTotalSize
	}
	if c.Upload.URLTTL == 0 {
		c.Upload.URLTTL = DefaultURLTTL
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database port is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	switch c.Storage.Type {
	case "s3":
		if c.Storage.S3 == nil {
			return fmt.Errorf("s3 storage configuration is required")
		}
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	case "memory":
		// In-memory backend needs no settings; not for production use.
	case "":
		return fmt.Errorf("storage type is required")
	default:
		return fmt.Errorf("unrecognized storage type: %s", c.Storage.Type)
	}

	if c.Upload.MaxFileSize > c.Upload.MaxTotalSize {
		return fmt.Errorf("upload maxFileSize (%d) exceeds maxTotalSize (%d)",
			c.Upload.MaxFileSize, c.Upload.MaxTotalSize)
	}

	return nil
}
