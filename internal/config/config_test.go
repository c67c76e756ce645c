package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
server:
  address: ":9090"
database:
  host: localhost
  port: 5432
  user: inkwell
  database: inkwell
  password: secret
  sslMode: disable
storage:
  type: s3
  s3:
    bucket: inkwell-sites
    region: us-east-1
sync:
  workers: 8
  pollInterval: 1s
upload:
  maxFiles: 500
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, validConfig)
	cfg, err := Load(WithConfigPath(path))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "inkwell-sites", cfg.Storage.S3.Bucket)
	assert.Equal(t, 8, cfg.Sync.Workers)
	assert.Equal(t, time.Second, cfg.Sync.PollInterval)

	// Explicit value kept, unset values defaulted
	assert.Equal(t, 500, cfg.Upload.MaxFiles)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Upload.MaxFileSize)
	assert.Equal(t, int64(DefaultMaxTotalSize), cfg.Upload.MaxTotalSize)
	assert.Equal(t, DefaultURLTTL, cfg.Upload.URLTTL)
	assert.Equal(t, DefaultLeaseTTL, cfg.Sync.LeaseTTL)
}

func TestLoadValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing database",
			content: "storage:\n  type: memory\n",
			wantErr: "database configuration is required",
		},
		{
			name: "missing storage type",
			content: `
database:
  host: localhost
  port: 5432
  user: u
  database: d
`,
			wantErr: "storage type is required",
		},
		{
			name: "unknown storage type",
			content: `
database:
  host: localhost
  port: 5432
  user: u
  database: d
storage:
  type: carrier-pigeon
`,
			wantErr: "unrecognized storage type",
		},
		{
			name: "s3 without bucket",
			content: `
database:
  host: localhost
  port: 5432
  user: u
  database: d
storage:
  type: s3
  s3:
    region: us-east-1
`,
			wantErr: "s3 bucket is required",
		},
		{
			name: "per-file cap above total cap",
			content: `
database:
  host: localhost
  port: 5432
  user: u
  database: d
storage:
  type: memory
upload:
  maxFileSize: 1000
  maxTotalSize: 500
`,
			wantErr: "exceeds maxTotalSize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.content)
			_, err := Load(WithConfigPath(path))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")))
	require.Error(t, err)
}

func TestLoadNoSource(t *testing.T) {
	t.Parallel()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration source")
}

func TestDatabasePasswordPriority(t *testing.T) {
	passwordFile := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(passwordFile, []byte("from-file\n"), 0600))

	cfg := &DatabaseConfig{Password: "inline", PasswordFile: passwordFile}
	pw, err := cfg.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-file", pw)

	cfg = &DatabaseConfig{Password: "inline"}
	t.Setenv("INKWELL_DB_PASSWORD", "from-env")
	pw, err = cfg.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)

	t.Setenv("INKWELL_DB_PASSWORD", "")
	pw, err = cfg.GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "inline", pw)
}

func TestConnString(t *testing.T) {
	t.Parallel()

	cfg := &DatabaseConfig{
		Host: "db.internal", Port: 5432, User: "inkwell",
		Database: "inkwell", Password: "pw", SSLMode: "disable",
	}
	conn, err := cfg.ConnString()
	require.NoError(t, err)
	assert.Equal(t,
		"host=db.internal port=5432 user=inkwell password=pw dbname=inkwell sslmode=disable",
		conn)
}
