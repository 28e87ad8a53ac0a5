package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultDatabaseName, cfg.Database.Name)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.False(t, cfg.Database.SkipMalformed)
	assert.False(t, cfg.Index.Enabled)
	assert.Equal(t, "sqlite", cfg.Index.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Index.Database.SQLite.Path)
	assert.Equal(t, 5432, cfg.Index.Database.Postgres.Port)
	assert.Equal(t, DefaultUploadPrefix, cfg.Upload.S3.Prefix)
	assert.Equal(t, DefaultUploadConcurrency, cfg.Upload.S3.Concurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configContent := `
global:
  log_level: info
database:
  name: guide
  path: /original/path
upload:
  s3:
    bucket: original-bucket
`

	configPath := writeConfig(t, configContent)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "guide", cfg.Database.Name)
				assert.Equal(t, "/original/path", cfg.Database.Path)
				assert.Equal(t, "original-bucket", cfg.Upload.S3.Bucket)
			},
		},
		{
			name: "string override - log_level",
			envVars: map[string]string{
				"BEAMDUMP_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "string override - database path",
			envVars: map[string]string{
				"BEAMDUMP_DATABASE_PATH": "/tmp/dumps",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/dumps", cfg.Database.Path)
				assert.Equal(t, "guide", cfg.Database.Name)
			},
		},
		{
			name: "boolean override - skip_malformed",
			envVars: map[string]string{
				"BEAMDUMP_DATABASE_SKIP_MALFORMED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Database.SkipMalformed)
			},
		},
		{
			name: "nested override - index sqlite path",
			envVars: map[string]string{
				"BEAMDUMP_INDEX_ENABLED":              "true",
				"BEAMDUMP_INDEX_DATABASE_SQLITE_PATH": "/var/lib/beamdump.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Index.Enabled)
				assert.Equal(t, "/var/lib/beamdump.db", cfg.Index.Database.SQLite.Path)
			},
		},
		{
			name: "integer override - upload concurrency",
			envVars: map[string]string{
				"BEAMDUMP_UPLOAD_S3_CONCURRENCY": "16",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 16, cfg.Upload.S3.Concurrency)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
database:
  name: base
  path: /base
index:
  enabled: true
  database:
    driver: sqlite
    sqlite:
      path: /base/index.db
`)
	override := writeConfig(t, `
database:
  path: /override
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "base", cfg.Database.Name)
	assert.Equal(t, "/override", cfg.Database.Path)
	assert.True(t, cfg.Index.Enabled)
	assert.Equal(t, "/base/index.db", cfg.Index.Database.SQLite.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Global.LogLevel = "loud" },
			wantErr: "global.log_level",
		},
		{
			name:    "name with separator",
			mutate:  func(c *Config) { c.Database.Name = "a/b" },
			wantErr: "path separators",
		},
		{
			name: "unknown index driver",
			mutate: func(c *Config) {
				c.Index.Enabled = true
				c.Index.Database.Driver = "mysql"
			},
			wantErr: "unsupported driver",
		},
		{
			name: "postgres without host",
			mutate: func(c *Config) {
				c.Index.Enabled = true
				c.Index.Database.Driver = "postgres"
				c.Index.Database.Postgres.Host = ""
			},
			wantErr: "postgres.host",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Upload.S3.Enabled = true },
			wantErr: "upload.s3.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRedactedYAML(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Upload.S3.SecretAccessKey = "hunter2"
	cfg.Index.Database.Postgres.Password = "s3cret"

	data, err := cfg.Redacted().YAML()
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "name: beam_dump")

	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Upload.S3.SecretAccessKey)
}
