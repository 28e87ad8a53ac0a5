package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes environment variable overrides, e.g.
	// BEAMDUMP_DATABASE_PATH overrides database.path.
	EnvPrefix = "BEAMDUMP"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabaseName is the default database name; its directory is
	// <path>/<name>_db.
	DefaultDatabaseName = "beam_dump"

	// DefaultDatabasePath is the default directory holding the database.
	DefaultDatabasePath = "."

	// DefaultIndexDriver is the default SQL driver for the index mirror.
	DefaultIndexDriver = "sqlite"

	// DefaultSQLitePath is the default SQLite file for the index mirror.
	DefaultSQLitePath = "beamdump-index.db"

	// DefaultUploadPrefix is the default S3 key prefix.
	DefaultUploadPrefix = "beamdump"

	// DefaultUploadConcurrency is the default number of parallel uploads.
	DefaultUploadConcurrency = 4
)

// Config is the root configuration for beamdump.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	Upload   UploadConfig   `yaml:"upload" mapstructure:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig locates the dump database.
type DatabaseConfig struct {
	Name          string `yaml:"name" mapstructure:"name"`
	Path          string `yaml:"path" mapstructure:"path"`
	SkipMalformed bool   `yaml:"skip_malformed" mapstructure:"skip_malformed"`
	// Owner is an optional "UID:GID" applied to created folders and records.
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// IndexConfig configures the SQL mirror of the database.
type IndexConfig struct {
	Enabled  bool                `yaml:"enabled" mapstructure:"enabled"`
	Database IndexDatabaseConfig `yaml:"database" mapstructure:"database"`
}

// IndexDatabaseConfig contains database connection settings.
type IndexDatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// UploadConfig configures copying the database to remote storage.
type UploadConfig struct {
	S3 S3UploadConfig `yaml:"s3" mapstructure:"s3"`
}

// S3UploadConfig contains S3-compatible storage settings.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// setDefaults registers every key with viper. Keys unknown to viper are not
// picked up from the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("database.name", DefaultDatabaseName)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.skip_malformed", false)
	v.SetDefault("database.owner", "")

	v.SetDefault("index.enabled", false)
	v.SetDefault("index.database.driver", DefaultIndexDriver)
	v.SetDefault("index.database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("index.database.postgres.host", "localhost")
	v.SetDefault("index.database.postgres.port", 5432)
	v.SetDefault("index.database.postgres.user", "")
	v.SetDefault("index.database.postgres.password", "")
	v.SetDefault("index.database.postgres.database", "beamdump")
	v.SetDefault("index.database.postgres.ssl_mode", "disable")

	v.SetDefault("upload.s3.enabled", false)
	v.SetDefault("upload.s3.endpoint_url", "")
	v.SetDefault("upload.s3.region", "")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.prefix", DefaultUploadPrefix)
	v.SetDefault("upload.s3.access_key_id", "")
	v.SetDefault("upload.s3.secret_access_key", "")
	v.SetDefault("upload.s3.force_path_style", false)
	v.SetDefault("upload.s3.storage_class", "")
	v.SetDefault("upload.s3.acl", "")
	v.SetDefault("upload.s3.concurrency", DefaultUploadConcurrency)
}

// Load reads and merges the configuration files in order, later files
// overriding earlier ones, then applies BEAMDUMP_* environment overrides.
// With no paths only defaults and the environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}

	if err := dec.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills values that were explicitly set empty.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Database.Name == "" {
		c.Database.Name = DefaultDatabaseName
	}

	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	if c.Index.Database.Driver == "" {
		c.Index.Database.Driver = DefaultIndexDriver
	}

	if c.Upload.S3.Prefix == "" {
		c.Upload.S3.Prefix = DefaultUploadPrefix
	}

	if c.Upload.S3.Concurrency <= 0 {
		c.Upload.S3.Concurrency = DefaultUploadConcurrency
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("global.log_level: %w", err)
	}

	if strings.ContainsAny(c.Database.Name, `/\`) {
		return fmt.Errorf("database.name %q must not contain path separators", c.Database.Name)
	}

	if c.Index.Enabled {
		if err := c.Index.Database.validate(); err != nil {
			return fmt.Errorf("index.database: %w", err)
		}
	}

	if c.Upload.S3.Enabled && c.Upload.S3.Bucket == "" {
		return fmt.Errorf("upload.s3.bucket is required when s3 upload is enabled")
	}

	return nil
}

func (d *IndexDatabaseConfig) validate() error {
	switch d.Driver {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case "postgres":
		if d.Postgres.Host == "" {
			return fmt.Errorf("postgres.host is required")
		}

		if d.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported driver %q (use \"sqlite\" or \"postgres\")", d.Driver)
	}

	return nil
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	out := *c

	if out.Index.Database.Postgres.Password != "" {
		out.Index.Database.Postgres.Password = "***"
	}

	if out.Upload.S3.SecretAccessKey != "" {
		out.Upload.S3.SecretAccessKey = "***"
	}

	return &out
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}

	return data, nil
}
