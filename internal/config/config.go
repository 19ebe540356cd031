package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// TimestampLayout is the artifact timestamp format, fixed by the on-disk
// layout <name>_<YYYYMMDD_HHMMSS>.tar.gz.
const TimestampLayout = "20060102_150405"

// Config is the top-level configuration. It is loaded once at job start and
// passed by value into every component; nothing re-reads it mid-job.
type Config struct {
	Include []string `mapstructure:"include" yaml:"include,omitempty"`

	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Fanout    FanoutConfig    `mapstructure:"fanout"    yaml:"fanout"`
	Vault     VaultConfig     `mapstructure:"vault"     yaml:"vault"`

	Sources      SourcesConfig      `mapstructure:"sources"      yaml:"sources"`
	Destinations DestinationsConfig `mapstructure:"destinations" yaml:"destinations"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	// Root is the local catalog directory ($BACKUP_ROOT).
	Root    string        `mapstructure:"root"    yaml:"root"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RetentionConfig is the GFS policy: how many daily, weekly and monthly
// buckets to keep. Weekly and monthly default to zero, which degrades to
// daily-only pruning.
type RetentionConfig struct {
	KeepDaily   uint `mapstructure:"keep_daily"   yaml:"keep_daily"`
	KeepWeekly  uint `mapstructure:"keep_weekly"  yaml:"keep_weekly"`
	KeepMonthly uint `mapstructure:"keep_monthly" yaml:"keep_monthly"`
}

// FanoutConfig tunes the destination sync stage.
type FanoutConfig struct {
	Workers            int           `mapstructure:"workers"             yaml:"workers"`
	DestinationTimeout time.Duration `mapstructure:"destination_timeout" yaml:"destination_timeout"`
	MaxRetries         uint64        `mapstructure:"max_retries"         yaml:"max_retries"`
	RetryBase          time.Duration `mapstructure:"retry_base"          yaml:"retry_base"`
}

// VaultConfig holds connection settings for HashiCorp Vault. Optional:
// sources and destinations with inline credentials never touch Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// SourcesConfig groups the configured backup sources by kind.
type SourcesConfig struct {
	Files         []FileSource     `mapstructure:"files"          yaml:"files,omitempty"`
	MySQL         []DatabaseSource `mapstructure:"mysql"          yaml:"mysql,omitempty"`
	Postgres      []DatabaseSource `mapstructure:"postgres"       yaml:"postgres,omitempty"`
	DockerVolumes []VolumeSource   `mapstructure:"docker_volumes" yaml:"docker_volumes,omitempty"`
}

// FileSource is a directory tree backed up as-is.
type FileSource struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// DatabaseSource describes one database to dump. Password may be inline or
// resolved from the Vault KV path when VaultPath is set.
type DatabaseSource struct {
	Name      string `mapstructure:"name"       yaml:"name"`
	Host      string `mapstructure:"host"       yaml:"host,omitempty"`
	Port      string `mapstructure:"port"       yaml:"port,omitempty"`
	Database  string `mapstructure:"database"   yaml:"database"`
	Username  string `mapstructure:"username"   yaml:"username,omitempty"`
	Password  string `mapstructure:"password"   yaml:"password,omitempty"`
	VaultPath string `mapstructure:"vault_path" yaml:"vault_path,omitempty"`
}

// VolumeSource is a named docker volume.
type VolumeSource struct {
	Name   string `mapstructure:"name"   yaml:"name"`
	Volume string `mapstructure:"volume" yaml:"volume"`
}

// DestinationsConfig groups fan-out destinations by kind.
type DestinationsConfig struct {
	Local  []LocalDestination  `mapstructure:"local"  yaml:"local,omitempty"`
	Remote []RemoteDestination `mapstructure:"remote" yaml:"remote,omitempty"`
	S3     []S3Destination     `mapstructure:"s3"     yaml:"s3,omitempty"`
}

// LocalDestination is a directory on this host.
type LocalDestination struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RemoteDestination is an rsync-over-SSH target.
type RemoteDestination struct {
	Host string `mapstructure:"host" yaml:"host"`
	User string `mapstructure:"user" yaml:"user"`
	Path string `mapstructure:"path" yaml:"path"`
}

// S3Destination is an S3-compatible bucket. Keys may be inline or resolved
// from the Vault KV path when VaultPath is set.
type S3Destination struct {
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint"`
	Region    string `mapstructure:"region"     yaml:"region,omitempty"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket"`
	Prefix    string `mapstructure:"prefix"     yaml:"prefix,omitempty"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key,omitempty"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key,omitempty"`
	VaultPath string `mapstructure:"vault_path" yaml:"vault_path,omitempty"`
	Insecure  bool   `mapstructure:"insecure"   yaml:"insecure,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper, merges
// any included files, applies defaults and the BACKUP_ROOT environment
// override, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("backup.timeout", 30*time.Minute)
	v.SetDefault("retention.keep_daily", 7)
	v.SetDefault("fanout.workers", 4)
	v.SetDefault("fanout.destination_timeout", 300*time.Second)
	v.SetDefault("fanout.max_retries", 3)
	v.SetDefault("fanout.retry_base", 2*time.Second)

	if err := v.BindEnv("backup.root", "BACKUP_ROOT"); err != nil {
		return fmt.Errorf("%w: bind BACKUP_ROOT: %v", ErrLoadConfig, err)
	}

	// Read base configuration
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Backup.Root == "" {
		return fmt.Errorf("%w: backup.root (or BACKUP_ROOT) must be set", ErrValidateConfig)
	}
	if c.Fanout.Workers < 1 {
		return fmt.Errorf("%w: fanout.workers must be >= 1", ErrValidateConfig)
	}
	for _, fs := range c.Sources.Files {
		if fs.Name == "" || fs.Path == "" {
			return fmt.Errorf("%w: file source needs name and path", ErrValidateConfig)
		}
	}
	for _, db := range append(append([]DatabaseSource{}, c.Sources.MySQL...), c.Sources.Postgres...) {
		if db.Name == "" || db.Database == "" {
			return fmt.Errorf("%w: database source needs name and database", ErrValidateConfig)
		}
	}
	for _, vs := range c.Sources.DockerVolumes {
		if vs.Name == "" || vs.Volume == "" {
			return fmt.Errorf("%w: docker volume source needs name and volume", ErrValidateConfig)
		}
	}
	for _, s3 := range c.Destinations.S3 {
		if s3.Endpoint == "" || s3.Bucket == "" {
			return fmt.Errorf("%w: s3 destination needs endpoint and bucket", ErrValidateConfig)
		}
	}
	return nil
}
