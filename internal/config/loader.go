package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Frigate   FrigateConfig   `mapstructure:"frigate"   yaml:"frigate"`
	Export    ExportConfig    `mapstructure:"export"    yaml:"export"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"  yaml:"schedule,omitempty"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log,omitempty"`
}

// FrigateConfig holds connection settings for the Frigate API.
type FrigateConfig struct {
	APIURL  string        `mapstructure:"api_url" yaml:"api_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// ExportConfig contains export and relocation options.
type ExportConfig struct {
	// SourcePath is where Frigate writes finished export files on this host.
	SourcePath string `mapstructure:"source_path" yaml:"source_path"`
	// DestPath is the backup directory exports are moved into.
	DestPath string `mapstructure:"dest_path" yaml:"dest_path"`
	// DaysAgo selects which day to export when no explicit date is given.
	DaysAgo      int           `mapstructure:"days_ago"      yaml:"days_ago,omitempty"`
	Timezone     string        `mapstructure:"timezone"      yaml:"timezone,omitempty"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval,omitempty"`
	MaxWait      time.Duration `mapstructure:"max_wait"      yaml:"max_wait,omitempty"`
	Workers      int           `mapstructure:"workers"       yaml:"workers,omitempty"`
	Compress     bool          `mapstructure:"compress"      yaml:"compress,omitempty"`
}

// RetentionConfig specifies how long backups are kept.
type RetentionConfig struct {
	MaxAgeDays int `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// ScheduleConfig configures the optional daemon mode.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" yaml:"cron,omitempty"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper and
// unmarshals it into the Config struct. Defaults are applied for every
// optional key.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("frigate.timeout", 30*time.Second)
	v.SetDefault("export.days_ago", 1)
	v.SetDefault("export.timezone", "Asia/Shanghai")
	v.SetDefault("export.poll_interval", 30*time.Second)
	v.SetDefault("export.max_wait", 2*time.Hour)
	v.SetDefault("export.workers", 4)
	v.SetDefault("retention.max_age_days", 30)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Frigate.APIURL == "" {
		return fmt.Errorf("%w: frigate.api_url is required", ErrValidateConfig)
	}
	if c.Export.SourcePath == "" {
		return fmt.Errorf("%w: export.source_path is required", ErrValidateConfig)
	}
	if c.Export.DestPath == "" {
		return fmt.Errorf("%w: export.dest_path is required", ErrValidateConfig)
	}
	if c.Export.DaysAgo < 0 {
		return fmt.Errorf("%w: export.days_ago must not be negative", ErrValidateConfig)
	}
	if c.Export.PollInterval <= 0 {
		return fmt.Errorf("%w: export.poll_interval must be positive", ErrValidateConfig)
	}
	if c.Export.MaxWait <= c.Export.PollInterval {
		return fmt.Errorf("%w: export.max_wait must exceed export.poll_interval", ErrValidateConfig)
	}
	if c.Export.Workers <= 0 {
		return fmt.Errorf("%w: export.workers must be positive", ErrValidateConfig)
	}
	if c.Retention.MaxAgeDays <= 0 {
		return fmt.Errorf("%w: retention.max_age_days must be positive", ErrValidateConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrValidateConfig, c.Export.Timezone)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Export.Timezone)
}
