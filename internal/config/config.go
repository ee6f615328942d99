package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/update"
)

// Config holds all application configuration
type Config struct {
	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Image locations
	WorkDir    string `mapstructure:"work-dir"`
	SourceDir  string `mapstructure:"source-dir"`
	StagingDir string `mapstructure:"staging-dir"`
	S3Region   string `mapstructure:"s3-region"`

	// Target DRC (0 or 1)
	Destination int `mapstructure:"destination"`

	// Image limits
	MaxImageSize int64 `mapstructure:"max-image-size"`

	// FSM configuration
	FSMMaxRetries int `mapstructure:"fsm-max-retries"`

	// Update protocol timings
	PollInterval       time.Duration `mapstructure:"poll-interval"`
	EepromTimeout      time.Duration `mapstructure:"eeprom-timeout"`
	AbortTimeout       time.Duration `mapstructure:"abort-timeout"`
	ReactivateTimeout  time.Duration `mapstructure:"reactivate-timeout"`
	ReactivateInterval time.Duration `mapstructure:"reactivate-interval"`

	// Observability
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`

	// Simulated DRC
	SimVersion uint32        `mapstructure:"sim-version"`
	SimStep    time.Duration `mapstructure:"sim-step"`
}

// SetDefaults registers the default of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sqlite-path", ".artifacts/journal.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm")
	v.SetDefault("work-dir", "/tmp/drcflash")
	v.SetDefault("source-dir", ".")
	v.SetDefault("staging-dir", "/tmp/drcflash/staging")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("destination", 0)
	v.SetDefault("max-image-size", 64*1024*1024)
	v.SetDefault("fsm-max-retries", 5)
	v.SetDefault("poll-interval", drc.DefaultPollInterval)
	v.SetDefault("eeprom-timeout", drc.DefaultEepromTimeout)
	v.SetDefault("abort-timeout", drc.DefaultAbortTimeout)
	v.SetDefault("reactivate-timeout", drc.DefaultReactivateTimeout)
	v.SetDefault("reactivate-interval", drc.DefaultReactivateInterval)
	v.SetDefault("metrics-addr", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("sim-version", 0x190c0117)
	v.SetDefault("sim-step", 300*time.Millisecond)
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load on a specific viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (DRCFLASH_SQLITE_PATH, etc.)
	v.SetEnvPrefix("DRCFLASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.drcflash")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work-dir cannot be empty")
	}
	if c.StagingDir == "" {
		return fmt.Errorf("staging-dir cannot be empty")
	}
	if c.Destination != 0 && c.Destination != 1 {
		return fmt.Errorf("destination must be 0 or 1, got %d", c.Destination)
	}
	if c.MaxImageSize <= 0 {
		return fmt.Errorf("max-image-size must be positive")
	}
	if c.FSMMaxRetries <= 0 {
		return fmt.Errorf("fsm-max-retries must be positive")
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{"poll-interval", c.PollInterval},
		{"eeprom-timeout", c.EepromTimeout},
		{"abort-timeout", c.AbortTimeout},
		{"reactivate-timeout", c.ReactivateTimeout},
		{"reactivate-interval", c.ReactivateInterval},
		{"sim-step", c.SimStep},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.key)
		}
	}
	return nil
}

// DRC returns the configured destination
func (c *Config) DRC() drc.Destination {
	return drc.DestinationDRC0 + drc.Destination(c.Destination)
}

// Session returns the update session timings
func (c *Config) Session() update.Config {
	return update.Config{
		Destination:        c.DRC(),
		PollInterval:       c.PollInterval,
		EepromTimeout:      c.EepromTimeout,
		AbortTimeout:       c.AbortTimeout,
		ReactivateTimeout:  c.ReactivateTimeout,
		ReactivateInterval: c.ReactivateInterval,
	}
}
