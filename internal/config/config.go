// Package config loads updrift configuration from file, environment, and
// flags via viper. There is no ambient config singleton: Load returns an
// explicit Config instance whose lifetime is owned by the orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const envPrefix = "UPDRIFT"

// PolicyConfig is the per-section failure policy: ignore-listed package ids
// are reclassified as skipped, retry-listed ids get a second attempt.
type PolicyConfig struct {
	Ignore []string `mapstructure:"ignore"`
	Retry  []string `mapstructure:"retry"`
}

// HooksConfig names external commands run around sections. Hook failures are
// logged as warnings and never change a section's status.
type HooksConfig struct {
	PreUpdate   string            `mapstructure:"pre_update"`
	PostUpdate  string            `mapstructure:"post_update"`
	PreSection  map[string]string `mapstructure:"pre_section"`
	PostSection map[string]string `mapstructure:"post_section"`
}

// CacheConfig controls the winget call cache.
type CacheConfig struct {
	Disk              bool `mapstructure:"disk"`
	ListTTLSeconds    int  `mapstructure:"list_ttl_seconds"`
	UpgradeTTLSeconds int  `mapstructure:"upgrade_ttl_seconds"`
}

// BaselineConfig controls the delta engine's snapshot storage.
type BaselineConfig struct {
	KeepLast   int `mapstructure:"keep_last"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// ParallelConfig controls the optional parallel section pool.
type ParallelConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// Config is the resolved updrift configuration.
type Config struct {
	StateDir     string                  `mapstructure:"state_dir"`
	LogLevel     string                  `mapstructure:"log_level"`
	ShowPackages bool                    `mapstructure:"show_packages"`
	Skip         []string                `mapstructure:"skip"`
	GitRepos     []string                `mapstructure:"git_repos"`
	Cache        CacheConfig             `mapstructure:"cache"`
	Baseline     BaselineConfig          `mapstructure:"baseline"`
	Parallel     ParallelConfig          `mapstructure:"parallel"`
	Policies     map[string]PolicyConfig `mapstructure:"policies"`
	Hooks        HooksConfig             `mapstructure:"hooks"`
}

// LogDir returns the run log directory under the state dir.
func (c *Config) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// CacheDir returns the disk cache directory, or "" when disk caching is off.
func (c *Config) CacheDir() string {
	if !c.Cache.Disk {
		return ""
	}
	return filepath.Join(c.StateDir, "cache")
}

// BaselineDir returns the baseline snapshot directory.
func (c *Config) BaselineDir() string {
	return filepath.Join(c.StateDir, "baselines")
}

// HistoryDir returns the summary JSON history directory.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.StateDir, "history")
}

// HistoryDBPath returns the sqlite run-history database path.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.StateDir, "updrift.db")
}

// ArtifactDir returns the per-package log artifact directory.
func (c *Config) ArtifactDir() string {
	return filepath.Join(c.StateDir, "artifacts")
}

// New returns a viper instance with updrift defaults and env binding. The
// cobra layer binds its flags onto this instance before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("show_packages", true)
	v.SetDefault("cache.disk", true)
	v.SetDefault("cache.list_ttl_seconds", 600)
	v.SetDefault("cache.upgrade_ttl_seconds", 300)
	v.SetDefault("baseline.keep_last", 10)
	v.SetDefault("baseline.max_age_days", 7)
	v.SetDefault("parallel.max_concurrent", 4)

	return v
}

// Load reads configuration into a Config. If configFile is empty, an
// updrift.yaml is searched in the working directory and ~/.updrift; a
// missing config file is not an error, the defaults apply.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("updrift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".updrift"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Policies == nil {
		cfg.Policies = map[string]PolicyConfig{}
	}
	return &cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".updrift"
	}
	return filepath.Join(home, ".updrift")
}
