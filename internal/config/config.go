package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for orgsync.
type Config struct {
	// Orgs lists the organizations to reconcile. Empty means every config
	// file found under the config path.
	Orgs       []string `mapstructure:"orgs"`
	ConfigPath string   `mapstructure:"config_path"`

	CacheDir string `mapstructure:"cache_dir"`
	CacheTTL string `mapstructure:"cache_ttl"`
	NoCache  bool   `mapstructure:"no_cache"`

	Concurrency         int     `mapstructure:"concurrency"`
	FetchConcurrency    int     `mapstructure:"fetch_concurrency"`
	RateLimit           float64 `mapstructure:"rate_limit"`
	Prune               bool    `mapstructure:"prune"`
	TolerateFetchErrors bool    `mapstructure:"tolerate_fetch_errors"`

	GitHub   GitHubConfig  `mapstructure:"github"`
	GitRepo  GitRepoConfig `mapstructure:"git_repo"`
	LogLevel string        `mapstructure:"log_level"`
}

// GitHubConfig holds API access settings.
type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// GitRepoConfig points at an optional git repository holding the org config
// files. When URL is empty, configs are read straight from ConfigPath.
type GitRepoConfig struct {
	URL string `mapstructure:"url"`
}

// ParsedCacheTTL returns CacheTTL as a duration.
func (c *Config) ParsedCacheTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("parsing cache_ttl: %w", err)
	}
	return ttl, nil
}

// Load reads configuration from file, environment, and defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("config_path", ".")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("cache_ttl", "1h")
	v.SetDefault("no_cache", false)
	v.SetDefault("concurrency", 4)
	v.SetDefault("fetch_concurrency", 4)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("prune", false)
	v.SetDefault("tolerate_fetch_errors", false)
	v.SetDefault("log_level", "info")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("orgsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/orgsync")
	}

	// Environment variables
	v.SetEnvPrefix("ORGSYNC")
	v.AutomaticEnv()

	// Bind specific env vars
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("github.base_url", "ORGSYNC_GITHUB_BASE_URL")
	_ = v.BindEnv("git_repo.url", "ORGSYNC_GIT_REPO_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Resolve config path to absolute
	if !filepath.IsAbs(cfg.ConfigPath) {
		abs, err := filepath.Abs(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		cfg.ConfigPath = abs
	}

	return &cfg, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/orgsync-cache"
	}
	return filepath.Join(home, ".cache", "orgsync")
}
