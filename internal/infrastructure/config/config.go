// Package config loads client settings from a config file, .env and DOCQA_* variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key (DOCQA_API_BASE_URL, ...).
const EnvPrefix = "DOCQA"

// Config holds all client configuration.
type Config struct {
	AppEnv   string      `mapstructure:"app_env"`
	LogLevel string      `mapstructure:"log_level"`
	API      APIConfig   `mapstructure:"api"`
	Web      WebConfig   `mapstructure:"web"`
	Watch    WatchConfig `mapstructure:"watch"`
}

// APIConfig points the gateway client at the backend.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	HealthBaseURL string        `mapstructure:"health_base_url"`
	ChatTimeout   time.Duration `mapstructure:"chat_timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// WebConfig controls the local web pages.
type WebConfig struct {
	Addr          string `mapstructure:"addr"`
	MaxWorkspaces int    `mapstructure:"max_workspaces"`
	MaxUploadMB   int64  `mapstructure:"max_upload_mb"`
}

// WatchConfig controls the watch-folder uploader. An empty StateFile keeps
// the upload ledger in memory only.
type WatchConfig struct {
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
	StateFile   string        `mapstructure:"state_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.health_base_url", "")
	v.SetDefault("api.chat_timeout", 30*time.Second)
	v.SetDefault("api.upload_timeout", 60*time.Second)
	v.SetDefault("api.health_timeout", 5*time.Second)
	v.SetDefault("web.addr", "127.0.0.1:3000")
	v.SetDefault("web.max_workspaces", 64)
	v.SetDefault("web.max_upload_mb", 50)
	v.SetDefault("watch.quiet_period", 500*time.Millisecond)
	v.SetDefault("watch.state_file", "")
}

// Load reads .env (if present), then the optional config file at path, then
// DOCQA_* environment variables. Later sources win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docqa")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// API_BASE_URL is accepted unprefixed as well.
	_ = v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "API_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	cfg.API.HealthBaseURL = strings.TrimRight(strings.TrimSpace(cfg.API.HealthBaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if c.Web.MaxWorkspaces <= 0 {
		return fmt.Errorf("web.max_workspaces must be > 0")
	}
	if c.Web.MaxUploadMB <= 0 {
		return fmt.Errorf("web.max_upload_mb must be > 0")
	}
	return nil
}

// Validate checks URLs and timeouts.
func (a APIConfig) Validate() error {
	if err := validateURL("api.base_url", a.BaseURL); err != nil {
		return err
	}
	if a.HealthBaseURL != "" {
		if err := validateURL("api.health_base_url", a.HealthBaseURL); err != nil {
			return err
		}
	}
	if a.ChatTimeout <= 0 || a.UploadTimeout <= 0 || a.HealthTimeout <= 0 {
		return fmt.Errorf("api timeouts must be > 0")
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s is missing a host", key)
	}
	return nil
}
