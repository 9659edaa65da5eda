package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the shell configuration loaded from files and environment variables.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	Env       string `mapstructure:"app_env"`
	LogLevel  string `mapstructure:"log_level"`
	LogOutput string `mapstructure:"log_output"`

	ListenAddr        string   `mapstructure:"listen_addr"`
	AllowedOriginsRaw string   `mapstructure:"allowed_origins"`
	AllowedOrigins    []string `mapstructure:"-"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`
	ProxyURL              string        `mapstructure:"proxy_url"`
	CABundleFile          string        `mapstructure:"ca_bundle_file"`

	NetlogEnabled         bool          `mapstructure:"netlog_enabled"`
	NetlogMaxEntries      int           `mapstructure:"netlog_max_entries"`
	NetlogBodyLimit       int           `mapstructure:"netlog_body_limit"`
	NetlogStore           string        `mapstructure:"netlog_store"`
	NetlogBBoltPath       string        `mapstructure:"netlog_bbolt_path"`
	NetlogTTLSeconds      int64         `mapstructure:"netlog_ttl_seconds"`
	NetlogCleanupSeconds  int64         `mapstructure:"netlog_cleanup_interval_seconds"`
	NetlogExportDir       string        `mapstructure:"netlog_export_dir"`
	NetlogTTL             time.Duration `mapstructure:"-"`
	NetlogCleanupInterval time.Duration `mapstructure:"-"`
	SinksFile             string        `mapstructure:"sinks_file"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "webview-relay")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("listen_addr", "127.0.0.1:7878")
	v.SetDefault("allowed_origins", "tauri://localhost,http://tauri.localhost")
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("proxy_url", "")
	v.SetDefault("ca_bundle_file", "")
	v.SetDefault("netlog_enabled", true)
	v.SetDefault("netlog_max_entries", 1000)
	v.SetDefault("netlog_body_limit", 1000)
	v.SetDefault("netlog_store", "memory")
	v.SetDefault("netlog_bbolt_path", "./data/netlog.db")
	v.SetDefault("netlog_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("netlog_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("netlog_export_dir", "./exports")
	v.SetDefault("sinks_file", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize validates numeric settings and derives durations.
func (cfg *Config) normalize() error {
	if cfg.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be zero or positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.NetlogMaxEntries <= 0 {
		return fmt.Errorf("invalid netlog_max_entries (must be positive)")
	}
	if cfg.NetlogBodyLimit < 0 {
		return fmt.Errorf("invalid netlog_body_limit (must be zero or positive)")
	}
	if cfg.NetlogTTLSeconds <= 0 {
		return fmt.Errorf("invalid netlog_ttl_seconds (must be positive seconds)")
	}
	if cfg.NetlogCleanupSeconds <= 0 {
		return fmt.Errorf("invalid netlog_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.NetlogTTL = time.Duration(cfg.NetlogTTLSeconds) * time.Second
	cfg.NetlogCleanupInterval = time.Duration(cfg.NetlogCleanupSeconds) * time.Second

	cfg.AllowedOrigins = splitList(cfg.AllowedOriginsRaw)
	cfg.NetlogStore = strings.ToLower(strings.TrimSpace(cfg.NetlogStore))
	cfg.LogOutput = strings.ToLower(strings.TrimSpace(cfg.LogOutput))
	return nil
}

// splitList splits a comma-separated setting, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
