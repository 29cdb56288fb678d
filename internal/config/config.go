// Package config loads settings from flags, MDTASKS_* environment variables
// and an optional mdtasks.{yaml,toml,json} file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "MDTASKS"

type Config struct {
	RootPath         string        `mapstructure:"root_path"`
	DataPath         string        `mapstructure:"data_path"`
	ConfigFile       string        `mapstructure:"config"`
	ListenAddr       string        `mapstructure:"listen_addr"`
	AuthUser         string        `mapstructure:"auth_user"`
	AuthPass         string        `mapstructure:"auth_pass"`
	AuthFile         string        `mapstructure:"auth_file"`
	Include          []string      `mapstructure:"include"`
	Exclude          []string      `mapstructure:"exclude"`
	ToggleDebounce   time.Duration `mapstructure:"toggle_debounce"`
	EditDebounce     time.Duration `mapstructure:"edit_debounce"`
	ScrollDebounce   time.Duration `mapstructure:"scroll_debounce"`
	ShowHeaders      bool          `mapstructure:"show_headers"`
	ToggleRatePerMin int           `mapstructure:"toggle_rate_per_min"`
	RenderCacheSize  int           `mapstructure:"render_cache_size"`
	DBBusyTimeout    time.Duration `mapstructure:"db_busy_timeout"`
	DBLockTimeout    time.Duration `mapstructure:"db_lock_timeout"`
	Watch            bool          `mapstructure:"watch"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFile          string        `mapstructure:"log_file"`
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"root":         "root_path",
	"data":         "data_path",
	"config":       "config",
	"listen":       "listen_addr",
	"show-headers": "show_headers",
	"watch":        "watch",
	"log-level":    "log_level",
	"log-file":     "log_file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root_path", ".")
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("include", []string{"**/*.md"})
	v.SetDefault("exclude", []string{".git/**", "node_modules/**", ".mdtasks/**"})
	v.SetDefault("toggle_debounce", 30*time.Millisecond)
	v.SetDefault("edit_debounce", 300*time.Millisecond)
	v.SetDefault("scroll_debounce", 10*time.Millisecond)
	v.SetDefault("show_headers", true)
	v.SetDefault("toggle_rate_per_min", 600)
	v.SetDefault("render_cache_size", 64)
	v.SetDefault("db_busy_timeout", 5*time.Second)
	v.SetDefault("db_lock_timeout", 2*time.Second)
	v.SetDefault("watch", true)
	v.SetDefault("log_level", "info")
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("root", "", "workspace root directory")
	fs.String("data", "", "data directory for the task index (default <root>/.mdtasks)")
	fs.String("config", "", "config file path")
	fs.String("listen", "", "HTTP listen address")
	fs.Bool("show-headers", true, "include headers in outlines")
	fs.Bool("watch", true, "watch the workspace for external edits")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-file", "", "also write logs to this file")
}

// Load resolves the configuration. Flags in fs that were not set on the
// command line do not override other sources.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// keys without a default are invisible to Unmarshal unless bound
	for _, key := range []string{"data_path", "config", "auth_user", "auth_pass", "auth_file", "log_file"} {
		_ = v.BindEnv(key)
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("mdtasks")
		v.AddConfigPath(v.GetString("root_path"))
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if cfg.DataPath == "" {
		cfg.DataPath = filepath.Join(cfg.RootPath, ".mdtasks")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.RootPath) == "" {
		return errors.New("root_path must not be empty")
	}
	for key, d := range map[string]time.Duration{
		"toggle_debounce": c.ToggleDebounce,
		"edit_debounce":   c.EditDebounce,
		"scroll_debounce": c.ScrollDebounce,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.ToggleRatePerMin < 0 {
		return fmt.Errorf("toggle_rate_per_min must not be negative, got %d", c.ToggleRatePerMin)
	}
	if (c.AuthUser == "") != (c.AuthPass == "") {
		return errors.New("auth_user and auth_pass must be set together")
	}
	return nil
}

// AuthFilePath is the configured auth file or the default inside the data
// directory.
func (c Config) AuthFilePath() string {
	if c.AuthFile != "" {
		return c.AuthFile
	}
	return filepath.Join(c.DataPath, "auth.txt")
}
