// Package config loads the screen-relay configuration from defaults, a YAML
// file, SCREEN_RELAY_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// AppName names the config directory and the env prefix.
const AppName = "screen-relay"

// Config represents the complete screen-relay configuration.
type Config struct {
	Sender  SenderConfig  `mapstructure:"sender" yaml:"sender"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Stats   StatsConfig   `mapstructure:"stats" yaml:"stats"`
}

// SenderConfig is the network side.
type SenderConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	MTU         int    `mapstructure:"mtu" yaml:"mtu"`
	TTL         int    `mapstructure:"ttl" yaml:"ttl"`
	IgnoreAlpha bool   `mapstructure:"ignore_alpha" yaml:"ignore_alpha"`
	// SDPFile, if set, receives the session description once capture runs.
	SDPFile string `mapstructure:"sdp_file" yaml:"sdp_file"`
}

// CaptureConfig is the screen side.
type CaptureConfig struct {
	Width   int `mapstructure:"width" yaml:"width"`
	Height  int `mapstructure:"height" yaml:"height"`
	Display int `mapstructure:"display" yaml:"display"`
	// Blocklist is added to the built-in exclusions.
	Blocklist []string `mapstructure:"blocklist" yaml:"blocklist"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// StatsConfig controls periodic reporting.
type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"` // 0 disables
	Measure  time.Duration `mapstructure:"measure" yaml:"measure"`   // 0 skips the cadence measurement
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Sender: SenderConfig{
			Name: AppName,
			Host: "239.0.0.10",
			Port: 5004,
			MTU:  1400,
		},
		Capture: CaptureConfig{
			Width:  1920,
			Height: 1080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Stats: StatsConfig{
			Interval: 10 * time.Second,
		},
	}
}

// DefaultPath is the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// New returns a viper instance with defaults and environment bindings set.
// Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("sender.name", d.Sender.Name)
	v.SetDefault("sender.host", d.Sender.Host)
	v.SetDefault("sender.port", d.Sender.Port)
	v.SetDefault("sender.mtu", d.Sender.MTU)
	v.SetDefault("sender.ttl", d.Sender.TTL)
	v.SetDefault("sender.ignore_alpha", d.Sender.IgnoreAlpha)
	v.SetDefault("sender.sdp_file", d.Sender.SDPFile)
	v.SetDefault("capture.width", d.Capture.Width)
	v.SetDefault("capture.height", d.Capture.Height)
	v.SetDefault("capture.display", d.Capture.Display)
	v.SetDefault("capture.blocklist", []string{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("stats.interval", d.Stats.Interval)
	v.SetDefault("stats.measure", d.Stats.Measure)

	// SCREEN_RELAY_SENDER_HOST → sender.host
	v.SetEnvPrefix(strings.ReplaceAll(AppName, "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file into v, unmarshals and validates.
//
// An explicit path must exist. With an empty path, DefaultPath and
// ./config.yaml are tried and a missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: failed to read config file: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		slog.Debug("config: loaded file", "path", used)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Level returns the slog level for cfg.Log.Level.
func (c *Config) Level() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
