package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks if the configuration is valid. Blocklist entries are
// trimmed and empty ones dropped.
func Validate(cfg *Config) error {
	// Sender
	if cfg.Sender.Name == "" {
		return fmt.Errorf("sender.name is required")
	}
	if cfg.Sender.Host == "" {
		return fmt.Errorf("sender.host is required")
	}
	if strings.Contains(cfg.Sender.Host, ":") && net.ParseIP(cfg.Sender.Host) == nil {
		return fmt.Errorf("sender.host must be a host name or IP address without port, got %q", cfg.Sender.Host)
	}
	if cfg.Sender.Port <= 0 || cfg.Sender.Port > 65535 {
		return fmt.Errorf("sender.port must be in 1-65535, got %d", cfg.Sender.Port)
	}
	if cfg.Sender.MTU < 576 || cfg.Sender.MTU > 9000 {
		return fmt.Errorf("sender.mtu must be in 576-9000, got %d", cfg.Sender.MTU)
	}
	if cfg.Sender.TTL < 0 || cfg.Sender.TTL > 255 {
		return fmt.Errorf("sender.ttl must be in 0-255, got %d", cfg.Sender.TTL)
	}

	// Capture
	if cfg.Capture.Width <= 0 || cfg.Capture.Height <= 0 {
		return fmt.Errorf("capture size must be > 0, got %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.Display < 0 {
		return fmt.Errorf("capture.display must be >= 0, got %d", cfg.Capture.Display)
	}
	blocklist := cfg.Capture.Blocklist[:0]
	for _, id := range cfg.Capture.Blocklist {
		if id = strings.TrimSpace(id); id != "" {
			blocklist = append(blocklist, id)
		}
	}
	cfg.Capture.Blocklist = blocklist

	// Log
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	// Stats
	if cfg.Stats.Interval < 0 {
		return fmt.Errorf("stats.interval must be >= 0")
	}
	if cfg.Stats.Measure < 0 {
		return fmt.Errorf("stats.measure must be >= 0")
	}

	return nil
}
