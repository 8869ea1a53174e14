// Package config manages netsteerd configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cococorp/netsteer/internal/steering"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete netsteerd configuration.
type Config struct {
	Metrics  MetricsConfig   `koanf:"metrics"`
	Log      LogConfig       `koanf:"log"`
	Status   StatusConfig    `koanf:"status"`
	Contexts []ContextConfig `koanf:"contexts"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// StatusConfig controls the periodic JSON status snapshot netsteerctl
// reads (expansion: replaces the teacher's ConnectRPC control plane --
// see DESIGN.md).
type StatusConfig struct {
	// Path is the file the daemon writes its snapshot to.
	Path string `koanf:"path"`
	// Interval is how often the snapshot is rewritten (e.g., "2s").
	Interval string `koanf:"interval"`
}

// ContextConfig describes one declarative SteeringContext (design §3, §6:
// ctx_config) from the configuration file. Each entry creates a context on
// daemon startup and SIGHUP reload, mirroring the teacher's declarative
// Sessions list.
type ContextConfig struct {
	// BridgeIfname names the interface the context's L2 transport binds to.
	BridgeIfname string `koanf:"bridge_ifname"`

	// LocalBSSID is this AP's BSS identifier, colon-hex ("aa:bb:cc:dd:ee:ff").
	LocalBSSID string `koanf:"local_bssid"`

	// OwnAddr is this AP's transport endpoint MAC, colon-hex.
	OwnAddr string `koanf:"own_addr"`

	// Channel is the current operating channel.
	Channel uint8 `koanf:"channel"`

	// Mode is net_steering_mode: "off", "suggest", or "force" (design §6).
	Mode string `koanf:"mode"`

	// Peers is the mobility-domain peer BSSID list, colon-hex (design §6,
	// reused from fast-transition configuration).
	Peers []string `koanf:"peers"`
}

// Key returns a unique identifier for the context based on
// (local_bssid, bridge_ifname). Used for diffing contexts on SIGHUP
// reload.
func (cc ContextConfig) Key() string {
	return cc.LocalBSSID + "|" + cc.BridgeIfname
}

// ParseMAC parses a colon-hex MAC string into a steering.MAC.
func ParseMAC(s string) (steering.MAC, error) {
	var mac steering.MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, fmt.Errorf("parse mac %q: %w", s, ErrInvalidMAC)
	}
	for i, p := range parts {
		var b uint8
		if _, err := fmt.Sscanf(p, "%02x", &b); err != nil {
			return steering.MAC{}, fmt.Errorf("parse mac %q: %w", s, ErrInvalidMAC)
		}
		mac[i] = b
	}
	return mac, nil
}

// ToSteeringConfig converts a ContextConfig into a steering.Config,
// resolving colon-hex MAC strings and the mode spelling.
func (cc ContextConfig) ToSteeringConfig() (steering.Config, error) {
	local, err := ParseMAC(cc.LocalBSSID)
	if err != nil {
		return steering.Config{}, fmt.Errorf("local_bssid: %w", err)
	}
	own, err := ParseMAC(cc.OwnAddr)
	if err != nil {
		return steering.Config{}, fmt.Errorf("own_addr: %w", err)
	}
	mode, err := steering.ParseMode(cc.Mode)
	if err != nil {
		return steering.Config{}, err
	}

	peers := make([]steering.MAC, 0, len(cc.Peers))
	for _, p := range cc.Peers {
		mac, err := ParseMAC(p)
		if err != nil {
			return steering.Config{}, fmt.Errorf("peers: %w", err)
		}
		peers = append(peers, mac)
	}

	return steering.Config{
		BridgeIfname: cc.BridgeIfname,
		LocalBSSID:   local,
		OwnAddr:      own,
		Channel:      cc.Channel,
		Mode:         mode,
		Peers:        peers,
	}, nil
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Status: StatusConfig{
			Path:     "/var/run/netsteerd/status.json",
			Interval: "2s",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netsteerd configuration.
// Variables are named NETSTEER_<section>_<key>, e.g., NETSTEER_METRICS_ADDR.
const envPrefix = "NETSTEER_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETSTEER_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NETSTEER_METRICS_ADDR -> metrics.addr
//	NETSTEER_METRICS_PATH -> metrics.path
//	NETSTEER_LOG_LEVEL    -> log.level
//	NETSTEER_LOG_FORMAT   -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETSTEER_METRICS_ADDR -> metrics.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":    defaults.Metrics.Addr,
		"metrics.path":    defaults.Metrics.Path,
		"log.level":       defaults.Log.Level,
		"log.format":      defaults.Log.Format,
		"status.path":     defaults.Status.Path,
		"status.interval": defaults.Status.Interval,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidMAC indicates a MAC address string could not be parsed.
	ErrInvalidMAC = errors.New("invalid colon-hex MAC address")

	// ErrInvalidContextMode indicates a context's mode is unrecognized.
	ErrInvalidContextMode = errors.New("context mode must be off, suggest, or force")

	// ErrDuplicateContextKey indicates two contexts share the same
	// (local_bssid, bridge_ifname) key.
	ErrDuplicateContextKey = errors.New("duplicate context key")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	return validateContexts(cfg.Contexts)
}

// validateContexts checks each declarative context entry for correctness.
func validateContexts(contexts []ContextConfig) error {
	seen := make(map[string]struct{}, len(contexts))

	for i, cc := range contexts {
		if _, err := ParseMAC(cc.LocalBSSID); err != nil {
			return fmt.Errorf("contexts[%d] local_bssid: %w", i, err)
		}
		if cc.OwnAddr != "" {
			if _, err := ParseMAC(cc.OwnAddr); err != nil {
				return fmt.Errorf("contexts[%d] own_addr: %w", i, err)
			}
		}
		if _, err := steering.ParseMode(cc.Mode); err != nil {
			return fmt.Errorf("contexts[%d] mode %q: %w", i, cc.Mode, ErrInvalidContextMode)
		}
		for _, p := range cc.Peers {
			if _, err := ParseMAC(p); err != nil {
				return fmt.Errorf("contexts[%d] peers: %w", i, err)
			}
		}

		key := cc.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("contexts[%d] key %q: %w", i, key, ErrDuplicateContextKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
