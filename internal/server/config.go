// Package server provides configuration helpers that define runtime defaults,
// validation, and file and environment layering for the radon service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/Netflix/go-env"
	"github.com/pkg/errors"

	"github.com/Tyrowin/radon/internal/chat"
)

const (
	defaultAddress         = "127.0.0.1:8080"
	defaultMaxMessageSize  = 4096
	defaultWriteTimeout    = 10 * time.Second
	defaultPongTimeout     = 60 * time.Second
	defaultPingInterval    = 54 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the server configuration settings.
type Config struct {
	Address           string
	WebSocketEnabled  bool
	AllowedOrigins    []string
	MaxMessageSize    int64
	MaxNameLength     int
	BroadcastCapacity int
	WriteTimeout      time.Duration
	PongTimeout       time.Duration
	PingInterval      time.Duration
	ShutdownTimeout   time.Duration
}

// fileConfig mirrors the TOML layout. Durations are strings such as "10s".
type fileConfig struct {
	Address           string   `toml:"address"`
	WebSocketEnabled  bool     `toml:"ws_enabled"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	MaxMessageSize    int64    `toml:"max_message_size"`
	MaxNameLength     int      `toml:"max_name_length"`
	BroadcastCapacity int      `toml:"broadcast_capacity"`
	WriteTimeout      string   `toml:"write_timeout"`
	PongTimeout       string   `toml:"pong_timeout"`
	PingInterval      string   `toml:"ping_interval"`
	ShutdownTimeout   string   `toml:"shutdown_timeout"`
}

// envConfig lists the environment overrides. Values stay raw strings so bad
// input falls back to the current value instead of failing startup.
type envConfig struct {
	Address           *string `env:"RADON_ADDRESS"`
	WebSocketEnabled  *string `env:"RADON_WS_ENABLED"`
	AllowedOrigins    *string `env:"RADON_ALLOWED_ORIGINS"`
	MaxMessageSize    *string `env:"RADON_MAX_MESSAGE_SIZE"`
	MaxNameLength     *string `env:"RADON_MAX_NAME_LENGTH"`
	BroadcastCapacity *string `env:"RADON_BROADCAST_CAPACITY"`
	WriteTimeout      *string `env:"RADON_WRITE_TIMEOUT"`
	PongTimeout       *string `env:"RADON_PONG_TIMEOUT"`
	PingInterval      *string `env:"RADON_PING_INTERVAL"`
	ShutdownTimeout   *string `env:"RADON_SHUTDOWN_TIMEOUT"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Address:          defaultAddress,
		WebSocketEnabled: true,
		AllowedOrigins: []string{
			"http://localhost:8080",
			"http://127.0.0.1:8080",
		},
		MaxMessageSize:    defaultMaxMessageSize,
		MaxNameLength:     chat.DefaultMaxNameLength,
		BroadcastCapacity: chat.DefaultBroadcastCapacity,
		WriteTimeout:      defaultWriteTimeout,
		PongTimeout:       defaultPongTimeout,
		PingInterval:      defaultPingInterval,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

// LoadConfig layers defaults, the optional TOML file at path and the process
// environment, then sanitizes the result.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	if err := cfg.applyEnv(es); err != nil {
		return nil, err
	}

	sanitized := cfg.Sanitize()
	return &sanitized, nil
}

// applyFile overlays only the keys present in the file.
func (c *Config) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return errors.Wrapf(err, "load config %s", path)
	}

	if meta.IsDefined("address") {
		c.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("ws_enabled") {
		c.WebSocketEnabled = raw.WebSocketEnabled
	}
	if meta.IsDefined("allowed_origins") {
		c.AllowedOrigins = append([]string(nil), raw.AllowedOrigins...)
	}
	if meta.IsDefined("max_message_size") {
		c.MaxMessageSize = raw.MaxMessageSize
	}
	if meta.IsDefined("max_name_length") {
		c.MaxNameLength = raw.MaxNameLength
	}
	if meta.IsDefined("broadcast_capacity") {
		c.BroadcastCapacity = raw.BroadcastCapacity
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"write_timeout", raw.WriteTimeout, &c.WriteTimeout},
		{"pong_timeout", raw.PongTimeout, &c.PongTimeout},
		{"ping_interval", raw.PingInterval, &c.PingInterval},
		{"shutdown_timeout", raw.ShutdownTimeout, &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return errors.Wrapf(err, "parse %s", d.key)
		}
		*d.dst = parsed
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// applyEnv overlays the RADON_* variables present in es.
func (c *Config) applyEnv(es env.EnvSet) error {
	var raw envConfig
	if err := env.Unmarshal(es, &raw); err != nil {
		return errors.Wrap(err, "parse environment")
	}

	if raw.Address != nil && strings.TrimSpace(*raw.Address) != "" {
		c.Address = strings.TrimSpace(*raw.Address)
	}
	if raw.WebSocketEnabled != nil {
		if v, err := strconv.ParseBool(strings.TrimSpace(*raw.WebSocketEnabled)); err == nil {
			c.WebSocketEnabled = v
		}
	}
	if raw.AllowedOrigins != nil && *raw.AllowedOrigins != "" {
		c.AllowedOrigins = parseOrigins(*raw.AllowedOrigins)
	}
	if raw.MaxMessageSize != nil {
		c.MaxMessageSize = parseMaxMessageSize(*raw.MaxMessageSize, c.MaxMessageSize)
	}
	if raw.MaxNameLength != nil {
		c.MaxNameLength = parseIntValue(*raw.MaxNameLength, c.MaxNameLength)
	}
	if raw.BroadcastCapacity != nil {
		c.BroadcastCapacity = parseIntValue(*raw.BroadcastCapacity, c.BroadcastCapacity)
	}
	if raw.WriteTimeout != nil {
		c.WriteTimeout = parseDurationValue(*raw.WriteTimeout, c.WriteTimeout)
	}
	if raw.PongTimeout != nil {
		c.PongTimeout = parseDurationValue(*raw.PongTimeout, c.PongTimeout)
	}
	if raw.PingInterval != nil {
		c.PingInterval = parseDurationValue(*raw.PingInterval, c.PingInterval)
	}
	if raw.ShutdownTimeout != nil {
		c.ShutdownTimeout = parseDurationValue(*raw.ShutdownTimeout, c.ShutdownTimeout)
	}
	return nil
}

// Sanitize replaces invalid values with defaults. The ping interval is kept
// below the pong timeout so a healthy peer never hits its read deadline.
func (c Config) Sanitize() Config {
	def := defaultConfig()

	if strings.TrimSpace(c.Address) == "" {
		c.Address = def.Address
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.MaxNameLength <= 0 {
		c.MaxNameLength = def.MaxNameLength
	}
	if c.BroadcastCapacity <= 0 {
		c.BroadcastCapacity = def.BroadcastCapacity
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = c.PongTimeout * 9 / 10
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}

	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDurationValue accepts Go durations ("15s") and bare integers as
// seconds.
func parseDurationValue(value string, defaultValue time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
