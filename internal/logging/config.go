// Package logging configures the process-wide zerolog logger for the radon
// binaries and their tests.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment overrides, applied after the profile defaults.
const (
	EnvLogLevel   = "RADON_LOG_LEVEL"
	EnvLogFormat  = "RADON_LOG_FORMAT"
	EnvLogNoColor = "RADON_LOG_NOCOLOR"
)

// Profile selects the defaults Configure starts from.
type Profile int

// Logging profiles.
const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Format selects the encoder.
type Format int

// Output formats.
const (
	FormatAuto Format = iota
	FormatConsole
	FormatJSON
)

// Config is the resolved logger configuration.
type Config struct {
	Level     zerolog.Level
	Format    Format
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var configureOnce sync.Once

// ConfigureRuntime installs the binaries' logger: info level, timestamps,
// console on a terminal and JSON otherwise.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests installs the test logger: debug level, plain console output
// without timestamps or color.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger for profile. Only the first call has
// an effect.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := DefaultConfig(profile)
		ApplyEnvOverrides(&cfg, os.Getenv)
		log.Logger = New(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
}

// SetLevel overrides the global level after Configure, for CLI flags.
func SetLevel(raw string) bool {
	lvl, ok := ParseLevel(raw)
	if ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return ok
}

// DefaultConfig returns the settings for profile before env overrides.
func DefaultConfig(profile Profile) Config {
	cfg := Config{Out: os.Stdout}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.DebugLevel
		cfg.Format = FormatConsole
		cfg.Timestamp = false
		cfg.NoColor = true
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Format = FormatAuto
		cfg.Timestamp = true
	}
	return cfg
}

// ApplyEnvOverrides reads overrides through getenv so tests can supply their
// own environment.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) {
	if lvl, ok := ParseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if f, ok := parseFormat(getenv(EnvLogFormat)); ok {
		cfg.Format = f
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// New builds a logger from cfg. FormatAuto picks console output when Out is a
// terminal and JSON otherwise.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	format := cfg.Format
	if format == FormatAuto {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = FormatConsole
		}
	}

	if format == FormatConsole {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}

	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// ParseLevel reads a level name with zerolog.ParseLevel, also accepting
// "warning" and "off". Empty or unknown input reports false and InfoLevel.
func ParseLevel(raw string) (zerolog.Level, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return zerolog.InfoLevel, false
	case "warning":
		name = "warn"
	case "off", "none", "disable":
		name = "disabled"
	}

	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}

func parseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "console", "text", "pretty":
		return FormatConsole, true
	case "json":
		return FormatJSON, true
	case "auto":
		return FormatAuto, true
	default:
		return FormatAuto, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
