// Package logging configures the process-wide zerolog logger used by every
// gearstream package.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Environment variables that override the profile defaults.
const (
	// EnvLogLevel sets the minimum level, e.g. "debug".
	EnvLogLevel     = "GEARSTREAM_LOG_LEVEL"
	// EnvLogTimestamp adds timestamps when set to a true value.
	EnvLogTimestamp = "GEARSTREAM_LOG_TIMESTAMP"
	// EnvLogNoColor disables colored output when set to a true value.
	EnvLogNoColor   = "GEARSTREAM_LOG_NOCOLOR"
)

// Profile selects the defaults Configure starts from.
type Profile int

const (
	// ProfileRuntime logs info and above with timestamps.
	ProfileRuntime Profile = iota
	// ProfileTest logs warnings and above without timestamps.
	ProfileTest
)

// Config controls the console logger.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Out       io.Writer
}

var configureOnce sync.Once

// ConfigureRuntime configures the logger for command-line tools.
func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

// ConfigureTests configures the logger for test suites.
func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the global logger once per process. Later calls are
// no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		Install(cfg)
	})
}

// Install replaces the global logger unconditionally.
func Install(cfg Config) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	writer := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: cfg.NoColor,
	}
	if cfg.Timestamp {
		writer.TimeFormat = time.RFC3339
	} else {
		writer.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// Logger returns a child of the global logger tagged with the component
// name.
func Logger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// WithRun tags a logger with a fresh run identifier and returns both.
func WithRun(logger zerolog.Logger) (zerolog.Logger, string) {
	id := xid.New().String()
	return logger.With().Str("run", id).Logger(), id
}

func defaultConfig(profile Profile) Config {
	cfg := Config{
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	}
	switch profile {
	case ProfileTest:
		cfg.Level = zerolog.WarnLevel
		cfg.Timestamp = false
	default:
		cfg.Level = zerolog.InfoLevel
		cfg.Timestamp = true
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel converts a level name as accepted by the -log-level flag and
// the GEARSTREAM_LOG_LEVEL variable.
func ParseLevel(raw string) (zerolog.Level, bool) {
	return parseLevel(raw)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
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
