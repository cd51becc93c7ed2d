// Package logging builds the process logger from configuration and
// environment overrides.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BryanFRD/admin-api/internal/config"
)

const (
	EnvLogLevel   = "ADMIN_API_LOG_LEVEL"
	EnvLogNoColor = "ADMIN_API_LOG_NOCOLOR"
)

// New returns the root logger for app writing to w, and installs it as the
// zerolog global logger. ADMIN_API_LOG_LEVEL overrides cfg.Level.
func New(app string, cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, ok := parseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		level, _ = parseLevel(cfg.Level)
	}

	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		noColor, _ := parseBool(os.Getenv(EnvLogNoColor))
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// parseLevel accepts zerolog level names plus "warning". Unknown or empty
// input yields info and ok=false.
func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
	case "disabled", "off":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
