package platform

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("logging.level %q must be debug, info, warn or error", s)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format.
func NewLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging.format %q must be text or json", cfg.Format)
	}
}

// SetupLogging installs the configured logger as the slog default.
func SetupLogging(cfg LoggingConfig, w io.Writer) error {
	logger, err := NewLogger(cfg, w)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
