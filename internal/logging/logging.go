// Package logging builds the process-wide slog logger and bridges it into
// watermill so the inbound subscriber logs through the same sink.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
)

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var watermillLevelMapping = map[slog.Level]slog.Level{
	slog.LevelDebug: slog.LevelDebug,
	slog.LevelInfo:  slog.LevelInfo,
	slog.LevelWarn:  slog.LevelWarn,
	slog.LevelError: slog.LevelError,
}

// ParseLevel maps a configuration string onto a slog level. An empty string
// defaults to info.
func ParseLevel(level string) (slog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return slog.LevelInfo, nil
	}
	lvl, ok := levelNames[level]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}

// New returns a JSON slog logger writing to stdout at the given level.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// WatermillAdapter wraps a slog logger so watermill transports can use it.
func WatermillAdapter(log *slog.Logger) watermill.LoggerAdapter {
	if log == nil {
		panic("wrurelay: slog logger cannot be nil")
	}
	return watermill.NewSlogLoggerWithLevelMapping(log, watermillLevelMapping)
}
