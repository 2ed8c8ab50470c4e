package main

import (
	"context"
	"log/slog"

	"github.com/thingslab-dev/thingslab-orchestrator/pkg/status"
)

// statusLogHandler bridges the orchestrator's status channel to slog. The
// update message becomes the log message so the JSON output reads like a
// progress log rather than a stream of identical "Status" records.
func statusLogHandler() status.Handler {
	logger := slog.Default()

	return func(update status.Update) {
		args := make([]any, 0, 2*(len(update.Metadata)+3))
		args = append(args, "level", string(update.Level))
		if update.Resource != "" {
			args = append(args, "resource", update.Resource)
		}
		if update.Action != "" {
			args = append(args, "action", update.Action)
		}
		for key, value := range update.Metadata {
			args = append(args, key, value)
		}

		logger.Log(context.Background(), levelFor(update.Level), update.Message, args...)
	}
}

// levelFor collapses the five status levels onto slog's three that matter
// here. Progress and success are informational.
func levelFor(level status.Level) slog.Level {
	switch level {
	case status.LevelWarning:
		return slog.LevelWarn
	case status.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
