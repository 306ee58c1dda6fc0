// Package xlog builds the structured logger threaded through facade
// construction, following a logger-as-field convention rather than a
// package-global logger.
package xlog

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New builds a structured logger writing JSON to stderr. When quiet is true,
// only warn/error records are emitted.
func New(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Request logs one line for a completed HTTP request.
func Request(logger *slog.Logger, ctx context.Context, method, path string, status int, dur time.Duration, traceID, correlationID, groupType string) {
	logger.InfoContext(ctx, "request",
		"method", method,
		"path", path,
		"status", status,
		"durationMs", dur.Milliseconds(),
		"traceId", traceID,
		"correlationId", correlationID,
		"groupType", groupType,
	)
}
