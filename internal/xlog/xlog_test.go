package xlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRequestLogsStructuredFields(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	Request(logger, context.Background(), "GET", "/packages/express", 200, 42*time.Millisecond, "trace-1", "corr-1", "noderegistries")

	var fields map[string]any
	if err := json.Unmarshal([]byte(buf.String()), &fields); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}

	for key, want := range map[string]any{
		"method":        "GET",
		"path":          "/packages/express",
		"traceId":       "trace-1",
		"correlationId": "corr-1",
		"groupType":     "noderegistries",
	} {
		if got := fields[key]; got != want {
			t.Errorf("field %q = %v, want %v", key, got, want)
		}
	}
}

func TestNewQuietSuppressesInfo(t *testing.T) {
	logger := New(true)
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info level to be disabled when quiet")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn level to remain enabled when quiet")
	}
}
