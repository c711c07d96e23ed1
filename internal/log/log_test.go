package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" Warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pickflix.log")
	logger, closer, err := SetupLogger(config.LoggingConfig{File: path, Level: "debug"})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	logger.Debug("pick committed", "movie_id", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["msg"] != "pick committed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["movie_id"] != float64(7) {
		t.Errorf("movie_id = %v", entry["movie_id"])
	}
}

func TestSetupLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pickflix.log")
	for i := 0; i < 2; i++ {
		logger, closer, err := SetupLogger(config.LoggingConfig{File: path})
		if err != nil {
			t.Fatalf("SetupLogger: %v", err)
		}
		logger.Info("started")
		closer.Close()
	}

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "started"); got != 2 {
		t.Errorf("got %d entries, want 2", got)
	}
}

func TestSetupLoggerEmptyPathDiscards(t *testing.T) {
	logger, closer, err := SetupLogger(config.LoggingConfig{})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	defer closer.Close()
	logger.Error("dropped")
}

func TestNewLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
