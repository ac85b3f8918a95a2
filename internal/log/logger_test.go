package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/librarianhq/librarian/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LogFormatJSON, "INFO")

	logger.Info("library created", "library_id", "abc123")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if record["msg"] != "library created" {
		t.Errorf("msg = %v, want 'library created'", record["msg"])
	}
	if record["library_id"] != "abc123" {
		t.Errorf("library_id = %v, want 'abc123'", record["library_id"])
	}
}

func TestNewWithWriter_PrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LogFormatPretty, "INFO")

	logger.Info("server started", "port", 8080)

	output := buf.String()
	if !strings.Contains(output, "INF") {
		t.Errorf("expected INF level, got: %s", output)
	}
	if !strings.Contains(output, "server started") {
		t.Errorf("expected message, got: %s", output)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LogFormatJSON, "WARN")

	logger.Info("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at WARN level, got: %s", buf.String())
	}

	logger.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("warn record should be emitted at WARN level")
	}
}

func TestTerminalHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := NewTerminalHandler(&buf, slog.LevelDebug)

	ts := time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "server started", 0)
	r.AddAttrs(slog.String("port", "8080"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "10:30:45.123") {
		t.Errorf("expected timestamp, got: %s", output)
	}
	if !strings.Contains(output, "INF") {
		t.Errorf("expected INF level, got: %s", output)
	}
	if !strings.Contains(output, "port=") {
		t.Errorf("expected port attr, got: %s", output)
	}
}

func TestTerminalHandler_Levels(t *testing.T) {
	tests := []struct {
		level    slog.Level
		expected string
	}{
		{slog.LevelDebug, "DBG"},
		{slog.LevelInfo, "INF"},
		{slog.LevelWarn, "WRN"},
		{slog.LevelError, "ERR"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewTerminalHandler(&buf, slog.LevelDebug)

			r := slog.NewRecord(time.Now(), tt.level, "msg", 0)
			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error: %v", err)
			}

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestTerminalHandler_GroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewTerminalHandler(&buf, slog.LevelDebug)
	logger := slog.New(h).With("component", "indexer").WithGroup("http")

	logger.Info("request handled", "status", 200)

	output := buf.String()
	if !strings.Contains(output, "component=") {
		t.Errorf("expected inherited attr, got: %s", output)
	}
	if !strings.Contains(output, "http.status=") {
		t.Errorf("expected grouped attr key, got: %s", output)
	}
}

func TestTerminalHandler_QuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	h := NewTerminalHandler(&buf, slog.LevelDebug)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	r.AddAttrs(slog.String("error", "something went wrong"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if !strings.Contains(buf.String(), `"something went wrong"`) {
		t.Errorf("expected quoted value, got: %s", buf.String())
	}
}
