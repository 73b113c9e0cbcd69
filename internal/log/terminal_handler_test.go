package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTerminalHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

	ts := time.Date(2026, 1, 15, 10, 30, 45, 123000000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "model loaded", 0)
	r.AddAttrs(slog.String("device", "cuda"), slog.Int("dim", 768))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	want := "10:30:45.123 INF model loaded device=cuda dim=768\n"
	if got := buf.String(); got != want {
		t.Errorf("Handle() output = %q, want %q", got, want)
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
			h := newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)

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

func TestTerminalHandler_ColourCodes(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newTerminalHandler(&buf, nil, true)).Error("boom")

	output := buf.String()
	if !strings.Contains(output, ansiRed) {
		t.Errorf("expected red escape for errors, got: %q", output)
	}
	if !strings.Contains(output, ansiReset) {
		t.Errorf("expected reset escape, got: %q", output)
	}
}

func TestTerminalHandler_NoColour(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newTerminalHandler(&buf, nil, false)).Error("boom")

	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("expected no escape codes, got: %q", buf.String())
	}
}

func TestTerminalHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got: %s", buf.String())
	}
}

func TestTerminalHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTerminalHandler(&buf, nil, false)).
		With("component", "api").
		WithGroup("http")

	logger.Info("request", "status", 401, slog.Group("req", "method", "POST"))

	output := buf.String()
	for _, want := range []string{"component=api", "http.status=401", "http.req.method=POST"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestTerminalHandler_WithAttrsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(newTerminalHandler(&buf, nil, false))
	_ = base.With("scoped", "yes")

	base.Info("plain")
	if strings.Contains(buf.String(), "scoped") {
		t.Errorf("attrs from a derived logger leaked into the base: %s", buf.String())
	}
}

func TestFormatAttrValue_Quoting(t *testing.T) {
	tests := []struct {
		value slog.Value
		want  string
	}{
		{slog.StringValue("plain"), "plain"},
		{slog.StringValue("has space"), `"has space"`},
		{slog.StringValue(""), `""`},
		{slog.StringValue("a=b"), `"a=b"`},
		{slog.IntValue(42), "42"},
	}

	for _, tt := range tests {
		if got := formatAttrValue(tt.value); got != tt.want {
			t.Errorf("formatAttrValue(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
