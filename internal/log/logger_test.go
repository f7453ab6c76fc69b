package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatText, Component: ComponentLedger, Output: &buf})

	logger.Info("room added", FieldEntityID, "r101")
	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "entity_id=r101") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buf.String())
	}
}

func TestNewWithHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithHandler(slog.NewTextHandler(&buf, nil), "")

	logger.Warn("seed skipped")
	if !strings.Contains(buf.String(), "component=app") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestNewHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(FormatJSON, slog.LevelInfo, &buf)).Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(FormatPretty, slog.LevelInfo, &buf)).Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("pretty output = %q", buf.String())
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Output: &buf, Component: ComponentHTTP})

	h := Middleware(logger, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Errorf("fallback logger = %+v", l)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	ctx := NewContext(context.Background(), New(Config{Format: FormatText, Output: &buf}))

	LogError(ctx, "save failed", errors.New("disk full"), ComponentStorage, OpCreate, ErrorTypeDatabase, nil)
	out := buf.String()
	for _, want := range []string{"component=storage", "operation=create", "error_type=database_error", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
