package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(h)

	logger.Info("backup stored", "chat", "alice", "count", 3)

	output := buf.String()
	for _, want := range []string{"INFO", "backup stored", "chat=alice", "count=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %q", want, output)
		}
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("expected trailing newline, got: %q", output)
	}
}

func TestHandler_TimeFormat(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)

	ts := time.Date(2026, 1, 2, 15, 4, 5, 123_000_000, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "tick", 0)
	if err := h.Handle(t.Context(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "15:04:05.123 ") {
		t.Errorf("expected millisecond timestamp prefix, got: %q", buf.String())
	}
}

func TestHandler_NoTime(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "no time", 0)
	if err := h.Handle(t.Context(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "INFO") {
		t.Errorf("expected output to start with the level, got: %q", buf.String())
	}
}

func TestHandler_Component(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).With(ComponentKey, "engine")

	logger.Info("backup skipped", "reason", "empty")

	output := buf.String()
	if !strings.Contains(output, "[engine] backup skipped") {
		t.Errorf("expected component prefix, got: %q", output)
	}
	if strings.Contains(output, "component=") {
		t.Errorf("component should not be repeated as an attribute: %q", output)
	}

	buf.Reset()
	logger.Info("override", ComponentKey, "restore")
	if !strings.Contains(buf.String(), "[restore] override") {
		t.Errorf("record-level component should win, got: %q", buf.String())
	}
}

func TestHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil)).With("common", "attr").WithGroup("store").With("mode", "chat")

	logger.Info("message", "key", "v")

	output := buf.String()
	for _, want := range []string{"common=attr", "store.mode=chat", "store.key=v"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q: %q", want, output)
		}
	}
	if strings.Contains(output, "store.store.") {
		t.Errorf("group prefix applied twice: %q", output)
	}
}

func TestHandler_QuotesStrings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil))

	logger.Info("preview", "text", "hello there")

	if !strings.Contains(buf.String(), `text="hello there"`) {
		t.Errorf("expected quoted value, got: %q", buf.String())
	}
}

func TestHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})

	ctx := t.Context()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected Info level to be disabled when min level is Warn")
	}
	if !h.Enabled(ctx, slog.LevelWarn) {
		t.Error("expected Warn level to be enabled")
	}
}

func TestHandler_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, nil))

	logger.Info("connecting", "redis_password", "hunter2hunter2", "DSN", "abc")

	output := buf.String()
	if strings.Contains(output, "hunter2hunter2") {
		t.Error("password value should be redacted")
	}
	if !strings.Contains(output, "redis_password=****ter2") {
		t.Errorf("expected masked password, got: %q", output)
	}
	if !strings.Contains(output, "DSN=****") {
		t.Errorf("short secrets are fully masked, got: %q", output)
	}
}

func TestHandler_TraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))

	logger.Log(t.Context(), LevelTrace, "kv get")

	if !strings.Contains(buf.String(), "TRACE kv get") {
		t.Errorf("expected TRACE label, got: %q", buf.String())
	}
}
