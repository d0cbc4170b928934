package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Warn("remote call failed",
		slog.String("route", "GET /api/users"),
		slog.Int("status", 502),
	)

	entry := decode(t, &buf)
	if entry["msg"] != "remote call failed" || entry["level"] != "WARN" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["route"] != "GET /api/users" || entry["status"] != float64(502) {
		t.Errorf("attributes missing: %v", entry)
	}
	if entry["service"] != "btpmatch" {
		t.Errorf("service = %v, want btpmatch", entry["service"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

// TestSetup_RespectsLevel は指定したレベル未満のログを出力しないことを検証する。
func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("ignored")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %s", buf.String())
	}

	buf.Reset()
	l = Setup(&buf, slog.LevelDebug)
	l.Debug("stale result discarded")
	if decode(t, &buf)["level"] != "DEBUG" {
		t.Error("debug should be written at debug level")
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, nil)

	slog.Default().Info("global test", slog.String("visitor_id", "v-1"))

	entry := decode(t, &buf)
	if entry["msg"] != "global test" || entry["visitor_id"] != "v-1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}
