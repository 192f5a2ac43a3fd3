package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"manifold/internal/config"
	"manifold/internal/logging"
	"manifold/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon booted")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "manifold.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon booted") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleHoistsComponentAndFormatsAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	base, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger := logging.NewComponentLogger(base, "orchestrator")
	logger.Info("workflow advanced",
		logging.String(logging.FieldEntityID, "veh-7"),
		logging.String("reason", "analysis result received"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "orchestrator: workflow advanced") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "entity_id=veh-7") {
		t.Fatalf("expected entity attr, got %q", line)
	}
	if !strings.Contains(line, `reason="analysis result received"`) {
		t.Fatalf("expected quoted multi-word value, got %q", line)
	}
}

func TestJSONHandlerUsesStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.json")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Warn("deadline expired", logging.String(logging.FieldMessageID, "msg-1"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record["msg"] != "deadline expired" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["level"] != "warn" {
		t.Fatalf("level = %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("expected ts key")
	}
	if record["message_id"] != "msg-1" {
		t.Fatalf("message_id = %v", record["message_id"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithEntityID(ctx, "veh-19")
	ctx = services.WithStage(ctx, "scheduling")
	ctx = services.WithCorrelationID(ctx, "wf-veh-19-1")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if record[logging.FieldEntityID] != "veh-19" {
		t.Fatalf("entity_id = %v", record[logging.FieldEntityID])
	}
	if record[logging.FieldStage] != "scheduling" {
		t.Fatalf("stage = %v", record[logging.FieldStage])
	}
	if record[logging.FieldCorrelationID] != "wf-veh-19-1" {
		t.Fatalf("correlation_id = %v", record[logging.FieldCorrelationID])
	}
}

func TestCleanupOldLogsHonorsRetention(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "manifold-old.log")
	if err := os.WriteFile(old, []byte("old"), 0o644); err != nil {
		t.Fatalf("write old log: %v", err)
	}
	stale := timeDaysAgo(t, old, 90)
	current := filepath.Join(dir, "manifold-current.log")
	if err := os.WriteFile(current, []byte("new"), 0o644); err != nil {
		t.Fatalf("write current log: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), dir, "manifold-*.log", 30, current)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err = %v", err)
	}
	if _, err := os.Stat(current); err != nil {
		t.Fatalf("expected current log retained: %v", err)
	}
}

func timeDaysAgo(t *testing.T, path string, days int) string {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	when := info.ModTime().AddDate(0, 0, -days)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}
