package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSyncHandler_Format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(&syncHandler{w: &buf, opID: "20250310T094500Z"})

	logger.Info("backup started", "app", "editor", "settings", 2)

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		t.Fatalf("got %d tab fields, want 6: %q", len(fields), line)
	}
	if fields[1] != "INFO" {
		t.Errorf("level = %q", fields[1])
	}
	if fields[2] != "20250310T094500Z" {
		t.Errorf("opID = %q", fields[2])
	}
	if fields[3] != "backup started" {
		t.Errorf("message = %q", fields[3])
	}
	if fields[4] != "app=editor" || fields[5] != "settings=2" {
		t.Errorf("attrs = %v", fields[4:])
	}
}

func TestSyncHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := &syncHandler{w: &buf, opID: "op"}
	logger := slog.New(base).With("component", "store")

	logger.Warn("object missing")

	if !strings.Contains(buf.String(), "component=store") {
		t.Errorf("pre-set attr missing: %q", buf.String())
	}
}

func TestReadLog(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	lines := strings.Join([]string{
		"2025-03-10T09:45:00Z\tINFO\top-1\tbackup started\tapp=editor",
		"2025-03-10T09:45:01Z\tINFO\top-2\trestore started\tbackup_id=3",
		"2025-03-10T09:45:02Z\tINFO\top-1\tbackup complete",
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(logDir, "sysync.log"), []byte(lines), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("all lines", func(t *testing.T) {
		var out bytes.Buffer
		if err := ReadLog(logDir, "", &out); err != nil {
			t.Fatalf("ReadLog: %v", err)
		}
		if out.String() != lines {
			t.Errorf("unfiltered output = %q", out.String())
		}
	})

	t.Run("filtered by operation", func(t *testing.T) {
		var out bytes.Buffer
		if err := ReadLog(logDir, "op-1", &out); err != nil {
			t.Fatalf("ReadLog: %v", err)
		}
		got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
		if len(got) != 2 {
			t.Fatalf("got %d lines, want 2: %v", len(got), got)
		}
		for _, l := range got {
			if !strings.Contains(l, "\top-1\t") {
				t.Errorf("line from wrong operation: %q", l)
			}
		}
	})

	t.Run("missing log file", func(t *testing.T) {
		if err := ReadLog(t.TempDir(), "", &bytes.Buffer{}); err == nil {
			t.Error("expected error for missing log file")
		}
	})
}
