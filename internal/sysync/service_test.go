package sysync_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"sysync/internal/archive"
	"sysync/internal/model"
	"sysync/internal/sysync"
)

func TestListBackups_Grouping(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	appA := testAppWithSettings(t, "alpha", writeTempFile(t, "alpha.conf", "a"))
	appB := testAppWithSettings(t, "beta", writeTempFile(t, "beta.conf", "b"))
	if err := env.svc.CreateBackup(appA, nil); err != nil {
		t.Fatalf("CreateBackup(alpha) error = %v", err)
	}
	if err := env.svc.CreateBackup(appB, nil); err != nil {
		t.Fatalf("CreateBackup(beta) error = %v", err)
	}

	t.Run("all apps", func(t *testing.T) {
		grouped, err := env.svc.ListBackups("")
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(grouped) != 2 {
			t.Fatalf("got %d groups, want 2", len(grouped))
		}
		if len(grouped["alpha"]) != 1 || len(grouped["beta"]) != 1 {
			t.Errorf("unexpected grouping: %v", grouped)
		}
	})

	t.Run("filtered", func(t *testing.T) {
		grouped, err := env.svc.ListBackups("alpha")
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		if len(grouped) != 1 || len(grouped["alpha"]) != 1 {
			t.Errorf("unexpected grouping: %v", grouped)
		}
	})

	t.Run("filtered with no matches", func(t *testing.T) {
		grouped, err := env.svc.ListBackups("gamma")
		if err != nil {
			t.Fatalf("ListBackups() error = %v", err)
		}
		list, ok := grouped["gamma"]
		if !ok {
			t.Fatal("filtered app missing from result")
		}
		if len(list) != 0 {
			t.Errorf("got %d backups for unknown app, want 0", len(list))
		}
	})
}

func TestGetBackup_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	_, err := env.svc.GetBackup(42)
	if !errors.Is(err, sysync.ErrBackupNotFound) {
		t.Fatalf("GetBackup() error = %v, want ErrBackupNotFound", err)
	}
}

func TestDeleteBackup(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	app := testAppWithSettings(t, "gone", writeTempFile(t, "gone.conf", "x"))
	if err := env.svc.CreateBackup(app, nil); err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	id := backupID(t, env, "gone")

	if err := env.svc.DeleteBackup(id); err != nil {
		t.Fatalf("DeleteBackup() error = %v", err)
	}

	if env.backend.Len() != 0 {
		t.Errorf("backend has %d objects after delete, want 0", env.backend.Len())
	}
	if _, err := env.svc.GetBackup(id); !errors.Is(err, sysync.ErrBackupNotFound) {
		t.Errorf("GetBackup() after delete error = %v, want ErrBackupNotFound", err)
	}

	// Deleting again reports not found.
	if err := env.svc.DeleteBackup(id); !errors.Is(err, sysync.ErrBackupNotFound) {
		t.Errorf("second DeleteBackup() error = %v, want ErrBackupNotFound", err)
	}
}

func TestOpenBackup_StreamsStoredBytes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	app := testAppWithSettings(t, "export", writeTempFile(t, "export.conf", "exported"))
	if err := env.svc.CreateBackup(app, nil); err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	id := backupID(t, env, "export")

	rc, b, err := env.svc.OpenBackup(id)
	if err != nil {
		t.Fatalf("OpenBackup() error = %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	if int64(len(data)) != b.Size {
		t.Errorf("streamed %d bytes, record says %d", len(data), b.Size)
	}
	// Plain archives are zip containers.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("exported archive is not a zip container")
	}
}

func TestImportBackup(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	// Build a sealed archive out-of-band, the way an uploader would.
	stage := t.TempDir()
	target := filepath.Join(t.TempDir(), "live.conf")
	if err := os.MkdirAll(filepath.Join(stage, "config"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stage, "config", filepath.Base(target)), []byte("imported"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	archivePath := filepath.Join(t.TempDir(), "imported_20250101_000000.zip")
	if _, err := archive.Seal(stage, archivePath); err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}

	meta := &model.BackupMetadata{
		Timestamp: "20250101_000000",
		AppName:   "imported",
		Settings: []model.Setting{
			{Name: "profile", Path: target, Type: "config", Size: 8},
		},
		TotalSize: 8,
	}

	storagePath, err := env.svc.ImportBackup("imported", filepath.Base(archivePath), bytes.NewReader(data), meta, nil)
	if err != nil {
		t.Fatalf("ImportBackup() error = %v", err)
	}
	if want := "imported/imported_20250101_000000.zip"; storagePath != want {
		t.Errorf("storage path = %q, want %q", storagePath, want)
	}

	// The imported backup restores like a native one.
	id := backupID(t, env, "imported")
	if err := env.svc.Restore(id, nil, nil, nil); err != nil {
		t.Fatalf("Restore() of imported backup error = %v", err)
	}
	if got := readFile(t, target); got != "imported" {
		t.Errorf("restored content = %q, want %q", got, "imported")
	}
}

func TestStorageUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	usage, err := env.svc.StorageUsage()
	if err != nil {
		t.Fatalf("StorageUsage() error = %v", err)
	}
	if usage.BackupCount != 0 || usage.TotalSize != 0 {
		t.Errorf("empty catalog usage = %+v, want zeros", usage)
	}

	app := testAppWithSettings(t, "used", writeTempFile(t, "used.conf", "content"))
	if err := env.svc.CreateBackup(app, nil); err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	usage, err = env.svc.StorageUsage()
	if err != nil {
		t.Fatalf("StorageUsage() error = %v", err)
	}
	if usage.BackupCount != 1 {
		t.Errorf("BackupCount = %d, want 1", usage.BackupCount)
	}
	if usage.TotalSize <= 0 {
		t.Errorf("TotalSize = %d, want > 0", usage.TotalSize)
	}
}

func TestOperationAudit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	id := env.svc.BeginOperation("backup", "editor")
	if id == 0 {
		t.Fatal("BeginOperation() returned 0")
	}
	env.svc.EndOperation(id, sysync.OperationSuccess)

	ops, err := env.svc.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d operations, want 1", len(ops))
	}
	op := ops[0]
	if op.Operation != "backup" || op.Parameters != "editor" {
		t.Errorf("operation = %+v", op)
	}
	if op.Status != sysync.OperationSuccess {
		t.Errorf("Status = %q, want %q", op.Status, sysync.OperationSuccess)
	}
	if op.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}

	// A zero ID is a no-op.
	env.svc.EndOperation(0, sysync.OperationError)
}

// writeTempFile creates a file with the given name in a fresh temp dir and
// returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
