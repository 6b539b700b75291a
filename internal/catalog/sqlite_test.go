package catalog

import (
	"errors"
	"testing"
	"time"

	"sysync/internal/model"
	"sysync/internal/sysync"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(":memory:", nil)
	if err != nil {
		t.Fatalf("creating catalog: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testApplication(name string) *model.Application {
	return &model.Application{
		Name:     name,
		Path:     "/home/user/.config/" + name,
		Category: "Development",
		Type:     "Application",
		Size:     1024,
		Settings: []model.Setting{
			{Name: "main config", Path: "/home/user/.config/" + name, Type: "config", Size: 1024},
		},
	}
}

func insertTestBackup(t *testing.T, c *SQLiteCatalog, appID int64, storagePath string) *model.Backup {
	t.Helper()
	b, err := c.InsertBackup(&model.Backup{
		AppID:       appID,
		Filename:    "app_20250310_094500.zip",
		StoragePath: storagePath,
		Size:        2048,
		Metadata: model.BackupMetadata{
			Timestamp: "20250310_094500",
			AppName:   "app",
			Settings:  []model.Setting{{Name: "main config", Path: "/p", Type: "config", Size: 2048}},
			TotalSize: 2048,
		},
	})
	if err != nil {
		t.Fatalf("InsertBackup() error = %v", err)
	}
	return b
}

func TestUpsertApplication(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	first, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	if first.ID == 0 {
		t.Fatal("inserted application has no ID")
	}
	if len(first.Settings) != 1 {
		t.Errorf("Settings round-trip failed: %+v", first.Settings)
	}

	// Second upsert with the same (name, path) refreshes fields, keeps the row.
	update := testApplication("editor")
	update.Category = "Productivity"
	update.Size = 4096
	second, err := c.UpsertApplication(update)
	if err != nil {
		t.Fatalf("second UpsertApplication() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %d != %d", second.ID, first.ID)
	}
	if second.Category != "Productivity" || second.Size != 4096 {
		t.Errorf("fields not refreshed: %+v", second)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Error("updated_at went backwards")
	}

	// A different path is a different application.
	other := testApplication("editor")
	other.Path = "/opt/editor"
	third, err := c.UpsertApplication(other)
	if err != nil {
		t.Fatalf("third UpsertApplication() error = %v", err)
	}
	if third.ID == first.ID {
		t.Error("application with different path reused the row")
	}
}

func TestInsertBackup_DuplicateStoragePath(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	app, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}

	insertTestBackup(t, c, app.ID, "editor/one.zip")

	_, err = c.InsertBackup(&model.Backup{
		AppID:       app.ID,
		Filename:    "one.zip",
		StoragePath: "editor/one.zip",
		Size:        10,
	})
	if !errors.Is(err, sysync.ErrIntegrityViolation) {
		t.Fatalf("InsertBackup() duplicate error = %v, want ErrIntegrityViolation", err)
	}
}

func TestGetBackup(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	app, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	inserted := insertTestBackup(t, c, app.ID, "editor/one.zip")

	got, err := c.GetBackup(inserted.ID)
	if err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetBackup() returned nil for existing row")
	}
	if got.AppName != "editor" {
		t.Errorf("AppName = %q, want %q (joined from applications)", got.AppName, "editor")
	}
	if got.Metadata.TotalSize != 2048 {
		t.Errorf("metadata round-trip failed: %+v", got.Metadata)
	}
	if got.RestoredAt != nil {
		t.Error("RestoredAt set on fresh backup")
	}

	missing, err := c.GetBackup(9999)
	if err != nil {
		t.Fatalf("GetBackup(missing) error = %v", err)
	}
	if missing != nil {
		t.Error("GetBackup() returned a row for unknown ID")
	}
}

func TestListBackups_OrderAndFilter(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	appA, err := c.UpsertApplication(testApplication("alpha"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	appB, err := c.UpsertApplication(testApplication("beta"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}

	first := insertTestBackup(t, c, appA.ID, "alpha/one.zip")
	second := insertTestBackup(t, c, appA.ID, "alpha/two.zip")
	insertTestBackup(t, c, appB.ID, "beta/one.zip")

	all, err := c.ListBackups("")
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d backups, want 3", len(all))
	}

	alphaOnly, err := c.ListBackups("alpha")
	if err != nil {
		t.Fatalf("ListBackups(alpha) error = %v", err)
	}
	if len(alphaOnly) != 2 {
		t.Fatalf("got %d alpha backups, want 2", len(alphaOnly))
	}
	// Newest first: the later insert (higher ID) leads.
	if alphaOnly[0].ID != second.ID || alphaOnly[1].ID != first.ID {
		t.Errorf("ordering wrong: got IDs %d, %d", alphaOnly[0].ID, alphaOnly[1].ID)
	}
}

func TestMarkRestored(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	app, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	b := insertTestBackup(t, c, app.ID, "editor/one.zip")

	if err := c.MarkRestored(b.ID); err != nil {
		t.Fatalf("MarkRestored() error = %v", err)
	}

	got, err := c.GetBackup(b.ID)
	if err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if got.RestoredAt == nil {
		t.Fatal("RestoredAt not set")
	}
	firstStamp := *got.RestoredAt

	// Restoring again overwrites the timestamp; a missing ID is a no-op.
	time.Sleep(10 * time.Millisecond)
	if err := c.MarkRestored(b.ID); err != nil {
		t.Fatalf("second MarkRestored() error = %v", err)
	}
	got, _ = c.GetBackup(b.ID)
	if got.RestoredAt.Before(firstStamp) {
		t.Error("RestoredAt went backwards")
	}
	if err := c.MarkRestored(9999); err != nil {
		t.Errorf("MarkRestored(missing) error = %v, want nil", err)
	}
}

func TestDeleteBackup_Idempotent(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)
	app, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	b := insertTestBackup(t, c, app.ID, "editor/one.zip")

	if err := c.DeleteBackup(b.ID); err != nil {
		t.Fatalf("DeleteBackup() error = %v", err)
	}
	got, err := c.GetBackup(b.ID)
	if err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if got != nil {
		t.Error("backup still present after delete")
	}
	if err := c.DeleteBackup(b.ID); err != nil {
		t.Errorf("second DeleteBackup() error = %v, want nil", err)
	}
}

func TestStorageUsage(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	usage, err := c.StorageUsage()
	if err != nil {
		t.Fatalf("StorageUsage() error = %v", err)
	}
	if usage.TotalSize != 0 || usage.BackupCount != 0 {
		t.Errorf("empty usage = %+v, want zeros", usage)
	}

	app, err := c.UpsertApplication(testApplication("editor"))
	if err != nil {
		t.Fatalf("UpsertApplication() error = %v", err)
	}
	insertTestBackup(t, c, app.ID, "editor/one.zip")
	insertTestBackup(t, c, app.ID, "editor/two.zip")

	usage, err = c.StorageUsage()
	if err != nil {
		t.Fatalf("StorageUsage() error = %v", err)
	}
	if usage.BackupCount != 2 {
		t.Errorf("BackupCount = %d, want 2", usage.BackupCount)
	}
	if usage.TotalSize != 4096 {
		t.Errorf("TotalSize = %d, want 4096", usage.TotalSize)
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t)

	op, err := c.CreateOperation("backup", "editor")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if op.ID == 0 {
		t.Fatal("operation has no ID")
	}
	if op.Status != "running" {
		t.Errorf("Status = %q, want %q", op.Status, "running")
	}

	if err := c.FinishOperation(op.ID, "success"); err != nil {
		t.Fatalf("FinishOperation() error = %v", err)
	}

	ops, err := c.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d operations, want 1", len(ops))
	}
	if ops[0].Status != "success" || ops[0].FinishedAt == nil {
		t.Errorf("operation not finished: %+v", ops[0])
	}

	// Newest first.
	second, err := c.CreateOperation("restore", "1")
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	ops, err = c.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 2 || ops[0].ID != second.ID {
		t.Errorf("ordering wrong: %+v", ops)
	}
}
