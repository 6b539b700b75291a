package sysync

import (
	"io"

	"sysync/internal/model"
)

// ObjectStore persists sealed archives and recalls them by storage path. It
// also owns the catalog writes for the application and backup records made
// during Put, so that "copy + verify + register" is one logically atomic step
// from the engine's point of view.
type ObjectStore interface {
	// Put verifies the archive's size against expectedSize (within a small
	// tolerance), upserts the application record, copies the archive into
	// the store in fixed-size chunks reporting copied/size*100 progress,
	// re-checks the destination size, and inserts the backup record. On any
	// failure after the copy started, the partially written object is
	// removed so the catalog and store stay consistent. Returns the storage
	// path the archive was recorded under.
	Put(app *model.AppInfo, archivePath string, meta *model.BackupMetadata, expectedSize int64, rep Reporter) (string, error)

	// Get copies the stored archive to destination, creating parent
	// directories as needed.
	Get(storagePath, destination string) error

	// Open returns a reader over the stored archive and its size, for
	// streaming export.
	Open(storagePath string) (io.ReadCloser, int64, error)

	// Delete removes the backup's stored object and its catalog record.
	// Both removals are attempted even if the object is already gone.
	Delete(backupID int64) error
}
