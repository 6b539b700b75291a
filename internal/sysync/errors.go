package sysync

import "errors"

// Sentinel errors for the engine's failure taxonomy. Call sites wrap these
// with fmt.Errorf and %w; callers check with errors.Is.
var (
	// ErrNoValidSettings means every descriptor's source path was missing
	// when the backup started.
	ErrNoValidSettings = errors.New("no valid settings paths to back up")

	// ErrNoFilesProcessed means the filtered settings list was non-empty but
	// zero files could be staged.
	ErrNoFilesProcessed = errors.New("no files were staged for backup")

	// ErrDuplicateSettingType means two descriptors in one backup share a
	// type. Types partition the archive layout, so duplicates would collide
	// on restore.
	ErrDuplicateSettingType = errors.New("duplicate setting type in backup")

	// ErrSizeMismatch means the archive handed to the object store differs
	// from the expected size by more than the tolerance.
	ErrSizeMismatch = errors.New("archive size does not match expected size")

	// ErrCopyVerificationFailed means the stored object's size disagrees
	// with the source archive after the copy completed.
	ErrCopyVerificationFailed = errors.New("stored archive failed size verification")

	// ErrIntegrityViolation means a catalog uniqueness constraint was hit,
	// typically a duplicate storage path.
	ErrIntegrityViolation = errors.New("catalog integrity violation")

	// ErrBackupNotFound means no catalog record matches the given backup ID.
	ErrBackupNotFound = errors.New("backup not found")

	// ErrDownloadFailed means the archive could not be fetched from the
	// object store during restore.
	ErrDownloadFailed = errors.New("failed to download backup archive")

	// ErrExtractionFailed means the downloaded archive could not be unsealed.
	ErrExtractionFailed = errors.New("failed to extract backup archive")
)
