// Package store implements the object store: durable persistence of sealed
// archives under per-application storage paths, with the catalog writes for
// each stored archive made in the same critical section.
package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"sysync/internal/model"
	"sysync/internal/sysync"
)

const (
	// sizeTolerance is the allowed difference between the expected and the
	// actual archive size. Intermediate buffering can shift sizes by a few
	// bytes across platforms; the check guards against truncation, not for
	// exact equality.
	sizeTolerance = 1024

	// copyChunkSize is the unit of the streaming copy into the backend.
	copyChunkSize = 1 << 20
)

// Default application classification recorded when the trigger layer didn't
// provide one.
const (
	defaultCategory = "Development"
	defaultAppType  = "Application"
)

// Backend is a byte store addressed by storage path. Implementations report
// missing keys with errors wrapping fs.ErrNotExist.
type Backend interface {
	// Create opens a writer for the object at key, truncating any existing
	// object.
	Create(key string) (io.WriteCloser, error)

	// Open opens the object at key for reading.
	Open(key string) (io.ReadCloser, error)

	// Size returns the byte length of the object at key.
	Size(key string) (int64, error)

	// Remove deletes the object at key.
	Remove(key string) error
}

// Store implements sysync.ObjectStore over a Backend and the catalog.
// Writes ("copy + verify + register" and deletes) are serialized by a single
// mutex; this is coarser than per-storage-path but storage paths embed a
// timestamp, so contention is rare.
type Store struct {
	backend Backend
	catalog sysync.Catalog
	logger  sysync.Logger
	mu      sync.Mutex
}

// NewStore creates a Store over the given backend and catalog.
func NewStore(backend Backend, catalog sysync.Catalog, logger sysync.Logger) *Store {
	return &Store{backend: backend, catalog: catalog, logger: logger}
}

// Put stores the sealed archive and records the application and backup rows.
// See sysync.ObjectStore for the contract; on any failure after the copy
// started the partial object is removed, so a failed Put leaves both catalog
// and backend exactly as they were.
func (s *Store) Put(app *model.AppInfo, archivePath string, meta *model.BackupMetadata, expectedSize int64, rep sysync.Reporter) (string, error) {
	if rep == nil {
		rep = sysync.NopReporter{}
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("stat archive: %w", err)
	}
	fileSize := info.Size()

	if diff := fileSize - expectedSize; diff > sizeTolerance || diff < -sizeTolerance {
		return "", fmt.Errorf("expected %d bytes, archive is %d: %w", expectedSize, fileSize, sysync.ErrSizeMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category := app.Category
	if category == "" {
		category = defaultCategory
	}
	appType := app.Type
	if appType == "" {
		appType = defaultAppType
	}

	appRow, err := s.catalog.UpsertApplication(&model.Application{
		Name:     app.Name,
		Path:     app.Path,
		Category: category,
		Type:     appType,
		Size:     fileSize,
		Settings: meta.Settings,
	})
	if err != nil {
		return "", fmt.Errorf("upserting application: %w", err)
	}

	key := path.Join(app.Name, filepath.Base(archivePath))
	if err := s.copyIn(archivePath, key, fileSize, rep); err != nil {
		return "", err
	}

	// Re-read the destination: silent truncation on the storage medium must
	// not go unnoticed.
	storedSize, err := s.backend.Size(key)
	if err != nil {
		s.removeObject(key)
		return "", fmt.Errorf("verifying stored archive: %w", err)
	}
	if storedSize != fileSize {
		s.removeObject(key)
		return "", fmt.Errorf("wrote %d of %d bytes to %s: %w", storedSize, fileSize, key, sysync.ErrCopyVerificationFailed)
	}

	_, err = s.catalog.InsertBackup(&model.Backup{
		AppID:       appRow.ID,
		Filename:    filepath.Base(archivePath),
		StoragePath: key,
		Size:        fileSize,
		Metadata:    *meta,
	})
	if err != nil {
		// No orphan objects: the just-written archive goes with the failed row.
		s.removeObject(key)
		return "", fmt.Errorf("recording backup: %w", err)
	}

	s.logger.Info("archive stored", "app", app.Name, "storage_path", key, "size", fileSize)
	return key, nil
}

// copyIn streams the archive into the backend in fixed-size chunks,
// reporting copied/size*100 progress.
func (s *Store) copyIn(archivePath, key string, fileSize int64, rep sysync.Reporter) error {
	src, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer src.Close()

	dst, err := s.backend.Create(key)
	if err != nil {
		return fmt.Errorf("creating object %s: %w", key, err)
	}

	buf := make([]byte, copyChunkSize)
	var copied int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				dst.Close()
				s.removeObject(key)
				return fmt.Errorf("writing object %s: %w", key, werr)
			}
			copied += int64(n)
			if fileSize > 0 {
				rep.Report(float64(copied) / float64(fileSize) * 100)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			dst.Close()
			s.removeObject(key)
			return fmt.Errorf("reading archive: %w", rerr)
		}
	}

	if err := dst.Close(); err != nil {
		s.removeObject(key)
		return fmt.Errorf("finalizing object %s: %w", key, err)
	}
	return nil
}

// Get copies the stored archive to destination, creating parent directories.
func (s *Store) Get(storagePath, destination string) error {
	src, err := s.backend.Open(storagePath)
	if err != nil {
		return fmt.Errorf("opening object %s: %w", storagePath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	dst, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destination)
		return fmt.Errorf("copying object %s: %w", storagePath, err)
	}
	return dst.Close()
}

// Open returns a reader over the stored archive and its size.
func (s *Store) Open(storagePath string) (io.ReadCloser, int64, error) {
	size, err := s.backend.Size(storagePath)
	if err != nil {
		return nil, 0, fmt.Errorf("stat object %s: %w", storagePath, err)
	}
	rc, err := s.backend.Open(storagePath)
	if err != nil {
		return nil, 0, fmt.Errorf("opening object %s: %w", storagePath, err)
	}
	return rc, size, nil
}

// Delete removes the backup's object and catalog record. An object that is
// already gone is tolerated; any other removal failure aborts before the
// catalog row is touched, so a row never outlives its object silently.
func (s *Store) Delete(backupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.catalog.GetBackup(backupID)
	if err != nil {
		return fmt.Errorf("looking up backup: %w", err)
	}
	if b == nil {
		return fmt.Errorf("backup %d: %w", backupID, sysync.ErrBackupNotFound)
	}

	if err := s.backend.Remove(b.StoragePath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing object %s: %w", b.StoragePath, err)
		}
		s.logger.Warn("stored object already gone", "storage_path", b.StoragePath)
	}

	if err := s.catalog.DeleteBackup(backupID); err != nil {
		return fmt.Errorf("deleting backup record: %w", err)
	}
	return nil
}

// removeObject is best-effort cleanup of a partially written object.
func (s *Store) removeObject(key string) {
	if err := s.backend.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("cleanup of partial object failed", "storage_path", key, "error", err)
	}
}

// Compile-time check that Store implements sysync.ObjectStore.
var _ sysync.ObjectStore = (*Store)(nil)
