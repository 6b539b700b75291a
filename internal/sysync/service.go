package sysync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"sysync/internal/model"
)

// Service is the orchestration layer that turns setting lists into stored,
// cataloged archives and back again. It coordinates the archive builder, the
// object store and the catalog; each operation is a single linear sequence
// intended to run on one background goroutine per trigger.
type Service struct {
	catalog   Catalog
	store     ObjectStore
	encryptor Encryptor // nil disables at-rest encryption
	logger    Logger
	clock     Clock
}

// NewService creates a Service with the provided dependencies.
// encryptor may be nil; archives are then stored as plain zip files.
func NewService(catalog Catalog, store ObjectStore, encryptor Encryptor, logger Logger, clock Clock) *Service {
	return &Service{
		catalog:   catalog,
		store:     store,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
	}
}

// ListBackups returns known backups grouped by application name, newest
// first within each group. If appName is non-empty, the result contains
// exactly that key, with an empty list when nothing matches.
func (s *Service) ListBackups(appName string) (map[string][]model.BackupSummary, error) {
	backups, err := s.catalog.ListBackups(appName)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	grouped := make(map[string][]model.BackupSummary)
	for _, b := range backups {
		grouped[b.AppName] = append(grouped[b.AppName], model.BackupSummary{
			ID:          b.ID,
			Timestamp:   b.Metadata.Timestamp,
			Size:        b.Size,
			CreatedAt:   b.CreatedAt,
			StoragePath: b.StoragePath,
			Filename:    b.Filename,
			Settings:    b.Metadata.Settings,
		})
	}

	if appName != "" {
		if _, ok := grouped[appName]; !ok {
			grouped[appName] = []model.BackupSummary{}
		}
	}
	return grouped, nil
}

// GetBackup returns the catalog record for one backup, or an error wrapping
// ErrBackupNotFound if the ID is unknown.
func (s *Service) GetBackup(backupID int64) (*model.Backup, error) {
	b, err := s.catalog.GetBackup(backupID)
	if err != nil {
		return nil, fmt.Errorf("looking up backup %d: %w", backupID, err)
	}
	if b == nil {
		return nil, fmt.Errorf("backup %d: %w", backupID, ErrBackupNotFound)
	}
	return b, nil
}

// DeleteBackup removes a backup's stored archive and its catalog record.
func (s *Service) DeleteBackup(backupID int64) error {
	if err := s.store.Delete(backupID); err != nil {
		return fmt.Errorf("deleting backup %d: %w", backupID, err)
	}
	s.logger.Info("backup deleted", "backup_id", backupID)
	return nil
}

// OpenBackup returns a reader over the sealed archive for export, together
// with the backup record (for filename and size). The caller must close the
// reader. The archive is streamed exactly as stored; encrypted archives are
// exported as ciphertext.
func (s *Service) OpenBackup(backupID int64) (io.ReadCloser, *model.Backup, error) {
	b, err := s.GetBackup(backupID)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.store.Open(b.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stored archive %s: %w", b.StoragePath, err)
	}
	return rc, b, nil
}

// ImportBackup registers an externally produced sealed archive through the
// regular storage path. The metadata is supplied by the uploader and stored
// as-is; the expected size is the number of bytes actually received.
func (s *Service) ImportBackup(appName, filename string, r io.Reader, meta *model.BackupMetadata, rep Reporter) (string, error) {
	if rep == nil {
		rep = NopReporter{}
	}

	tmpPath := filepath.Join(os.TempDir(), "sysync-upload-"+uuid.New().String()+filepath.Ext(filename))
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file for upload: %w", err)
	}
	defer os.Remove(tmpPath)

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("saving uploaded archive: %w", err)
	}

	app := &model.AppInfo{
		Name:     appName,
		Path:     representativePath(meta.Settings),
		Category: meta.Category,
		Type:     meta.Type,
		Settings: meta.Settings,
	}

	storagePath, err := s.store.Put(app, tmpPath, meta, written, rep)
	if err != nil {
		return "", fmt.Errorf("storing uploaded archive: %w", err)
	}

	s.logger.Info("backup imported", "app", appName, "storage_path", storagePath, "size", written)
	return storagePath, nil
}

// StorageUsage reports total stored bytes and backup count from the catalog.
func (s *Service) StorageUsage() (*model.StorageUsage, error) {
	usage, err := s.catalog.StorageUsage()
	if err != nil {
		return nil, fmt.Errorf("reading storage usage: %w", err)
	}
	return usage, nil
}

// BeginOperation records the start of a mutating operation in the audit log.
// Failures are logged, not returned: auditing never blocks the operation
// itself. The returned ID is 0 when recording failed.
func (s *Service) BeginOperation(operation, parameters string) int64 {
	op, err := s.catalog.CreateOperation(operation, parameters)
	if err != nil {
		s.logger.Warn("recording operation failed", "operation", operation, "error", err)
		return 0
	}
	return op.ID
}

// EndOperation marks a previously begun operation finished. A zero ID is a
// no-op, pairing with a failed BeginOperation.
func (s *Service) EndOperation(id int64, status string) {
	if id == 0 {
		return
	}
	if err := s.catalog.FinishOperation(id, status); err != nil {
		s.logger.Warn("finishing operation record failed", "operation_id", id, "error", err)
	}
}

// History returns the most recent operation audit records.
func (s *Service) History(limit int) ([]*model.Operation, error) {
	ops, err := s.catalog.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// representativePath picks the application path recorded alongside a backup:
// the first descriptor's source path, which is stable across backups of the
// same setting list.
func representativePath(settings []model.Setting) string {
	if len(settings) == 0 {
		return ""
	}
	return settings[0].Path
}
