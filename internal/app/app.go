// Package app is the wiring layer between the CLI and the backup service.
// It constructs every dependency from configuration and manages lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sysync/internal/catalog"
	"sysync/internal/config"
	"sysync/internal/encryption"
	"sysync/internal/locator"
	"sysync/internal/model"
	"sysync/internal/server"
	"sysync/internal/store"
	"sysync/internal/sysync"
)

// SyncApp exposes high-level operations to the CLI and owns the catalog
// lifecycle. The caller must call Close when done.
type SyncApp struct {
	cfg       *config.Config
	catalog   sysync.Catalog
	store     sysync.ObjectStore
	encryptor sysync.Encryptor
	locator   locator.Locator
	service   *sysync.Service
	logger    sysync.Logger
	op        *AuditedOperation
	logFile   *os.File
}

// NewSyncApp creates a fully wired SyncApp from the given config.
// operation identifies the CLI command being run (e.g. "backup", "restore").
func NewSyncApp(cfg *config.Config, operation string) (*SyncApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	st, err := store.NewStoreFromConfig(cfg.Store, cat, logger)
	if err != nil {
		cat.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		cat.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	loc := locator.NewStaticLocator(cfg.Apps)
	svc := sysync.NewService(cat, st, enc, logger, sysync.RealClock{})

	return &SyncApp{
		cfg:       cfg,
		catalog:   cat,
		store:     st,
		encryptor: enc,
		locator:   loc,
		service:   svc,
		logger:    logger,
		op:        NewAuditedOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the audit record to the catalog, giving it an
// auto-increment ID. Only catalog-mutating commands call this.
func (a *SyncApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.catalog.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

func (a *SyncApp) fail(err error) error {
	if err != nil {
		a.op.Status = "error"
	}
	return err
}

// Apps lists the configured applications.
func (a *SyncApp) Apps() []model.AppInfo {
	return a.locator.Applications()
}

// Backup runs a full backup of the named application, reporting progress to rep.
func (a *SyncApp) Backup(appName string, rep sysync.Reporter) error {
	app, err := a.locator.Find(appName)
	if err != nil {
		return err
	}
	if err := a.persistOperation(appName); err != nil {
		return err
	}
	return a.fail(a.service.CreateBackup(app, rep))
}

// ListBackups returns backups grouped by application, newest first.
// An empty appName lists everything.
func (a *SyncApp) ListBackups(appName string) (map[string][]model.BackupSummary, error) {
	return a.service.ListBackups(appName)
}

// IsEncrypted reports whether the backup's archive requires a passphrase to
// restore.
func (a *SyncApp) IsEncrypted(backupID int64) (bool, error) {
	b, err := a.service.GetBackup(backupID)
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(b.Filename, ".age"), nil
}

// Restore replaces the live settings of the backup's application with the
// archived ones. passphrase is required only for encrypted archives; when
// selectedPaths is non-empty, only those settings are restored.
func (a *SyncApp) Restore(backupID int64, selectedPaths []string, passphrase string, rep sysync.Reporter) error {
	encrypted, err := a.IsEncrypted(backupID)
	if err != nil {
		return err
	}

	var decrypt sysync.DecryptionContext
	if encrypted {
		if a.encryptor == nil {
			return fmt.Errorf("backup %d is encrypted but encryption is not configured", backupID)
		}
		decrypt, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}

	if err := a.persistOperation(strconv.FormatInt(backupID, 10)); err != nil {
		return err
	}
	return a.fail(a.service.Restore(backupID, selectedPaths, decrypt, rep))
}

// Delete removes a backup's archive and catalog record.
func (a *SyncApp) Delete(backupID int64) error {
	if err := a.persistOperation(strconv.FormatInt(backupID, 10)); err != nil {
		return err
	}
	return a.fail(a.service.DeleteBackup(backupID))
}

// Download copies the sealed archive to destination. When destination is
// empty the backup's original filename in the current directory is used.
// Returns the path written.
func (a *SyncApp) Download(backupID int64, destination string) (string, error) {
	rc, b, err := a.service.OpenBackup(backupID)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if destination == "" {
		destination = b.Filename
	}

	f, err := os.Create(destination)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", destination, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(destination)
		return "", fmt.Errorf("writing %s: %w", destination, err)
	}
	return destination, f.Close()
}

// History returns the most recent audited operations.
func (a *SyncApp) History(limit int) ([]*model.Operation, error) {
	return a.service.History(limit)
}

// StorageUsage reports total stored bytes and backup count.
func (a *SyncApp) StorageUsage() (*model.StorageUsage, error) {
	return a.service.StorageUsage()
}

// SetupEncryption generates and stores a fresh key pair protected by the
// passphrase.
func (a *SyncApp) SetupEncryption(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled in the configuration")
	}
	return a.encryptor.Setup(passphrase)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *SyncApp) Serve(ctx context.Context) error {
	srv := server.NewServer(a.cfg.Server.Addr, a.service, a.locator, a.encryptor, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return <-errCh
	}
}

// Close finalizes the audit record and closes all resources.
func (a *SyncApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.catalog.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation record: %w", err)
		}
	}

	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
