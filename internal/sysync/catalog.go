package sysync

import "sysync/internal/model"

// Terminal statuses for operation audit records.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Catalog provides transactional persistence for application and backup
// records. It is the single source of truth for what exists: a backup row's
// storage path is a non-owning reference into the object store, and the two
// must never be mutated independently.
type Catalog interface {
	// UpsertApplication updates the application matching (Name, Path) or
	// inserts a new row. On update, Category, Type, Size, Settings and the
	// updated_at timestamp are always refreshed. Returns the stored row.
	UpsertApplication(app *model.Application) (*model.Application, error)

	// InsertBackup creates a new backup record. Fails wrapping
	// ErrIntegrityViolation if the storage path is already recorded —
	// archives are write-once.
	InsertBackup(b *model.Backup) (*model.Backup, error)

	// GetBackup returns the backup with the given ID, joined with its owning
	// application's name. Returns nil if no row matches.
	GetBackup(id int64) (*model.Backup, error)

	// ListBackups returns backups joined with their owning application's
	// name, newest first. An empty appName returns all backups.
	ListBackups(appName string) ([]*model.Backup, error)

	// MarkRestored sets the backup's restored_at timestamp to now,
	// overwriting any previous value. A missing ID is not an error.
	MarkRestored(id int64) error

	// DeleteBackup removes the backup record. A missing ID is not an error.
	DeleteBackup(id int64) error

	// StorageUsage returns the total stored bytes and backup count.
	StorageUsage() (*model.StorageUsage, error)

	// Operation audit records

	// CreateOperation records the start of a mutating operation.
	CreateOperation(operation, parameters string) (*model.Operation, error)

	// FinishOperation marks an operation finished with the given status.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// Close closes the underlying store.
	Close() error
}
