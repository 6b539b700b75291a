// Package catalog implements the durable record store for applications,
// backups and operation audit rows on SQLite.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mattn/go-sqlite3" // SQLite driver, also used for constraint error detection

	"sysync/internal/catalog/migrations"
	"sysync/internal/model"
	"sysync/internal/sysync"
)

// SQLiteCatalog implements the sysync.Catalog interface using SQLite.
type SQLiteCatalog struct {
	db    *sql.DB
	clock sysync.Clock
	path  string
}

// NewSQLiteCatalog opens (or creates) a catalog at path and migrates it to
// the latest schema. path can be ":memory:" for an in-memory catalog.
func NewSQLiteCatalog(path string, clock sysync.Clock) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}

	if clock == nil {
		clock = sysync.RealClock{}
	}
	return &SQLiteCatalog{db: db, clock: clock, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the catalog relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	// SQLite ships with foreign keys off for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

// UpsertApplication updates the row matching (name, path) or inserts a new
// one. Category, type, size, settings and updated_at are always refreshed on
// update.
func (c *SQLiteCatalog) UpsertApplication(app *model.Application) (*model.Application, error) {
	settingsJSON, err := json.Marshal(app.Settings)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	now := c.clock.Now()

	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM applications WHERE name = ? AND path = ?`, app.Name, app.Path).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(`
			INSERT INTO applications (name, path, category, type, size, settings, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			app.Name, app.Path, app.Category, app.Type, app.Size, string(settingsJSON), now, now)
		if err != nil {
			return nil, fmt.Errorf("inserting application: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading inserted application id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("finding application: %w", err)
	default:
		_, err = tx.Exec(`
			UPDATE applications
			SET category = ?, type = ?, size = ?, settings = ?, updated_at = ?
			WHERE id = ?`,
			app.Category, app.Type, app.Size, string(settingsJSON), now, id)
		if err != nil {
			return nil, fmt.Errorf("updating application: %w", err)
		}
	}

	stored, err := scanApplication(tx.QueryRow(`
		SELECT id, name, path, category, type, size, settings, created_at, updated_at
		FROM applications WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reading application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return stored, nil
}

// InsertBackup creates a new backup record. A duplicate storage path fails
// wrapping sysync.ErrIntegrityViolation.
func (c *SQLiteCatalog) InsertBackup(b *model.Backup) (*model.Backup, error) {
	metaJSON, err := json.Marshal(b.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	res, err := c.db.Exec(`
		INSERT INTO backups (app_id, filename, storage_path, size, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.AppID, b.Filename, b.StoragePath, b.Size, string(metaJSON), c.clock.Now())
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("storage path %s: %w", b.StoragePath, sysync.ErrIntegrityViolation)
		}
		return nil, fmt.Errorf("inserting backup: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted backup id: %w", err)
	}
	return c.GetBackup(id)
}

const backupColumns = `
	b.id, b.app_id, a.name, b.filename, b.storage_path, b.size, b.metadata, b.created_at, b.restored_at
	FROM backups b
	JOIN applications a ON b.app_id = a.id`

// GetBackup returns one backup joined with its application's name, or nil
// when the ID is unknown.
func (c *SQLiteCatalog) GetBackup(id int64) (*model.Backup, error) {
	b, err := scanBackup(c.db.QueryRow(`SELECT`+backupColumns+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding backup: %w", err)
	}
	return b, nil
}

// ListBackups returns backups newest first, optionally filtered by
// application name.
func (c *SQLiteCatalog) ListBackups(appName string) ([]*model.Backup, error) {
	query := `SELECT` + backupColumns
	args := []any{}
	if appName != "" {
		query += ` WHERE a.name = ?`
		args = append(args, appName)
	}
	query += ` ORDER BY b.created_at DESC, b.id DESC`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	defer rows.Close()

	var backups []*model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning backup: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backups: %w", err)
	}
	return backups, nil
}

// MarkRestored sets the restored_at timestamp, overwriting any prior value.
// A missing ID changes no rows and is not an error.
func (c *SQLiteCatalog) MarkRestored(id int64) error {
	_, err := c.db.Exec(`UPDATE backups SET restored_at = ? WHERE id = ?`, c.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("marking backup restored: %w", err)
	}
	return nil
}

// DeleteBackup removes the backup row. A missing ID is not an error.
func (c *SQLiteCatalog) DeleteBackup(id int64) error {
	if _, err := c.db.Exec(`DELETE FROM backups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting backup: %w", err)
	}
	return nil
}

// StorageUsage sums what the backups table records.
func (c *SQLiteCatalog) StorageUsage() (*model.StorageUsage, error) {
	usage := &model.StorageUsage{}
	err := c.db.QueryRow(`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM backups`).
		Scan(&usage.TotalSize, &usage.BackupCount)
	if err != nil {
		return nil, fmt.Errorf("reading storage usage: %w", err)
	}
	return usage, nil
}

// CreateOperation records the start of a mutating operation.
func (c *SQLiteCatalog) CreateOperation(operation, parameters string) (*model.Operation, error) {
	started := c.clock.Now()
	res, err := c.db.Exec(`
		INSERT INTO operations (operation, parameters, status, started_at)
		VALUES (?, ?, 'running', ?)`, operation, parameters, started)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted operation id: %w", err)
	}
	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
		StartedAt:  started,
	}, nil
}

// FinishOperation marks an operation finished with the given status.
func (c *SQLiteCatalog) FinishOperation(id int64, status string) error {
	_, err := c.db.Exec(`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, c.clock.Now(), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (c *SQLiteCatalog) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := c.db.Query(`
		SELECT id, operation, parameters, status, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		op := &model.Operation{}
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.Status, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Path returns the catalog file path (or ":memory:").
func (c *SQLiteCatalog) Path() string {
	return c.path
}

// CheckMigrations verifies the catalog schema is up-to-date.
func (c *SQLiteCatalog) CheckMigrations() error {
	return migrations.CheckStatus(c.db)
}

// Close closes the catalog connection.
func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*model.Application, error) {
	app := &model.Application{}
	var settingsJSON string
	err := row.Scan(&app.ID, &app.Name, &app.Path, &app.Category, &app.Type, &app.Size,
		&settingsJSON, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settingsJSON), &app.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return app, nil
}

func scanBackup(row scanner) (*model.Backup, error) {
	b := &model.Backup{}
	var metaJSON string
	var restored sql.NullTime
	err := row.Scan(&b.ID, &b.AppID, &b.AppName, &b.Filename, &b.StoragePath, &b.Size,
		&metaJSON, &b.CreatedAt, &restored)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &b.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if restored.Valid {
		t := restored.Time
		b.RestoredAt = &t
	}
	return b, nil
}

// Compile-time check that SQLiteCatalog implements sysync.Catalog.
var _ sysync.Catalog = (*SQLiteCatalog)(nil)
