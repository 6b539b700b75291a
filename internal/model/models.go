package model

import "time"

// Setting is one discoverable unit of configuration belonging to an
// application: a file or directory on the source filesystem.
//
// Type is the archive's internal partition key. It must be unique within one
// backup's setting list: staged files are laid out under "<type>/" inside the
// sealed archive and the restore engine reverses that layout.
type Setting struct {
	Name        string `json:"name" toml:"name"`
	Path        string `json:"path" toml:"path"`
	Description string `json:"description" toml:"description"`
	Type        string `json:"type" toml:"type"`
	Size        int64  `json:"size" toml:"size"`
}

// AppInfo is what the settings locator produces for one application:
// identity plus the list of setting descriptors to back up.
type AppInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Category string    `json:"category"`
	Type     string    `json:"type"`
	Settings []Setting `json:"settings"`
}

// Application is a named software product known to the catalog.
// The business key is (Name, Path); every successful archive storage
// upserts the row and refreshes Category, Type, Size and Settings.
type Application struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	Settings  []Setting `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BackupMetadata is embedded into a backup record at creation time and never
// recomputed. Settings carries the filtered descriptor list as it was at
// backup time, sizes included.
type BackupMetadata struct {
	Timestamp string    `json:"timestamp"`
	AppName   string    `json:"app_name"`
	Category  string    `json:"category"`
	Type      string    `json:"type"`
	Settings  []Setting `json:"settings"`
	TotalSize int64     `json:"total_size"`
}

// Backup is one immutable, versioned snapshot of an application's settings.
// Size is the byte length of the sealed archive as stored, not the sum of the
// source files. Only RestoredAt is ever mutated after creation.
type Backup struct {
	ID          int64          `json:"id"`
	AppID       int64          `json:"app_id"`
	AppName     string         `json:"app_name"`
	Filename    string         `json:"filename"`
	StoragePath string         `json:"storage_path"`
	Size        int64          `json:"size"`
	Metadata    BackupMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	RestoredAt  *time.Time     `json:"restored_at,omitempty"`
}

// BackupSummary is the per-backup shape returned by list operations.
type BackupSummary struct {
	ID          int64     `json:"id"`
	Timestamp   string    `json:"timestamp"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	StoragePath string    `json:"storage_path"`
	Filename    string    `json:"filename"`
	Settings    []Setting `json:"settings"`
}

// Operation is one audit record of a mutating engine operation.
type Operation struct {
	ID         int64      `json:"id"`
	Operation  string     `json:"operation"`
	Parameters string     `json:"parameters"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StorageUsage summarizes what the object store currently holds,
// as recorded in the catalog.
type StorageUsage struct {
	TotalSize   int64 `json:"total_size"`
	BackupCount int64 `json:"backup_count"`
}
