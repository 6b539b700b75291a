package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"sysync/internal/catalog/migrations"
	"sysync/internal/config"
	"sysync/internal/sysync"
)

// NewCatalogFromConfig creates a Catalog implementation based on the catalog
// config type.
func NewCatalogFromConfig(cfg config.CatalogConfig) (sysync.Catalog, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating catalog data directory: %w", err)
		}
		return NewSQLiteCatalog(filepath.Join(cfg.DataDir, "sysync.db"), nil)
	case "memory":
		return NewSQLiteCatalog(":memory:", nil)
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}

// SchemaStatus reports whether the catalog schema at the configured location
// matches the binary's latest migration, without migrating it.
func SchemaStatus(cfg config.CatalogConfig) error {
	if cfg.Type != "" && cfg.Type != "sqlite" {
		return fmt.Errorf("schema status only applies to sqlite catalogs, not %q", cfg.Type)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir required for sqlite catalog")
	}

	dbPath := filepath.Join(cfg.DataDir, "sysync.db")
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("catalog not found at %s: %w", dbPath, err)
	}

	db, err := OpenConnection(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrations.CheckStatus(db)
}
