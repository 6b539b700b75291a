package store

import (
	"fmt"

	"sysync/internal/config"
	"sysync/internal/sysync"
)

// NewStoreFromConfig builds the object store for the configured backend type.
func NewStoreFromConfig(cfg config.StoreConfig, catalog sysync.Catalog, logger sysync.Logger) (*Store, error) {
	var backend Backend
	var err error

	switch cfg.Type {
	case "filesystem", "":
		backend, err = NewFilesystemBackend(cfg.RootDir)
	case "memory":
		backend = NewMemoryBackend()
	case "s3":
		backend, err = NewS3Backend(cfg)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return NewStore(backend, catalog, logger), nil
}
