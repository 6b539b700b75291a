package testutil

import (
	"testing"

	"sysync/internal/catalog"
	"sysync/internal/sysync"
)

// NewTestCatalog creates an in-memory SQLite catalog with the schema applied.
// The catalog is automatically closed when the test completes.
func NewTestCatalog(t *testing.T) sysync.Catalog {
	t.Helper()

	c, err := catalog.NewSQLiteCatalog(":memory:", FixedClock())
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}

	t.Cleanup(func() {
		c.Close()
	})

	return c
}
