package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen(t *testing.T) {
	t.Run("creates database file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // test cleanup

		if err := db.HealthCheck(context.Background()); err != nil {
			t.Fatalf("HealthCheck() error = %v", err)
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Open(context.Background(), Config{})
		if !errors.Is(err, ErrNoPath) {
			t.Errorf("Open() error = %v, want ErrNoPath", err)
		}
	})
}

func TestClose(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() should fail")
	}

	var nilDB *DB
	if err := nilDB.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

// openTestDB opens a WAL database in a temp dir and closes it with the test.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Open(ctx, Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	return db
}
