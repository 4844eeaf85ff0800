package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps a sql.DB connection to the station store.
type DB struct {
	*sql.DB
	path string
}

// Config maps the database section of config.yaml.
type Config struct {
	// Path is the SQLite file. Its directory is created if missing.
	Path string

	// WALMode enables write-ahead logging so API reads do not wait on the
	// handshake lookups of the notifier.
	WALMode bool

	// BusyTimeout is the lock wait in seconds.
	BusyTimeout int
}

// Open opens (creating if needed) the SQLite database described by cfg and
// verifies it with a ping bounded by ctx.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// See: https://github.com/mattn/go-sqlite3#connection-string
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*int(time.Second/time.Millisecond))
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // file may not exist until first write

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
