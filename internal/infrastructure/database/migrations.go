package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the migration files. The migrations package sets it
// from an embed.FS at init time.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migrations.
var MigrationsDir = "migrations"

// Migration is one versioned schema change, loaded from a file pair named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrate applies every migration not yet recorded in schema_migrations,
// oldest first. Each migration runs in its own transaction; a failure
// leaves earlier migrations committed.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := db.apply(ctx, m.UpSQL,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func (db *DB) MigrateDown(ctx context.Context) error {
	var latest string
	err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), '') FROM schema_migrations").Scan(&latest)
	if err != nil {
		return fmt.Errorf("finding latest migration: %w", err)
	}
	if latest == "" {
		return nil
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	for _, m := range migrations {
		if m.Version != latest {
			continue
		}
		if m.DownSQL == "" {
			return fmt.Errorf("%w: %s", ErrNoDownMigration, latest)
		}
		return db.apply(ctx, m.DownSQL,
			"DELETE FROM schema_migrations WHERE version = ?", m.Version)
	}
	return fmt.Errorf("migration %s not found in filesystem", latest)
}

// apply runs script and the bookkeeping statement in one transaction.
func (db *DB) apply(ctx context.Context, script, record string, args ...any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// loadMigrations reads and pairs the migration files, sorted by version.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", MigrationsDir, err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if up {
			m.UpSQL = string(body)
		} else {
			m.DownSQL = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			continue
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFilename splits "20260301_090000_stations.up.sql" into
// version "20260301_090000", name "stations" and direction up.
func parseMigrationFilename(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}

	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	name = base
	if len(parts) == 3 {
		name = parts[2]
	}
	return version, name, up, true
}
