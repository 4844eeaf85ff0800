package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists stations.
type Repository interface {
	Create(ctx context.Context, s *Station) error
	GetByID(ctx context.Context, id int64) (*Station, error)
	TokenHash(ctx context.Context, id int64) (string, error)
	UpdateName(ctx context.Context, id int64, name string) error
	UpdateState(ctx context.Context, id int64, state string) error
	UpdateConfig(ctx context.Context, id int64, conf string) error
	Delete(ctx context.Context, id int64) error
}

// SQLiteRepository implements Repository on the stations table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts a new station. An empty State becomes DefaultState.
func (r *SQLiteRepository) Create(ctx context.Context, s *Station) error {
	if s.State == "" {
		s.State = DefaultState
	}
	if err := s.Validate(); err != nil {
		return err
	}

	now := r.now().UTC().Truncate(time.Second)
	stamp := now.Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stations (id, name, state, config, token_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.State, s.Config, s.TokenHash, stamp, stamp,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %d", ErrStationExists, s.ID)
		}
		return fmt.Errorf("creating station: %w", err)
	}

	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// GetByID returns the station with the given ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Station, error) {
	var s Station
	var createdAt, updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, state, config, token_hash, created_at, updated_at
		 FROM stations WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.State, &s.Config, &s.TokenHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting station %d: %w", id, err)
	}

	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	s.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &s, nil
}

// TokenHash returns only the stored credential hash, for the handshake path.
func (r *SQLiteRepository) TokenHash(ctx context.Context, id int64) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT token_hash FROM stations WHERE id = ?`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrStationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting token hash for station %d: %w", id, err)
	}
	return hash, nil
}

// UpdateName renames a station.
func (r *SQLiteRepository) UpdateName(ctx context.Context, id int64, name string) error {
	if len(name) > MaxNameLength {
		return ErrInvalidName
	}
	return r.update(ctx, id, "name", name)
}

// UpdateState stores the station's current state.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id int64, state string) error {
	if err := ValidateState(state); err != nil {
		return err
	}
	return r.update(ctx, id, "state", state)
}

// UpdateConfig stores the station's configuration blob.
func (r *SQLiteRepository) UpdateConfig(ctx context.Context, id int64, conf string) error {
	if err := ValidateConfig(conf); err != nil {
		return err
	}
	return r.update(ctx, id, "config", conf)
}

// Delete removes a station. Its token stops verifying immediately.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting station %d: %w", id, err)
	}
	return requireOneRow(result)
}

// update sets a single column. column is always a constant from this file.
func (r *SQLiteRepository) update(ctx context.Context, id int64, column, value string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE stations SET "+column+" = ?, updated_at = ? WHERE id = ?", //nolint:gosec // column is not user input
		value, r.now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating station %d %s: %w", id, column, err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrStationNotFound
	}
	return nil
}
