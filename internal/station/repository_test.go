package station

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/technoelf/stomata/internal/infrastructure/database"
	_ "github.com/technoelf/stomata/migrations" // registers the schema
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "stations.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return repo
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	s := &Station{ID: 12, Name: "greenhouse", TokenHash: "$argon2id$hash"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.State != DefaultState {
		t.Errorf("State = %q, want %q", s.State, DefaultState)
	}

	got, err := repo.GetByID(ctx, 12)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "greenhouse" || got.State != "idle" || got.TokenHash != "$argon2id$hash" {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Station{ID: 1, TokenHash: "h1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := repo.Create(ctx, &Station{ID: 1, TokenHash: "h2"})
	if !errors.Is(err, ErrStationExists) {
		t.Fatalf("Create() duplicate error = %v, want ErrStationExists", err)
	}

	hash, err := repo.TokenHash(ctx, 1)
	if err != nil {
		t.Fatalf("TokenHash() error = %v", err)
	}
	if hash != "h1" {
		t.Errorf("TokenHash() = %q, original credential must survive", hash)
	}
}

func TestSQLiteRepository_CreateInvalid(t *testing.T) {
	repo := testRepo(t)

	tests := []struct {
		name    string
		station Station
		want    error
	}{
		{"zero id", Station{ID: 0, TokenHash: "h"}, ErrInvalidID},
		{"negative id", Station{ID: -3, TokenHash: "h"}, ErrInvalidID},
		{"long name", Station{ID: 1, Name: strings.Repeat("n", MaxNameLength+1), TokenHash: "h"}, ErrInvalidName},
		{"long state", Station{ID: 1, State: strings.Repeat("s", MaxStateLength+1), TokenHash: "h"}, ErrInvalidState},
		{"no credential", Station{ID: 1}, ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.station
			if err := repo.Create(context.Background(), &s); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 99); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("GetByID() error = %v, want ErrStationNotFound", err)
	}
	if _, err := repo.TokenHash(ctx, 99); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("TokenHash() error = %v, want ErrStationNotFound", err)
	}
	if err := repo.UpdateState(ctx, 99, "on"); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("UpdateState() error = %v, want ErrStationNotFound", err)
	}
	if err := repo.UpdateConfig(ctx, 99, "{}"); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("UpdateConfig() error = %v, want ErrStationNotFound", err)
	}
	if err := repo.Delete(ctx, 99); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("Delete() error = %v, want ErrStationNotFound", err)
	}
}

func TestSQLiteRepository_Updates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Station{ID: 5, TokenHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	later := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return later }

	if err := repo.UpdateState(ctx, 5, "watering"); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	if err := repo.UpdateConfig(ctx, 5, `{"x":1}`); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	if err := repo.UpdateName(ctx, 5, "north bed"); err != nil {
		t.Fatalf("UpdateName() error = %v", err)
	}
	if err := repo.UpdateName(ctx, 5, strings.Repeat("n", MaxNameLength+1)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("UpdateName(long) error = %v, want ErrInvalidName", err)
	}
	if err := repo.UpdateState(ctx, 5, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("UpdateState(\"\") error = %v, want ErrInvalidState", err)
	}

	got, err := repo.GetByID(ctx, 5)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "north bed" || got.State != "watering" || got.Config != `{"x":1}` {
		t.Errorf("GetByID() = %+v", got)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, later)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Station{ID: 8, TokenHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, 8); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.TokenHash(ctx, 8); !errors.Is(err, ErrStationNotFound) {
		t.Errorf("TokenHash() after Delete() error = %v, want ErrStationNotFound", err)
	}
}
