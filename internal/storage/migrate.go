package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means a previous migration stopped halfway.
var ErrDirtySchema = errors.New("schema is dirty")

// schemaMigrator runs the embedded migrations on its own connection, so the
// repository's single pooled connection stays untouched.
type schemaMigrator struct {
	db *sql.DB
	m  *migrate.Migrate
}

func openMigrator(dbPath string) (*schemaMigrator, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate instance: %w", err)
	}
	return &schemaMigrator{db: db, m: m}, nil
}

func (s *schemaMigrator) close() {
	s.m.Close()
	s.db.Close()
}

// version reports the applied schema version, zero for an empty database.
func (s *schemaMigrator) version() (uint, error) {
	v, dirty, err := s.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}

// RunMigrations brings the schema at dbPath up to date and returns the
// resulting schema version.
func RunMigrations(dbPath string) (uint, error) {
	s, err := openMigrator(dbPath)
	if err != nil {
		return 0, err
	}
	defer s.close()

	if _, err := s.version(); err != nil {
		return 0, err
	}
	if err := s.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	v, err := s.version()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "schema_version", v)
	return v, nil
}

// DropSchema rolls every migration back, removing all finctl tables.
func DropSchema(dbPath string) error {
	s, err := openMigrator(dbPath)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}
