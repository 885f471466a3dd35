// Package migrations applies the embedded schema migrations of the metadata store.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFiles embed.FS

// Status describes the schema version of a database.
type Status struct {
	Version uint
	Latest  uint
	Dirty   bool
}

// UpToDate reports whether every migration has been applied cleanly.
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Version == s.Latest
}

func (s Status) String() string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("database is in dirty state at version %d (migration failed previously)", s.Version)
	case s.Version == 0:
		return fmt.Sprintf("database has no schema version, latest is %d", s.Latest)
	case s.Version < s.Latest:
		return fmt.Sprintf("database is at version %d but latest is %d (%d migrations behind)", s.Version, s.Latest, s.Latest-s.Version)
	case s.Version > s.Latest:
		return fmt.Sprintf("database version %d is ahead of binary version %d", s.Version, s.Latest)
	}
	return fmt.Sprintf("database is up to date at version %d", s.Version)
}

// MigrateUp runs all pending migrations for driver ("sqlite" or "postgres").
// The caller owns db; it is not closed.
func MigrateUp(db *sql.DB, driver string) error {
	m, err := newMigrate(db, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// CheckStatus reports the schema version of db against the embedded migrations.
func CheckStatus(db *sql.DB, driver string) (Status, error) {
	m, err := newMigrate(db, driver)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	var status Status
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return Status{}, fmt.Errorf("failed to get database version: %w", err)
	default:
		status.Version, status.Dirty = version, dirty
	}

	src, err := iofs.New(migrationFiles, "files/"+driver)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()

	status.Latest, err = latestVersion(src)
	if err != nil {
		return Status{}, fmt.Errorf("failed to determine latest version: %w", err)
	}
	return status, nil
}

func newMigrate(db *sql.DB, driver string) (*migrate.Migrate, error) {
	var (
		dbDriver database.Driver
		err      error
	)
	switch driver {
	case "sqlite":
		dbDriver, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	case "postgres":
		dbDriver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFiles, "files/"+driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// latestVersion returns the highest version available in src.
func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
	return version, nil
}
