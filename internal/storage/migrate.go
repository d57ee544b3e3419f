package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Applied versions are recorded in schema_migrations, so rerunning
// MigrateUp on an up-to-date database is a no-op.
const createMigrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

func MigrateUp(db *sql.DB) error {
	if err := ensureMigrationTable(db); err != nil {
		return err
	}
	versions, err := migrationVersions(".up.sql")
	if err != nil {
		return err
	}
	for _, v := range versions {
		applied, err := migrationApplied(db, v)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := runMigration(db, "migrations/"+v+".up.sql"); err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			v, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", v, err)
		}
	}
	return nil
}

// MigrateDown reverts applied migrations in reverse order.
func MigrateDown(db *sql.DB) error {
	if err := ensureMigrationTable(db); err != nil {
		return err
	}
	versions, err := migrationVersions(".down.sql")
	if err != nil {
		return err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		applied, err := migrationApplied(db, v)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}
		if err := runMigration(db, "migrations/"+v+".down.sql"); err != nil {
			return err
		}
		if _, err := db.Exec(`DELETE FROM schema_migrations WHERE version = ?`, v); err != nil {
			return fmt.Errorf("storage: unrecord migration %s: %w", v, err)
		}
	}
	return nil
}

func ensureMigrationTable(db *sql.DB) error {
	if _, err := db.Exec(createMigrationTable); err != nil {
		return fmt.Errorf("storage: create migration table: %w", err)
	}
	return nil
}

func migrationVersions(suffix string) ([]string, error) {
	entries, err := fs.Glob(migrationFiles, "migrations/*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("storage: glob migrations: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, name := range entries {
		out = append(out, strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), suffix))
	}
	sort.Strings(out)
	return out, nil
}

func migrationApplied(db *sql.DB, version string) (bool, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&n); err != nil {
		return false, fmt.Errorf("storage: check migration %s: %w", version, err)
	}
	return n > 0, nil
}

func runMigration(db *sql.DB, name string) error {
	raw, err := migrationFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("storage: read migration %s: %w", name, err)
	}
	if _, err := db.Exec(string(raw)); err != nil {
		return fmt.Errorf("storage: apply migration %s: %w", name, err)
	}
	return nil
}
