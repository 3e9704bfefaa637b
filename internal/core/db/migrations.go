// internal/core/db/migrations.go
package db

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/condengine/migrations"
)

/*
 * Schema migrations.
 *
 * Each driver has its own embedded directory of numbered .sql files,
 * applied in file name order. A migration and its bookkeeping row commit
 * in one transaction. Applied files are pinned by SHA256: an embedded file
 * whose content no longer matches its recorded checksum, or a recorded
 * migration with no embedded file, stops MigrateUp before anything runs.
 *
 * Bookkeeping statements go through goqu so the placeholder style and
 * the applied_at representation follow the connection's dialect. SQLite
 * keeps applied_at as RFC3339 text.
 */

const migrationsTable = "migrations"

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

type appliedMigration struct {
	Checksum    string
	AppliedAt   *time.Time
	ExecutionMs int64
}

// MigrateUp applies every pending migration for the connection's driver.
// The clock and logger options are honored; other options are ignored.
func MigrateUp(db *sqlx.DB, opts ...StoreOption) error {
	cfg := newStoreConfig(opts)
	embedded, applied, err := loadMigrations(db)
	if err != nil {
		return err
	}
	if err := verifyChecksums(embedded, applied); err != nil {
		return fmt.Errorf("migration checksum validation failed: %w", err)
	}

	for _, m := range embedded {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		took, err := runMigration(db, m, cfg.now().UTC())
		if err != nil {
			return err
		}
		cfg.logger.Info(logMsgMigrationApplied, logAttrMigration, m.ID, logAttrDurationMS, took.Milliseconds())
	}
	return nil
}

// MigrateStatus lists every embedded migration with its applied state.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	embedded, applied, err := loadMigrations(db)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(embedded))
	for _, m := range embedded {
		s := MigrationStatus{ID: m.ID, Checksum: m.Checksum}
		if a, ok := applied[m.ID]; ok {
			s.Applied = true
			s.Checksum = a.Checksum
			s.AppliedAt = a.AppliedAt
			s.ExecutionMs = a.ExecutionMs
		}
		out = append(out, s)
	}
	return out, nil
}

// loadMigrations returns the embedded migrations for the driver and the
// recorded ones, creating the bookkeeping table on first use.
func loadMigrations(db *sqlx.DB) ([]migration, map[string]appliedMigration, error) {
	fsys, dir, err := migrationFiles(db.DriverName())
	if err != nil {
		return nil, nil, err
	}
	embedded, err := parseMigrations(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	if _, err := db.Exec(migrationsDDL(db.DriverName())); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := readApplied(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	return embedded, applied, nil
}

func migrationFiles(driver string) (embed.FS, string, error) {
	switch driver {
	case dialectSqlite:
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case dialectPostgres:
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func parseMigrations(fsys fs.FS, dir string) ([]migration, error) {
	var out []migration
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{ID: path.Base(p), Checksum: hex.EncodeToString(sum[:]), SQL: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func migrationsDDL(driver string) string {
	if driver == dialectSqlite {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

func readApplied(db *sqlx.DB) (map[string]appliedMigration, error) {
	stmt, _, err := goqu.Dialect(db.DriverName()).
		From(migrationsTable).
		Select("migration_id", "checksum", "applied_at", "execution_ms").
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := db.Queryx(stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var (
			id        string
			a         appliedMigration
			appliedAt any
		)
		if err := rows.Scan(&id, &a.Checksum, &appliedAt, &a.ExecutionMs); err != nil {
			return nil, err
		}
		a.AppliedAt = parseAppliedAt(appliedAt)
		applied[id] = a
	}
	return applied, rows.Err()
}

// verifyChecksums rejects recorded migrations that are missing from the
// embedded set or whose content changed since they ran.
func verifyChecksums(embedded []migration, applied map[string]appliedMigration) error {
	want := make(map[string]string, len(embedded))
	for _, m := range embedded {
		want[m.ID] = m.Checksum
	}
	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sum, ok := want[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got := applied[id].Checksum; got != sum {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, sum, got)
		}
	}
	return nil
}

func runMigration(db *sqlx.DB, m migration, appliedAt time.Time) (time.Duration, error) {
	start := time.Now()
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}
	// lib/pq runs one statement per Exec.
	for _, stmt := range splitStatements(m.SQL) {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
	}
	took := time.Since(start)

	var at any = appliedAt
	if db.DriverName() == dialectSqlite {
		at = appliedAt.Format(time.RFC3339)
	}
	stmt, args, err := goqu.Dialect(db.DriverName()).
		Insert(migrationsTable).
		Rows(goqu.Record{
			"migration_id": m.ID,
			"checksum":     m.Checksum,
			"applied_at":   at,
			"execution_ms": took.Milliseconds(),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if _, err := tx.Exec(stmt, args...); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return took, nil
}

// splitStatements cuts a migration file at semicolons and drops "--"
// comment lines and empty statements.
func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		lines := strings.Split(stmt, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if !strings.HasPrefix(strings.TrimSpace(line), "--") {
				kept = append(kept, line)
			}
		}
		if s := strings.TrimSpace(strings.Join(kept, "\n")); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseAppliedAt reads applied_at, which SQLite stores as RFC3339 text.
func parseAppliedAt(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		return &x
	case []byte:
		return parseAppliedAt(string(x))
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return &t
		}
	}
	return nil
}
