package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/query"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestDispatcher(t *testing.T) *query.Dispatcher {
	t.Helper()
	reg, err := definitions.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	return query.NewDispatcher(conditions.NewResolver(reg), query.WithClock(fixedClock))
}

// newMockStore returns an item store over sqlmock using the sqlite dialect.
func newMockStore(t *testing.T) (*ItemStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	store, err := NewItemStore(sqlx.NewDb(mockDB, dialectSqlite), newTestDispatcher(t), WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewItemStore() error = %v", err)
	}
	return store, mock
}

// openTestDB opens a migrated sqlite database in a temp directory.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "ce.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}
