package db

import (
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/query"
)

const (
	logMsgSQLExecuted      = "executed sql"
	logMsgSQLFailed        = "sql execution failed"
	logMsgBuildFailed      = "failed to build sql from filter"
	logMsgItemsSaved       = "items saved"
	logMsgDefinitionSkip   = "skipping stored definition"
	logMsgMigrationApplied = "migration applied"
	logAttrQuery           = "query"
	logAttrDurationMS      = "duration_ms"
	logAttrItemType        = "item_type"
	logAttrCount           = "count"
	logAttrRows            = "rows"
	logAttrDefinition      = "definition"
	logAttrError           = "error"
	logAttrMigration       = "migration"
)

// Logger is the structured logger the stores write to. *slog.Logger
// satisfies it.
type Logger = conditions.Logger

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type storeConfig struct {
	logger  Logger
	indexer *query.Indexer
	now     func() time.Time
}

// StoreOption configures an ItemStore or DefinitionStore.
type StoreOption func(*storeConfig)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l Logger) StoreOption {
	return func(c *storeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAccessors indexes items through a custom accessor table, matching
// an evaluator configured with conditions.WithAccessors.
func WithAccessors(a *conditions.Accessors) StoreOption {
	return func(c *storeConfig) { c.indexer = query.NewIndexer(a) }
}

// WithClock overrides the time source for updated_at columns.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

func newStoreConfig(opts []StoreOption) storeConfig {
	cfg := storeConfig{logger: nopLogger{}, indexer: query.NewIndexer(nil), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// logSQL records an executed statement with its duration.
func logSQL(l Logger, stmt string, start time.Time) {
	l.Debug(logMsgSQLExecuted, logAttrQuery, stmt, logAttrDurationMS, time.Since(start).Milliseconds())
}
