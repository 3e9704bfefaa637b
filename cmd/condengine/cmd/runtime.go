package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/core/db"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/query"
)

var errNoDatabase = errors.New("no database configured (set --database or CE_DATABASE_URL)")

// runtime holds the collaborators every subcommand works with. The item
// index is only opened when a database URL is configured.
type runtime struct {
	registry  *definitions.Registry
	resolver  *conditions.Resolver
	evaluator *conditions.Dispatcher
	queries   *query.Dispatcher

	conn  *sqlx.DB
	items *db.ItemStore
	defs  *db.DefinitionStore
}

func newRuntime(ctx context.Context) (*runtime, error) {
	reg, err := definitions.NewBuiltinRegistry()
	if err != nil {
		return nil, fmt.Errorf("builtin definitions: %w", err)
	}
	if cfg.DefinitionsDir != "" {
		n, err := reg.LoadDir(cfg.DefinitionsDir)
		if err != nil {
			return nil, err
		}
		logger.Debug("loaded definitions", "dir", cfg.DefinitionsDir, "count", n)
	}

	rt := &runtime{registry: reg}
	if cfg.DatabaseURL != "" {
		if err := rt.openDatabase(ctx); err != nil {
			return nil, err
		}
	}

	rt.resolver = conditions.NewResolver(reg,
		conditions.WithLogger(logger),
		conditions.WithMaxDepth(cfg.MaxRecursionDepth))
	rt.queries = query.NewDispatcher(rt.resolver,
		query.WithLogger(logger),
		query.WithMaxIDs(cfg.MaxIDsQueryCount),
		query.WithAggregation(cfg.AggregateBucketSize, cfg.PastEventsDisablePartitions))

	evalOpts := []conditions.Option{
		conditions.WithLogger(logger),
		conditions.WithMaxDepth(cfg.MaxRecursionDepth),
		conditions.WithSlowAccessThreshold(cfg.SlowAccessThreshold),
	}
	if rt.conn != nil {
		items, err := db.NewItemStore(rt.conn, rt.queries, db.WithLogger(logger))
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.items = items
		rt.queries.SetPersistence(items)
		evalOpts = append(evalOpts, conditions.WithPersistence(items))
	}
	rt.evaluator = conditions.NewDispatcher(rt.resolver, evalOpts...)
	return rt, nil
}

// openDatabase connects, migrates and rehydrates stored definitions into
// the registry.
func (rt *runtime) openDatabase(ctx context.Context) error {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.MigrateUp(conn, db.WithLogger(logger)); err != nil {
		conn.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	defs, err := db.NewDefinitionStore(conn, db.WithLogger(logger))
	if err != nil {
		conn.Close()
		return err
	}
	n, err := defs.LoadInto(ctx, rt.registry)
	if err != nil {
		conn.Close()
		return fmt.Errorf("load stored definitions: %w", err)
	}
	logger.Debug("loaded stored definitions", "count", n)
	rt.conn, rt.defs = conn, defs
	return nil
}

func (rt *runtime) requireDatabase() error {
	if rt.conn == nil {
		return errNoDatabase
	}
	return nil
}

func (rt *runtime) Close() {
	if rt.conn != nil {
		rt.conn.Close()
	}
}
