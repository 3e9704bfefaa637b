// internal/core/db/items.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/query"
	"github.com/solatis/condengine/internal/types"
)

/*
 * ItemStore is the SQL persistence collaborator.
 *
 * Items are written whole: the JSON body into items, the flattened index
 * produced by query.Index into item_fields. Saving an item replaces every
 * previous row for it inside one transaction.
 *
 * Conditions are answered by compiling them with the query dispatcher and
 * then compiling the filter to SQL, so the store counts exactly what
 * query.Match would accept on the same documents. Past event conditions
 * compiled by the dispatcher may call back into QueryCount and
 * AggregateQuery for their event windows.
 */

// ItemStore persists items and answers count and aggregation queries.
type ItemStore struct {
	db         *sqlx.DB
	queries    *Queries
	dispatcher *query.Dispatcher
	cfg        storeConfig
}

var _ conditions.Persistence = (*ItemStore)(nil)

// NewItemStore creates a store compiling conditions with dispatcher.
// The caller registers the store with dispatcher.SetPersistence when past
// event conditions should be answered from it.
func NewItemStore(db *sqlx.DB, dispatcher *query.Dispatcher, opts ...StoreOption) (*ItemStore, error) {
	if _, err := newFilterCompiler(db.DriverName()); err != nil {
		return nil, err
	}
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &ItemStore{db: db, queries: q, dispatcher: dispatcher, cfg: newStoreConfig(opts)}, nil
}

// Save writes items, replacing stored versions with the same type and id.
func (s *ItemStore) Save(ctx context.Context, items ...types.Item) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	updated := s.cfg.now().UTC().Format(time.RFC3339Nano)
	rows := 0
	for _, item := range items {
		n, err := s.saveItem(ctx, tx, item, updated)
		if err != nil {
			return fmt.Errorf("save %s %s: %w", item.ItemType(), item.ItemID(), err)
		}
		rows += n
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.cfg.logger.Debug(logMsgItemsSaved, logAttrCount, len(items), logAttrRows, rows)
	return nil
}

func (s *ItemStore) saveItem(ctx context.Context, tx *sqlx.Tx, item types.Item, updated string) (int, error) {
	body, err := codec.MarshalItem(item)
	if err != nil {
		return 0, err
	}
	typ, id := item.ItemType(), item.ItemID()
	if _, err := s.queries.ExecTx(ctx, tx, "delete-item-fields", typ, id); err != nil {
		return 0, err
	}
	if _, err := s.queries.ExecTx(ctx, tx, "delete-item", typ, id); err != nil {
		return 0, err
	}
	if _, err := s.queries.ExecTx(ctx, tx, "insert-item", typ, id, item.Scope(), string(body), updated); err != nil {
		return 0, err
	}
	rows := fieldRows(s.cfg.indexer.Index(item))
	for _, r := range rows {
		if _, err := s.queries.ExecTx(ctx, tx, "insert-item-field", r.args(typ, id)...); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// Get loads one item.
func (s *ItemStore) Get(ctx context.Context, itemType, id string) (types.Item, error) {
	var body string
	if err := s.queries.Get(ctx, "get-item", &body, itemType, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %s", types.ErrItemNotFound, itemType, id)
		}
		return nil, err
	}
	return codec.UnmarshalItem([]byte(body))
}

// Delete removes an item and its index rows.
func (s *ItemStore) Delete(ctx context.Context, itemType, id string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err := s.queries.ExecTx(ctx, tx, "delete-item-fields", itemType, id); err != nil {
		return err
	}
	res, err := s.queries.ExecTx(ctx, tx, "delete-item", itemType, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s %s", types.ErrItemNotFound, itemType, id)
	}
	return tx.Commit()
}

// ItemCounts reports how many items of each type are stored.
func (s *ItemStore) ItemCounts(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ItemType string `db:"item_type"`
		N        int64  `db:"n"`
	}
	if err := s.queries.Select(ctx, "count-items", &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ItemType] = r.N
	}
	return out, nil
}

// QueryCount counts items of itemType matching c.
func (s *ItemStore) QueryCount(ctx context.Context, c *types.Condition, itemType string) (int64, error) {
	f, err := s.dispatcher.BuildFilter(ctx, c)
	if err != nil {
		return 0, err
	}
	return s.CountFilter(ctx, f, itemType)
}

// CountFilter counts items of itemType matching f.
func (s *ItemStore) CountFilter(ctx context.Context, f query.Filter, itemType string) (int64, error) {
	fc, _ := newFilterCompiler(s.db.DriverName())
	stmt, args, err := fc.countQuery(f, itemType)
	if err != nil {
		s.cfg.logger.Error(logMsgBuildFailed, logAttrError, err.Error(), logAttrItemType, itemType)
		return 0, err
	}
	var n int64
	start := time.Now()
	if err := s.db.GetContext(ctx, &n, stmt, args...); err != nil {
		s.cfg.logger.Error(logMsgSQLFailed, logAttrError, err.Error(), logAttrQuery, stmt)
		return 0, fmt.Errorf("count %s: %w", itemType, err)
	}
	logSQL(s.cfg.logger, stmt, start)
	return n, nil
}

// Query returns up to limit items of itemType matching c, ordered by id.
// A zero limit returns every match.
func (s *ItemStore) Query(ctx context.Context, c *types.Condition, itemType string, limit uint) ([]types.Item, error) {
	f, err := s.dispatcher.BuildFilter(ctx, c)
	if err != nil {
		return nil, err
	}
	fc, _ := newFilterCompiler(s.db.DriverName())
	stmt, args, err := fc.selectQuery(f, itemType, limit)
	if err != nil {
		s.cfg.logger.Error(logMsgBuildFailed, logAttrError, err.Error(), logAttrItemType, itemType)
		return nil, err
	}
	var bodies []string
	start := time.Now()
	if err := s.db.SelectContext(ctx, &bodies, stmt, args...); err != nil {
		s.cfg.logger.Error(logMsgSQLFailed, logAttrError, err.Error(), logAttrQuery, stmt)
		return nil, fmt.Errorf("query %s: %w", itemType, err)
	}
	logSQL(s.cfg.logger, stmt, start)

	out := make([]types.Item, 0, len(bodies))
	for _, body := range bodies {
		item, err := codec.UnmarshalItem([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// AggregateQuery counts items of itemType matching c per value of
// agg.Field, restricted to one partition when agg.NumPartitions is set.
func (s *ItemStore) AggregateQuery(ctx context.Context, c *types.Condition, agg conditions.Aggregate, itemType string) (map[string]int64, error) {
	f, err := s.dispatcher.BuildFilter(ctx, c)
	if err != nil {
		return nil, err
	}
	fc, _ := newFilterCompiler(s.db.DriverName())
	stmt, args, err := fc.aggregateQuery(f, agg, itemType)
	if err != nil {
		s.cfg.logger.Error(logMsgBuildFailed, logAttrError, err.Error(), logAttrItemType, itemType)
		return nil, err
	}
	var buckets []struct {
		Value string `db:"value"`
		N     int64  `db:"n"`
	}
	start := time.Now()
	if err := s.db.SelectContext(ctx, &buckets, stmt, args...); err != nil {
		s.cfg.logger.Error(logMsgSQLFailed, logAttrError, err.Error(), logAttrQuery, stmt)
		return nil, fmt.Errorf("aggregate %s by %s: %w", itemType, agg.Field, err)
	}
	logSQL(s.cfg.logger, stmt, start)

	out := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		out[b.Value] = b.N
	}
	return out, nil
}
