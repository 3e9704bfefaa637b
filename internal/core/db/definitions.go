package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/types"
)

// Definition kinds stored in the definitions table.
const (
	DefinitionCondition = "condition"
	DefinitionAction    = "action"
)

// DefinitionStore persists deployed condition and action types so a
// registry can be rehydrated after a restart.
type DefinitionStore struct {
	db      *sqlx.DB
	queries *Queries
	cfg     storeConfig
}

// NewDefinitionStore creates a definition store on db.
func NewDefinitionStore(db *sqlx.DB, opts ...StoreOption) (*DefinitionStore, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &DefinitionStore{db: db, queries: q, cfg: newStoreConfig(opts)}, nil
}

// SaveConditionType stores ct, replacing a stored type with the same id.
func (s *DefinitionStore) SaveConditionType(ctx context.Context, ct *types.ConditionType) error {
	body, err := codec.MarshalConditionType(ct)
	if err != nil {
		return err
	}
	return s.put(ctx, DefinitionCondition, ct.ID, body)
}

// SaveActionType stores at, replacing a stored type with the same id.
func (s *DefinitionStore) SaveActionType(ctx context.Context, at *types.ActionType) error {
	body, err := codec.MarshalActionType(at)
	if err != nil {
		return err
	}
	return s.put(ctx, DefinitionAction, at.ID, body)
}

// SaveRegistry stores every condition and action type deployed in reg.
func (s *DefinitionStore) SaveRegistry(ctx context.Context, reg *definitions.Registry) error {
	for _, ct := range reg.ConditionTypes() {
		if err := s.SaveConditionType(ctx, ct); err != nil {
			return fmt.Errorf("condition type %s: %w", ct.ID, err)
		}
	}
	for _, at := range reg.ActionTypes() {
		if err := s.SaveActionType(ctx, at); err != nil {
			return fmt.Errorf("action type %s: %w", at.ID, err)
		}
	}
	return nil
}

func (s *DefinitionStore) put(ctx context.Context, kind, id string, body []byte) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err := s.queries.ExecTx(ctx, tx, "delete-definition", kind, id); err != nil {
		return err
	}
	updated := s.cfg.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.queries.ExecTx(ctx, tx, "insert-definition", kind, id, string(body), updated); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a stored definition.
func (s *DefinitionStore) Delete(ctx context.Context, kind, id string) error {
	_, err := s.queries.Exec(ctx, "delete-definition", kind, id)
	return err
}

// LoadInto deploys every stored definition into reg and returns how many
// were loaded. Undecodable rows are logged and skipped.
func (s *DefinitionStore) LoadInto(ctx context.Context, reg *definitions.Registry) (int, error) {
	var rows []struct {
		Kind string `db:"kind"`
		ID   string `db:"id"`
		Body string `db:"body"`
	}
	if err := s.queries.Select(ctx, "list-definitions", &rows); err != nil {
		return 0, err
	}
	loaded := 0
	for _, r := range rows {
		if err := reg.Load([]byte(r.Body)); err != nil {
			s.cfg.logger.Warn(logMsgDefinitionSkip, logAttrDefinition, r.Kind+"/"+r.ID, logAttrError, err.Error())
			continue
		}
		loaded++
	}
	return loaded, nil
}
