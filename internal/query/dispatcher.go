// internal/query/dispatcher.go
package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Query builder dispatch.
 *
 * The counterpart of the evaluator dispatcher: condition types name their
 * query builder by key (ConditionType.QueryBuilder), and BuildFilter goes
 * through the same steps as evaluation:
 *
 *   1. resolve the condition if it is unbound
 *   2. expand a parent-based condition into its effective condition
 *   3. substitute parameter references from the context
 *   4. call the builder
 *
 * Unlike evaluation, failures are returned, not swallowed: a query that
 * cannot be built exactly must not run as a broader one. Missing
 * operator values, malformed between bounds and oversized id lists fail
 * here instead of producing a filter.
 *
 * Count goes through the builder when it knows how to count (past event
 * conditions) and through Persistence.QueryCount otherwise.
 */

// Built-in query builder keys.
const (
	BooleanQueryBuilder     = "booleanConditionQueryBuilder"
	NotQueryBuilder         = "notConditionQueryBuilder"
	MatchAllQueryBuilder    = "matchAllConditionQueryBuilder"
	IDsQueryBuilder         = "idsConditionQueryBuilder"
	PropertyQueryBuilder    = "propertyConditionQueryBuilder"
	NestedQueryBuilder      = "nestedConditionQueryBuilder"
	PastEventQueryBuilder   = "pastEventConditionQueryBuilder"
	GeoLocationQueryBuilder = "geoLocationByPointSessionConditionQueryBuilder"
)

// QueryBuilder compiles conditions of one kind into filters. c is the
// effective, contextual condition.
type QueryBuilder interface {
	Build(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error)
}

// Counter is implemented by query builders that count matches themselves.
type Counter interface {
	Count(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (int64, error)
}

// QueryBuilderFunc adapts a function to QueryBuilder.
type QueryBuilderFunc func(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error)

func (f QueryBuilderFunc) Build(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error) {
	return f(ctx, c, params, d)
}

// Dispatcher compiles conditions into filters.
type Dispatcher struct {
	resolver *conditions.Resolver
	cfg      config

	mu       sync.RWMutex
	builders map[string]QueryBuilder
}

// NewDispatcher creates a dispatcher with the built-in query builders.
func NewDispatcher(resolver *conditions.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver: resolver,
		cfg:      newConfig(opts),
		builders: make(map[string]QueryBuilder),
	}
	d.Register(BooleanQueryBuilder, QueryBuilderFunc(buildBoolean))
	d.Register(NotQueryBuilder, QueryBuilderFunc(buildNot))
	d.Register(MatchAllQueryBuilder, QueryBuilderFunc(buildMatchAll))
	d.Register(IDsQueryBuilder, QueryBuilderFunc(buildIDs))
	d.Register(PropertyQueryBuilder, QueryBuilderFunc(buildProperty))
	d.Register(NestedQueryBuilder, QueryBuilderFunc(buildNested))
	d.Register(PastEventQueryBuilder, pastEventBuilder{})
	d.Register(GeoLocationQueryBuilder, QueryBuilderFunc(buildGeoLocation))
	return d
}

// Register binds a query builder to a key, replacing any previous one.
func (d *Dispatcher) Register(key string, b QueryBuilder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.builders[key] = b
}

// SetPersistence replaces the storage collaborator. Stores that compile
// filters through this dispatcher register themselves after construction.
func (d *Dispatcher) SetPersistence(p conditions.Persistence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.persistence = p
}

func (d *Dispatcher) persistence() conditions.Persistence {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg.persistence
}

// Resolver returns the resolver the dispatcher binds types with.
func (d *Dispatcher) Resolver() *conditions.Resolver { return d.resolver }

// BuildFilter compiles c.
func (d *Dispatcher) BuildFilter(ctx context.Context, c *types.Condition) (Filter, error) {
	return d.BuildFilterWith(ctx, c, nil)
}

// BuildFilterWith compiles c with a parameter context.
func (d *Dispatcher) BuildFilterWith(ctx context.Context, c *types.Condition, params conditions.Params) (f Filter, err error) {
	b, contextual, effParams, err := d.prepare(c, params)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("query builder for %s panicked: %v", contextual.TypeID, r)
		}
	}()
	f, err = b.Build(ctx, contextual, effParams, d)
	if err != nil {
		d.cfg.logger.Debug(logMsgBuildFailed, logAttrTypeID, contextual.TypeID, logAttrError, err)
		return nil, err
	}
	return f, nil
}

// Count counts items of itemType matching c.
func (d *Dispatcher) Count(ctx context.Context, c *types.Condition, itemType string) (int64, error) {
	return d.CountWith(ctx, c, nil, itemType)
}

// CountWith counts items of itemType matching c with a parameter context.
func (d *Dispatcher) CountWith(ctx context.Context, c *types.Condition, params conditions.Params, itemType string) (int64, error) {
	b, contextual, effParams, err := d.prepare(c, params)
	if err != nil {
		return 0, err
	}
	if counter, ok := b.(Counter); ok {
		return counter.Count(ctx, contextual, effParams, d)
	}
	p := d.persistence()
	if p == nil {
		return 0, types.ErrNoPersistence
	}
	return p.QueryCount(ctx, contextual, itemType)
}

func (d *Dispatcher) prepare(c *types.Condition, params conditions.Params) (QueryBuilder, *types.Condition, conditions.Params, error) {
	if c == nil {
		return nil, nil, nil, types.ErrNilCondition
	}
	if c.Type == nil && !d.resolver.ResolveConditionType(c, "query") {
		return nil, nil, nil, fmt.Errorf("%w: %s", types.ErrUnresolvedCondition, c.TypeID)
	}
	eff, effParams, err := d.resolver.EffectiveCondition(c, params)
	if err != nil {
		return nil, nil, nil, err
	}

	key := eff.Type.QueryBuilder
	if key == "" {
		d.cfg.logger.Warn(logMsgNoQueryBuilder, logAttrTypeID, eff.TypeID)
		return nil, nil, nil, fmt.Errorf("%w: %s", types.ErrNoQueryBuilder, eff.TypeID)
	}
	d.mu.RLock()
	b, ok := d.builders[key]
	d.mu.RUnlock()
	if !ok {
		d.cfg.logger.Warn(logMsgNoQueryBuilder, logAttrTypeID, eff.TypeID, logAttrBuilder, key)
		return nil, nil, nil, fmt.Errorf("%w: %s", types.ErrNoQueryBuilder, key)
	}

	contextual, err := conditions.ContextualCondition(eff, effParams)
	if err != nil {
		return nil, nil, nil, err
	}
	if contextual == nil {
		d.cfg.logger.Debug(logMsgVoidedCondition, logAttrTypeID, eff.TypeID)
		return nil, nil, nil, fmt.Errorf("%w: %s references an absent parameter", types.ErrMissingParameter, eff.TypeID)
	}
	return b, contextual, effParams, nil
}
