// internal/conditions/dispatcher.go
package conditions

import (
	"context"
	"fmt"
	"sync"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Evaluator dispatch.
 *
 * Condition types name their evaluator by key (ConditionType.
 * ConditionEvaluator); evaluators are registered against those keys once,
 * not looked up per call by reflection. Eval:
 *
 *   1. resolves the condition if it is unbound
 *   2. expands a parent-based condition into its effective condition
 *   3. substitutes parameter references from the context
 *   4. calls the evaluator
 *
 * Every failure along the way, including evaluator errors and panics,
 * is logged and yields false. A malformed condition or item never aborts
 * evaluation of its siblings.
 *
 * Evaluators recurse through the Dispatcher for sub-conditions, passing
 * the context they were given.
 */

// Built-in evaluator keys.
const (
	BooleanEvaluator     = "booleanConditionEvaluator"
	NotEvaluator         = "notConditionEvaluator"
	MatchAllEvaluator    = "matchAllConditionEvaluator"
	IDsEvaluator         = "idsConditionEvaluator"
	PropertyEvaluator    = "propertyConditionEvaluator"
	NestedEvaluator      = "nestedConditionEvaluator"
	PastEventEvaluator   = "pastEventConditionEvaluator"
	GeoLocationEvaluator = "geoLocationByPointSessionConditionEvaluator"
)

// Evaluator decides whether an item matches a condition of one kind. c is
// the effective, contextual condition.
type Evaluator interface {
	Eval(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error)

func (f EvaluatorFunc) Eval(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error) {
	return f(ctx, c, item, params, d)
}

// Dispatcher evaluates conditions against items.
type Dispatcher struct {
	resolver *Resolver
	cfg      config

	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewDispatcher creates a dispatcher with the built-in evaluators.
func NewDispatcher(resolver *Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:   resolver,
		cfg:        newConfig(opts),
		evaluators: make(map[string]Evaluator),
	}
	d.Register(BooleanEvaluator, EvaluatorFunc(evalBoolean))
	d.Register(NotEvaluator, EvaluatorFunc(evalNot))
	d.Register(MatchAllEvaluator, EvaluatorFunc(evalMatchAll))
	d.Register(IDsEvaluator, EvaluatorFunc(evalIDs))
	d.Register(PropertyEvaluator, EvaluatorFunc(evalProperty))
	d.Register(NestedEvaluator, EvaluatorFunc(evalNested))
	d.Register(PastEventEvaluator, EvaluatorFunc(evalPastEvent))
	d.Register(GeoLocationEvaluator, EvaluatorFunc(evalGeoLocation))
	return d
}

// Register binds an evaluator to a key, replacing any previous one.
func (d *Dispatcher) Register(key string, e Evaluator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.evaluators[key] = e
}

// Resolver returns the resolver the dispatcher binds types with.
func (d *Dispatcher) Resolver() *Resolver { return d.resolver }

// Eval reports whether item matches c.
func (d *Dispatcher) Eval(ctx context.Context, c *types.Condition, item types.Item) bool {
	return d.EvalWith(ctx, c, item, nil)
}

// EvalWith evaluates c with a parameter context.
func (d *Dispatcher) EvalWith(ctx context.Context, c *types.Condition, item types.Item, params Params) bool {
	ok, err := d.eval(ctx, c, item, params)
	if err != nil {
		attrs := []any{logAttrError, err}
		if c != nil {
			attrs = append(attrs, logAttrTypeID, c.TypeID)
		}
		d.cfg.logger.Error(logMsgEvaluatorFailed, attrs...)
		return false
	}
	return ok
}

func (d *Dispatcher) eval(ctx context.Context, c *types.Condition, item types.Item, params Params) (matched bool, err error) {
	if c == nil {
		return false, nil
	}
	if c.Type == nil && !d.resolver.ResolveConditionType(c, "evaluation") {
		d.cfg.logger.Debug(logMsgTypeNotResolved, logAttrTypeID, c.TypeID)
		return false, nil
	}

	eff, effParams, err := d.resolver.EffectiveCondition(c, params)
	if err != nil {
		return false, err
	}
	key := eff.Type.ConditionEvaluator
	if key == "" {
		d.cfg.logger.Warn(logMsgNoEvaluator, logAttrTypeID, eff.TypeID)
		return false, nil
	}
	d.mu.RLock()
	ev, ok := d.evaluators[key]
	d.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", types.ErrNoEvaluator, key)
	}

	contextual, err := ContextualCondition(eff, effParams)
	if err != nil || contextual == nil {
		return false, err
	}

	defer func() {
		if r := recover(); r != nil {
			matched, err = false, fmt.Errorf("evaluator %s panicked: %v", key, r)
		}
	}()
	return ev.Eval(ctx, contextual, item, effParams, d)
}
