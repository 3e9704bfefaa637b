// internal/rules/engine.go
package rules

import (
	"slices"
	"sync"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Engine holds the deployed rules.
 *
 * Rules are kept compiled, in priority order (ascending priority, then id),
 * and indexed by the event types their conditions target. Invalid rules stay
 * deployed so a later Refresh can enable them.
 *
 * Thread safety: all methods are safe for concurrent use. Evaluation works
 * on a snapshot of the rule list, so Add, Remove and Refresh never block
 * behind a slow condition.
 */

// Engine compiles rules and matches events against them.
type Engine struct {
	resolver  *conditions.Resolver
	evaluator *conditions.Dispatcher
	cfg       config

	mu      sync.RWMutex
	rules   map[string]*CompiledRule
	ordered []*CompiledRule
	byType  map[string][]*CompiledRule

	raised *raisedLog
}

// NewEngine creates an engine evaluating conditions with evaluator and
// resolving types with its resolver.
func NewEngine(evaluator *conditions.Dispatcher, opts ...Option) *Engine {
	cfg := newConfig(opts)
	return &Engine{
		resolver:  evaluator.Resolver(),
		evaluator: evaluator,
		cfg:       cfg,
		rules:     make(map[string]*CompiledRule),
		byType:    make(map[string][]*CompiledRule),
		raised:    newRaisedLog(cfg.raisedLimit),
	}
}

// Add compiles and deploys rules, replacing deployed rules with the same id.
func (e *Engine) Add(rules ...*types.Rule) []*CompiledRule {
	compiled := make([]*CompiledRule, 0, len(rules))
	for _, r := range rules {
		if r == nil {
			continue
		}
		cr := Compile(e.resolver, r)
		if !cr.Valid {
			e.cfg.logger.Warn(logMsgRuleInvalid, logAttrRuleID, r.ID)
		}
		compiled = append(compiled, cr)
	}
	e.install(compiled)
	return compiled
}

// Remove undeploys a rule and reports whether it was deployed. The rule's
// raised event ids are dropped with it.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return false
	}
	delete(e.rules, id)
	e.reindex()
	e.raised.forget(id)
	return true
}

// Rule returns a deployed rule.
func (e *Engine) Rule(id string) (*CompiledRule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cr, ok := e.rules[id]
	return cr, ok
}

// Rules returns every deployed rule in priority order.
func (e *Engine) Rules() []*CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.ordered)
}

// Invalid returns the ids of deployed rules with unresolved types.
func (e *Engine) Invalid() []string {
	var ids []string
	for _, cr := range e.Rules() {
		if !cr.Valid {
			ids = append(ids, cr.ID())
		}
	}
	return ids
}

// candidates returns the rules targeting eventType or every event type, in
// priority order.
func (e *Engine) candidates(eventType string) []*CompiledRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := slices.Clone(e.byType[eventType])
	if eventType != types.AnyEventType {
		out = append(out, e.byType[types.AnyEventType]...)
	}
	slices.SortFunc(out, byPriority)
	return slices.CompactFunc(out, func(a, b *CompiledRule) bool { return a == b })
}

func (e *Engine) install(compiled []*CompiledRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cr := range compiled {
		e.rules[cr.ID()] = cr
	}
	e.reindex()
}

// reindex rebuilds the ordered list and the event type index. Caller holds mu.
func (e *Engine) reindex() {
	e.ordered = e.ordered[:0]
	for _, cr := range e.rules {
		e.ordered = append(e.ordered, cr)
	}
	slices.SortFunc(e.ordered, byPriority)

	e.byType = make(map[string][]*CompiledRule)
	for _, cr := range e.ordered {
		for _, id := range cr.EventTypeIDs {
			e.byType[id] = append(e.byType[id], cr)
		}
	}
}
