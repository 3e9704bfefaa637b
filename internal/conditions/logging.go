package conditions

import (
	"context"
	"time"

	"github.com/solatis/condengine/internal/types"
)

// Logger receives resolver and evaluator diagnostics. *slog.Logger
// satisfies it.
//
// Debug level: missing geo data, effective condition expansion
// Info level: slow property access
// Warn level: unresolved types, cycles, nil conditions
// Error level: depth overflow, evaluator failures.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	logMsgNilCondition          = "cannot resolve nil condition"
	logMsgDepthExceeded         = "maximum recursion depth exceeded while resolving condition"
	logMsgTypeCycle             = "circular parent condition reference"
	logMsgMissingTypeID         = "condition has no type id"
	logMsgUnresolvedType        = "could not resolve condition type"
	logMsgUnresolvedActionType  = "could not resolve action type"
	logMsgParentUnresolved      = "failed to resolve parent condition"
	logMsgRuleWithoutActions    = "rule has no actions"
	logMsgNegatedEventType      = "event type under negation, rule will always be evaluated"
	logMsgMissingEventTypeID    = "eventTypeCondition without eventTypeId"
	logMsgEffectiveCondition    = "resolved effective condition"
	logMsgTypeNotResolved       = "condition type not resolved, evaluating to false"
	logMsgNoEvaluator           = "no evaluator for condition type"
	logMsgEvaluatorFailed       = "condition evaluator failed"
	logMsgSlowPropertyAccess    = "slow property access"
	logMsgPropertyAccessFailed  = "error reading property"
	logMsgGeoLocationUnusable   = "location missing or unparsable"
	logMsgNestedEvaluation      = "nested condition evaluation failed"
	logMsgPastEventLegacyPath   = "past event condition without generated property key, using live count"
	logMsgPastEventCountFailure = "past event count query failed"

	logAttrContext      = "context"
	logAttrTypeID       = "condition_type"
	logAttrActionTypeID = "action_type"
	logAttrRuleID       = "rule_id"
	logAttrDepth        = "depth"
	logAttrEvaluator    = "evaluator"
	logAttrEffective    = "effective_type"
	logAttrItemType     = "item_type"
	logAttrProperty     = "property"
	logAttrDurationMS   = "duration_ms"
	logAttrPath         = "path"
	logAttrError        = "error"
)

// Persistence is the storage collaborator used by the legacy past event
// path. Implementations compile the condition to their own query language.
type Persistence interface {
	// QueryCount counts items of itemType matching c.
	QueryCount(ctx context.Context, c *types.Condition, itemType string) (int64, error)

	// AggregateQuery counts items of itemType matching c grouped by agg.Field.
	AggregateQuery(ctx context.Context, c *types.Condition, agg Aggregate, itemType string) (map[string]int64, error)
}

// Aggregate describes a terms aggregation. A zero NumPartitions disables
// partitioning; Size caps the number of buckets returned.
type Aggregate struct {
	Field         string
	Partition     int
	NumPartitions int
	Size          int
}

type config struct {
	logger      Logger
	memo        *UnresolvedMemo
	maxDepth    int
	persistence Persistence
	now         func() time.Time
	slowAccess  time.Duration
	accessors   *Accessors
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:     nopLogger{},
		maxDepth:   types.MaxRecursionDepth,
		now:        time.Now,
		slowAccess: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.memo == nil {
		cfg.memo = NewUnresolvedMemo()
	}
	if cfg.accessors == nil {
		cfg.accessors = DefaultAccessors()
	}
	return cfg
}

// Option configures a Resolver or Dispatcher.
type Option func(*config)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l == nil {
			c.logger = nopLogger{}
			return
		}
		c.logger = l
	}
}

// WithMemo shares an unresolved-id memo between resolvers.
func WithMemo(m *UnresolvedMemo) Option {
	return func(c *config) { c.memo = m }
}

// WithMaxDepth overrides the recursion ceiling.
func WithMaxDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithPersistence sets the storage collaborator for past event counting.
func WithPersistence(p Persistence) Option {
	return func(c *config) { c.persistence = p }
}

// WithClock overrides the time source used by relative date expressions.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSlowAccessThreshold sets the property access duration above which
// an info line is logged. Zero disables the check.
func WithSlowAccessThreshold(d time.Duration) Option {
	return func(c *config) { c.slowAccess = d }
}

// WithAccessors replaces the property accessor table.
func WithAccessors(a *Accessors) Option {
	return func(c *config) { c.accessors = a }
}
