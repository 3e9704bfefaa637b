package query

import (
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

// Logger receives query builder diagnostics. *slog.Logger satisfies it.
//
// Debug level: effective condition expansion, legacy past event path
// Warn level: conditions without a query builder
// Error level: aggregation failures.
type Logger = conditions.Logger

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

const (
	logMsgNoQueryBuilder    = "no query builder for condition type"
	logMsgBuildFailed       = "query build failed"
	logMsgLegacyPastEvent   = "past event condition without generated property key, aggregating events"
	logMsgAggregationFailed = "past event aggregation failed"
	logMsgPartitionedCount  = "aggregating past events over partitions"
	logMsgTooManyProfileIDs = "past event aggregation matched more profiles than an ids query can carry"
	logMsgVoidedCondition   = "condition voided by an absent parameter reference"

	logAttrTypeID     = "condition_type"
	logAttrBuilder    = "query_builder"
	logAttrItemType   = "item_type"
	logAttrPartitions = "partitions"
	logAttrCount      = "count"
	logAttrError      = "error"
)

type config struct {
	logger            Logger
	persistence       conditions.Persistence
	now               func() time.Time
	maxIDs            int
	bucketSize        int
	disablePartitions bool
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:     nopLogger{},
		now:        time.Now,
		maxIDs:     types.MaxIDsQueryCount,
		bucketSize: types.AggregateBucketSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a Dispatcher.
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

// WithPersistence sets the storage collaborator used for counts and the
// legacy past event aggregation.
func WithPersistence(p conditions.Persistence) Option {
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

// WithMaxIDs overrides the identifier cap of ids queries.
func WithMaxIDs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIDs = n
		}
	}
}

// WithAggregation tunes the legacy past event aggregation: bucket size
// per partition, and whether to request all buckets in one query.
func WithAggregation(bucketSize int, disablePartitions bool) Option {
	return func(c *config) {
		if bucketSize > 0 {
			c.bucketSize = bucketSize
		}
		c.disablePartitions = disablePartitions
	}
}
