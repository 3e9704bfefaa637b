package rules

import "github.com/solatis/condengine/internal/conditions"

const (
	logMsgRuleInvalid   = "rule has unresolved types, it will not be evaluated"
	logMsgRuleValid     = "rule types resolved, rule enabled"
	logMsgRefreshDone   = "rule refresh completed"
	logMsgAlreadyRaised = "rule already raised for event"
	logAttrRuleID       = "rule_id"
	logAttrEventID      = "event_id"
	logAttrRules        = "rules"
	logAttrEnabled      = "enabled"
	logAttrInvalid      = "invalid"
	logAttrDurationMS   = "duration_ms"
)

// defaultWorkers bounds concurrent recompilation when no option is given.
const defaultWorkers = 4

// Logger is the structured logger the engine writes to. *slog.Logger
// satisfies it.
type Logger = conditions.Logger

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type config struct {
	logger      Logger
	workers     int
	raisedLimit int
}

// Option configures an Engine.
type Option func(*config)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWorkers bounds how many rules Refresh compiles at once.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithRaisedLimit bounds how many event ids each RaiseEventOnlyOnce rule
// remembers. The oldest id is forgotten first.
func WithRaisedLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.raisedLimit = n
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{logger: nopLogger{}, workers: defaultWorkers, raisedLimit: defaultRaisedLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
