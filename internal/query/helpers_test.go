package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/types"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log("error", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

// fakePersistence answers counts and aggregations from fixed data and
// records what it was asked.
type fakePersistence struct {
	mu         sync.Mutex
	count      int64
	counts     map[string]int64 // profileId -> event count
	err        error
	aggregates []conditions.Aggregate
	queried    []*types.Condition
}

func (p *fakePersistence) QueryCount(_ context.Context, c *types.Condition, _ string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queried = append(p.queried, c)
	return p.count, p.err
}

// AggregateQuery splits counts over partitions by the first byte of the id.
func (p *fakePersistence) AggregateQuery(_ context.Context, _ *types.Condition, agg conditions.Aggregate, _ string) (map[string]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aggregates = append(p.aggregates, agg)
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]int64)
	for id, n := range p.counts {
		if agg.NumPartitions > 0 && int(id[0])%agg.NumPartitions != agg.Partition {
			continue
		}
		out[id] = n
	}
	return out, nil
}

type fixture struct {
	reg   *definitions.Registry
	query *Dispatcher
	eval  *conditions.Dispatcher
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	reg, err := definitions.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	resolver := conditions.NewResolver(reg)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return fixture{
		reg:   reg,
		query: NewDispatcher(resolver, opts...),
		eval:  conditions.NewDispatcher(resolver, conditions.WithClock(fixedClock)),
	}
}

func property(typeID, name, op string, params ...any) *types.Condition {
	c := types.NewCondition(typeID).
		SetParameter(conditions.ParamPropertyName, types.String(name)).
		SetParameter(conditions.ParamComparisonOperator, types.String(op))
	for i := 0; i+1 < len(params); i += 2 {
		c.Set(params[i].(string), params[i+1])
	}
	return c
}

func profileProp(name, op string, params ...any) *types.Condition {
	return property(types.ProfilePropertyConditionID, name, op, params...)
}

func boolean(op string, subs ...*types.Condition) *types.Condition {
	return types.NewCondition(types.BooleanConditionID).
		SetParameter("operator", types.String(op)).
		SetParameter("subConditions", types.Conds(subs...))
}

func not(sub *types.Condition) *types.Condition {
	return types.NewCondition(types.NotConditionID).SetParameter("subCondition", types.Cond(sub))
}

func mustBuild(t *testing.T, d *Dispatcher, c *types.Condition) Filter {
	t.Helper()
	f, err := d.BuildFilter(context.Background(), c)
	if err != nil {
		t.Fatalf("BuildFilter(%v) error = %v", c, err)
	}
	return f
}
