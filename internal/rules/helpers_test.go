package rules

import (
	"sync"
	"testing"
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/types"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type recordingLogger struct {
	mu   sync.Mutex
	msgs map[string]int
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.msgs == nil {
		l.msgs = make(map[string]int)
	}
	l.msgs[msg]++
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log(msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log(msg) }

func (l *recordingLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.msgs[msg]
}

type fixture struct {
	engine   *Engine
	registry *definitions.Registry
	builder  *conditions.Builder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg, err := definitions.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	evaluator := conditions.NewDispatcher(conditions.NewResolver(reg), conditions.WithClock(fixedClock))
	return &fixture{
		engine:   NewEngine(evaluator, opts...),
		registry: reg,
		builder:  conditions.NewBuilder(reg),
	}
}

func (f *fixture) eventType(id string) *conditions.Item {
	return f.builder.Condition(types.EventTypeConditionID).Parameter("eventTypeId", id)
}

func (f *fixture) mustBuild(t *testing.T, it *conditions.Item) *types.Condition {
	t.Helper()
	c, err := it.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return c
}

func setProperty() []*types.Action {
	return []*types.Action{{TypeID: "setPropertyAction"}}
}

func rule(id string, priority int, c *types.Condition) *types.Rule {
	return &types.Rule{ID: id, Name: id, Priority: priority, Condition: c, Actions: setProperty()}
}

func pageView(id, page string) *types.Event {
	return &types.Event{
		ID:         id,
		EventType:  "view",
		ProfileID:  "p1",
		TimeStamp:  fixedNow,
		Properties: map[string]any{"page": page},
	}
}
