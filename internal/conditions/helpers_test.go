package conditions

import (
	"fmt"
	"sync"
	"testing"

	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/types"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

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

func builtinRegistry(t *testing.T) *definitions.Registry {
	t.Helper()
	r, err := definitions.NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}
	return r
}

func newTestDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *definitions.Registry) {
	t.Helper()
	reg := builtinRegistry(t)
	return NewDispatcher(NewResolver(reg, opts...), opts...), reg
}

func property(typeID, name, op string, params ...any) *types.Condition {
	c := types.NewCondition(typeID).
		SetParameter(ParamPropertyName, types.String(name)).
		SetParameter(ParamComparisonOperator, types.String(op))
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

func eventType(id string) *types.Condition {
	return types.NewCondition(types.EventTypeConditionID).SetParameter("eventTypeId", types.String(id))
}

// nestedNots builds depth notConditions wrapping a matchAllCondition.
func nestedNots(depth int) *types.Condition {
	c := types.NewCondition(types.MatchAllConditionID)
	for i := 0; i < depth; i++ {
		c = not(c)
	}
	return c
}

// randomTree builds a deterministic mixed tree from seed.
func randomTree(depth, width int, seed int) *types.Condition {
	if depth == 0 {
		switch seed % 3 {
		case 0:
			return types.NewCondition(types.MatchAllConditionID)
		case 1:
			return eventType(fmt.Sprintf("type%d", seed%5))
		default:
			return profileProp(fmt.Sprintf("properties.p%d", seed%4), OpEquals, ParamPropertyValue, "v")
		}
	}
	if seed%4 == 0 {
		return not(randomTree(depth-1, width, seed/4+1))
	}
	subs := make([]*types.Condition, 0, width)
	for i := 0; i < width; i++ {
		subs = append(subs, randomTree(depth-1, width, seed*31+i))
	}
	op := "and"
	if seed%2 == 1 {
		op = "or"
	}
	return boolean(op, subs...)
}
