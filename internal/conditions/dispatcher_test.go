package conditions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/solatis/condengine/internal/definitions"
	"github.com/solatis/condengine/internal/types"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// countingTypes registers two leaf types that count their evaluations.
func countingTypes(t *testing.T, d *Dispatcher, reg *definitions.Registry) (*int32, *int32) {
	t.Helper()
	var trues, falses int32
	reg.AddConditionType(&types.ConditionType{ID: "countTrue", ConditionEvaluator: "countTrueEvaluator"})
	reg.AddConditionType(&types.ConditionType{ID: "countFalse", ConditionEvaluator: "countFalseEvaluator"})
	d.Register("countTrueEvaluator", EvaluatorFunc(func(context.Context, *types.Condition, types.Item, Params, *Dispatcher) (bool, error) {
		atomic.AddInt32(&trues, 1)
		return true, nil
	}))
	d.Register("countFalseEvaluator", EvaluatorFunc(func(context.Context, *types.Condition, types.Item, Params, *Dispatcher) (bool, error) {
		atomic.AddInt32(&falses, 1)
		return false, nil
	}))
	return &trues, &falses
}

func TestEval_BooleanShortCircuit(t *testing.T) {
	d, reg := newTestDispatcher(t)
	trues, falses := countingTypes(t, d, reg)
	item := &types.Profile{ID: "p1"}
	T := func() *types.Condition { return types.NewCondition("countTrue") }
	F := func() *types.Condition { return types.NewCondition("countFalse") }

	if d.Eval(context.Background(), boolean("and", T(), F(), T()), item) {
		t.Error("and[T,F,T] = true, want false")
	}
	if *trues != 1 || *falses != 1 {
		t.Errorf("and evaluated T=%d F=%d, want 1 and 1", *trues, *falses)
	}

	*trues, *falses = 0, 0
	if !d.Eval(context.Background(), boolean("or", F(), T(), F()), item) {
		t.Error("or[F,T,F] = false, want true")
	}
	if *trues != 1 || *falses != 1 {
		t.Errorf("or evaluated T=%d F=%d, want 1 and 1", *trues, *falses)
	}
}

func TestEval_BooleanEmpty(t *testing.T) {
	d, _ := newTestDispatcher(t)
	item := &types.Profile{ID: "p1"}
	ctx := context.Background()

	tests := []struct {
		name string
		c    *types.Condition
		want bool
	}{
		{"and over empty list", boolean("and"), true},
		{"or over empty list", boolean("or"), false},
		{"missing subConditions", types.NewCondition(types.BooleanConditionID), true},
		{"operator defaults to and", types.NewCondition(types.BooleanConditionID).
			SetParameter("subConditions", types.Conds(types.NewCondition(types.MatchAllConditionID), not(types.NewCondition(types.MatchAllConditionID)))), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, item); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_Not(t *testing.T) {
	d, _ := newTestDispatcher(t)
	item := &types.Profile{ID: "p1"}
	if d.Eval(context.Background(), types.NewCondition(types.NotConditionID), item) {
		t.Error("not without subCondition = true, want false")
	}
	if d.Eval(context.Background(), not(types.NewCondition(types.MatchAllConditionID)), item) {
		t.Error("not(matchAll) = true")
	}
}

func TestEval_PropertyOperatorTable(t *testing.T) {
	d, _ := newTestDispatcher(t, WithClock(fixedClock))
	present := &types.Profile{ID: "p1", Properties: map[string]any{"n": float64(5)}}
	absent := &types.Profile{ID: "p2", Properties: map[string]any{}}
	ctx := context.Background()

	tests := []struct {
		name        string
		c           *types.Condition
		wantPresent bool
	}{
		{"greaterThan 3", profileProp("properties.n", OpGreaterThan, ParamPropertyValueInteger, 3), true},
		{"lessThan 3", profileProp("properties.n", OpLessThan, ParamPropertyValueInteger, 3), false},
		{"between 1 10", profileProp("properties.n", OpBetween, ParamPropertyValuesInteger, []int{1, 10}), true},
		{"exists", profileProp("properties.n", OpExists), true},
		{"missing", profileProp("properties.n", OpMissing), false},
		{"equals 5", profileProp("properties.n", OpEquals, ParamPropertyValueInteger, 5), true},
		{"notEquals 5", profileProp("properties.n", OpNotEquals, ParamPropertyValueInteger, 5), false},
		{"gte 5", profileProp("properties.n", OpGreaterThanOrEqualTo, ParamPropertyValueInteger, 5), true},
		{"lte 4", profileProp("properties.n", OpLessThanOrEqualTo, ParamPropertyValueInteger, 4), false},
		{"equals double", profileProp("properties.n", OpEquals, ParamPropertyValueDouble, 5.0), true},
		{"equals string", profileProp("properties.n", OpEquals, ParamPropertyValue, "5"), true},
		{"in", profileProp("properties.n", OpIn, ParamPropertyValuesInteger, []int{4, 5}), true},
		{"notIn", profileProp("properties.n", OpNotIn, ParamPropertyValuesInteger, []int{4, 5}), false},
		{"contains", profileProp("properties.n", OpContains, ParamPropertyValue, "5"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, present); got != tt.wantPresent {
				t.Errorf("present: Eval() = %v, want %v", got, tt.wantPresent)
			}
			wantAbsent := tt.c.Param(ParamComparisonOperator).Interface() == OpMissing
			if got := d.Eval(ctx, tt.c, absent); got != wantAbsent {
				t.Errorf("absent: Eval() = %v, want %v", got, wantAbsent)
			}
		})
	}
}

func TestEval_StringOperators(t *testing.T) {
	d, _ := newTestDispatcher(t)
	p := &types.Profile{ID: "p1", Properties: map[string]any{
		"firstName": "Émile",
		"email":     "Emile@Example.com",
		"tags":      []any{"Sport", "music"},
		"nullValue": nil,
	}}
	ctx := context.Background()

	tests := []struct {
		name string
		c    *types.Condition
		want bool
	}{
		{"equals folds accents", profileProp("properties.firstName", OpEquals, ParamPropertyValue, "emile"), true},
		{"equals folds both sides", profileProp("properties.firstName", OpEquals, ParamPropertyValue, "EMILE"), true},
		{"contains", profileProp("properties.email", OpContains, ParamPropertyValue, "example"), true},
		{"notContains", profileProp("properties.email", OpNotContains, ParamPropertyValue, "example"), false},
		{"startsWith", profileProp("properties.email", OpStartsWith, ParamPropertyValue, "emile@"), true},
		{"endsWith", profileProp("properties.email", OpEndsWith, ParamPropertyValue, ".org"), false},
		{"matchesRegex full match", profileProp("properties.email", OpMatchesRegex, ParamPropertyValue, `[a-z]+@example\.com`), true},
		{"matchesRegex partial is no match", profileProp("properties.email", OpMatchesRegex, ParamPropertyValue, `example`), false},
		{"equals on collection", profileProp("properties.tags", OpEquals, ParamPropertyValue, "sport"), true},
		{"equals on collection miss", profileProp("properties.tags", OpEquals, ParamPropertyValue, "art"), false},
		{"notEquals on collection hit", profileProp("properties.tags", OpNotEquals, ParamPropertyValue, "sport"), false},
		{"notEquals on collection miss", profileProp("properties.tags", OpNotEquals, ParamPropertyValue, "art"), true},
		{"in", profileProp("properties.tags", OpIn, ParamPropertyValues, []string{"art", "Music"}), true},
		{"notIn", profileProp("properties.tags", OpNotIn, ParamPropertyValues, []string{"art"}), true},
		{"all", profileProp("properties.tags", OpAll, ParamPropertyValues, []string{"sport", "music"}), true},
		{"all missing one", profileProp("properties.tags", OpAll, ParamPropertyValues, []string{"sport", "art"}), false},
		{"hasSomeOf", profileProp("properties.tags", OpHasSomeOf, ParamPropertyValues, []string{"art", "sport"}), true},
		{"hasNoneOf", profileProp("properties.tags", OpHasNoneOf, ParamPropertyValues, []string{"art", "sport"}), false},
		{"inContains", profileProp("properties.tags", OpInContains, ParamPropertyValues, []string{"spo"}), true},
		{"null value is missing", profileProp("properties.nullValue", OpMissing), true},
		{"null value does not exist", profileProp("properties.nullValue", OpExists), false},
		{"bracket path", profileProp(`properties["firstName"]`, OpEquals, ParamPropertyValue, "emile"), true},
		{"leading dot path", profileProp(".properties.firstName", OpEquals, ParamPropertyValue, "emile"), true},
		{"unknown operator", profileProp("properties.firstName", "sortOf", ParamPropertyValue, "emile"), false},
		{"no operator", types.NewCondition(types.ProfilePropertyConditionID).Set(ParamPropertyName, "properties.firstName"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, p); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_Dates(t *testing.T) {
	d, _ := newTestDispatcher(t, WithClock(fixedClock))
	e := &types.Event{
		ID:        "e1",
		EventType: "view",
		TimeStamp: time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC),
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	ev := func(op string, params ...any) *types.Condition {
		return property(types.EventPropertyConditionID, "timeStamp", op, params...)
	}

	tests := []struct {
		name string
		c    *types.Condition
		want bool
	}{
		{"isDay same calendar day", ev(OpIsDay, ParamPropertyValueDate, day), true},
		{"isNotDay same calendar day", ev(OpIsNotDay, ParamPropertyValueDate, day), false},
		{"isDay next day", ev(OpIsDay, ParamPropertyValueDate, day.AddDate(0, 0, 1)), false},
		{"equals differs by instant", ev(OpEquals, ParamPropertyValueDate, day), false},
		{"greaterThan date", ev(OpGreaterThan, ParamPropertyValueDate, day), true},
		{"greaterThan now-30d", ev(OpGreaterThan, ParamPropertyValueDateExpr, "now-30d"), true},
		{"greaterThan now-7d", ev(OpGreaterThan, ParamPropertyValueDateExpr, "now-7d"), false},
		{"between dates", ev(OpBetween, ParamPropertyValuesDate, []time.Time{day, day.AddDate(0, 0, 1)}), true},
		{"between date exprs", ev(OpBetween, ParamPropertyValuesDateExp, []string{"now-30d/d", "now"}), true},
		{"lte rounds up", ev(OpLessThanOrEqualTo, ParamPropertyValueDateExpr, "2024-03-01||/d"), true},
		{"isDay with expression", ev(OpIsDay, ParamPropertyValueDateExpr, "now-14d"), true},
		{"bad expression", ev(OpGreaterThan, ParamPropertyValueDateExpr, "now+x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, e); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_ParentBasedTypes(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()
	profile := &types.Profile{ID: "p1", Segments: []string{"gold", "vip"}}
	session := &types.Session{ID: "s1", Profile: profile, Duration: 150}
	event := &types.Event{ID: "e1", EventType: "profileUpdated", Profile: profile, Session: session}

	tests := []struct {
		name string
		c    *types.Condition
		item types.Item
		want bool
	}{
		{"eventTypeCondition match", eventType("profileUpdated"), event, true},
		{"eventTypeCondition miss", eventType("view"), event, false},
		{"eventTypeCondition folds", eventType("PROFILEUPDATED"), event, true},
		{"eventTypeCondition without id", types.NewCondition(types.EventTypeConditionID), event, false},
		{"two-level parent chain", types.NewCondition("profileUpdatedEventCondition"), event, true},
		{"segment default matchType", types.NewCondition("profileSegmentCondition").
			SetParameter("segments", types.Strings("gold")), profile, true},
		{"segment miss", types.NewCondition("profileSegmentCondition").
			SetParameter("segments", types.Strings("bronze")), profile, false},
		{"segment explicit matchType", types.NewCondition("profileSegmentCondition").
			SetParameter("segments", types.Strings("gold", "bronze")).
			SetParameter("matchType", types.String(OpAll)), profile, false},
		{"segment reference absent", types.NewCondition("profileSegmentCondition"), profile, false},
		{"session duration default operator", types.NewCondition("sessionDurationCondition").
			SetParameter("duration", types.Int(100)), session, true},
		{"session duration lessThan", types.NewCondition("sessionDurationCondition").
			SetParameter("duration", types.Int(100)).
			SetParameter("comparisonOperator", types.String(OpLessThan)), session, false},
		{"event type under not", not(eventType("view")), event, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, tt.item); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEval_ParameterContext(t *testing.T) {
	d, _ := newTestDispatcher(t)
	p := &types.Profile{ID: "p1", Properties: map[string]any{"city": "Paris"}}
	c := profileProp("properties.city", OpEquals, ParamPropertyValue, "parameter::city")

	if !d.EvalWith(context.Background(), c, p, Params{"city": types.String("paris")}) {
		t.Error("reference resolved from context did not match")
	}
	if d.EvalWith(context.Background(), c, p, nil) {
		t.Error("unbound reference matched")
	}
	script := profileProp("properties.city", OpEquals, ParamPropertyValue, "script::profile.city")
	if d.Eval(context.Background(), script, p) {
		t.Error("script reference matched")
	}
}

func TestEval_Nested(t *testing.T) {
	d, _ := newTestDispatcher(t)
	p := &types.Profile{ID: "p1", Properties: map[string]any{
		"interests": []any{
			map[string]any{"name": "Sport", "score": float64(5)},
			map[string]any{"name": "music", "score": float64(1)},
			"not an object",
		},
	}}
	nested := func(subs ...*types.Condition) *types.Condition {
		return types.NewCondition(types.NestedConditionID).
			SetParameter("path", types.String("properties.interests")).
			SetParameter("subCondition", types.Cond(boolean("and", subs...)))
	}
	ctx := context.Background()

	if !d.Eval(ctx, nested(
		profileProp("properties.interests.name", OpEquals, ParamPropertyValue, "sport"),
		profileProp("properties.interests.score", OpGreaterThanOrEqualTo, ParamPropertyValueInteger, 3),
	), p) {
		t.Error("nested match within one element = false")
	}
	if d.Eval(ctx, nested(
		profileProp("properties.interests.name", OpEquals, ParamPropertyValue, "music"),
		profileProp("properties.interests.score", OpGreaterThanOrEqualTo, ParamPropertyValueInteger, 3),
	), p) {
		t.Error("nested conditions matched across different elements")
	}
	if d.Eval(ctx, nested(types.NewCondition(types.MatchAllConditionID)), &types.Event{ID: "e1"}) {
		t.Error("nested condition matched an event")
	}
	bad := types.NewCondition(types.NestedConditionID).
		SetParameter("path", types.String("segments")).
		SetParameter("subCondition", types.Cond(types.NewCondition(types.MatchAllConditionID)))
	if d.Eval(ctx, bad, p) {
		t.Error("nested path outside properties matched")
	}
}

func geoCondition(params ...any) *types.Condition {
	c := types.NewCondition(types.GeoLocationConditionID)
	for i := 0; i+1 < len(params); i += 2 {
		c.Set(params[i].(string), params[i+1])
	}
	return c
}

func TestEval_GeoLocation(t *testing.T) {
	log := &recordingLogger{}
	d, _ := newTestDispatcher(t, WithLogger(log))
	paris := &types.Session{ID: "s1", Properties: map[string]any{
		"location": map[string]any{"lat": 48.8566, "lon": 2.3522},
	}}
	ctx := context.Background()

	tests := []struct {
		name string
		c    *types.Condition
		item types.Item
		want bool
	}{
		{"circle inside", geoCondition("circleLatitude", 48.85, "circleLongitude", 2.35, "distance", "10km"), paris, true},
		{"circle outside", geoCondition("circleLatitude", 51.5, "circleLongitude", -0.12, "distance", "100km"), paris, false},
		{"circle in miles", geoCondition("circleLatitude", 51.5, "circleLongitude", -0.12, "distance", "250mi"), paris, true},
		{"rectangle inside", geoCondition("type", "rectangle", "rectLatitudeNE", 49.0, "rectLongitudeNE", 3.0,
			"rectLatitudeSW", 48.0, "rectLongitudeSW", 2.0), paris, true},
		{"rectangle outside", geoCondition("type", "rectangle", "rectLatitudeNE", 47.0, "rectLongitudeNE", 3.0,
			"rectLatitudeSW", 46.0, "rectLongitudeSW", 2.0), paris, false},
		{"event through session", geoCondition("circleLatitude", 48.85, "circleLongitude", 2.35, "distance", "10km"),
			&types.Event{ID: "e1", Session: paris}, true},
		{"missing location", geoCondition("circleLatitude", 48.85, "circleLongitude", 2.35, "distance", "10km"),
			&types.Session{ID: "s2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, tt.item); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
	if log.count("debug", logMsgGeoLocationUnusable) == 0 {
		t.Error("missing location was not logged at debug level")
	}
	if log.count("error", logMsgGeoLocationUnusable) != 0 {
		t.Error("missing location logged as error")
	}
}

func TestEval_IDs(t *testing.T) {
	d, _ := newTestDispatcher(t)
	p := &types.Profile{ID: "p1"}
	ids := types.NewCondition(types.IDsConditionID).SetParameter("ids", types.Strings("p1", "p2"))
	if !d.Eval(context.Background(), ids, p) {
		t.Error("listed id did not match")
	}
	ids.SetParameter("match", types.Bool(false))
	if d.Eval(context.Background(), ids, p) {
		t.Error("listed id matched with match=false")
	}
}

type fakePersistence struct {
	count    int64
	err      error
	itemType string
	last     *types.Condition
}

func (f *fakePersistence) QueryCount(_ context.Context, c *types.Condition, itemType string) (int64, error) {
	f.last, f.itemType = c, itemType
	return f.count, f.err
}

func (f *fakePersistence) AggregateQuery(context.Context, *types.Condition, Aggregate, string) (map[string]int64, error) {
	return nil, errors.New("not used")
}

func pastEvent(params ...any) *types.Condition {
	c := types.NewCondition(types.PastEventConditionID).SetParameter("eventCondition", types.Cond(eventType("purchase")))
	for i := 0; i+1 < len(params); i += 2 {
		c.Set(params[i].(string), params[i+1])
	}
	return c
}

func TestEval_PastEventCounter(t *testing.T) {
	d, _ := newTestDispatcher(t)
	key, err := PastEventPropertyKey(pastEvent())
	if err != nil {
		t.Fatalf("PastEventPropertyKey() error = %v", err)
	}
	p := &types.Profile{ID: "p1"}
	RecordPastEvent(p, key, 2)
	RecordPastEvent(p, key, 1)
	if got := PastEventCount(p, key); got != 3 {
		t.Fatalf("PastEventCount() = %d, want 3", got)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		c    *types.Condition
		want bool
	}{
		{"occurred", pastEvent("generatedPropertyKey", key), true},
		{"within range", pastEvent("generatedPropertyKey", key, "minimumEventCount", 2, "maximumEventCount", 5), true},
		{"below minimum", pastEvent("generatedPropertyKey", key, "minimumEventCount", 4), false},
		{"above maximum", pastEvent("generatedPropertyKey", key, "maximumEventCount", 2), false},
		{"not occurred", pastEvent("generatedPropertyKey", key, "operator", PastEventsNotOccurred), false},
		{"other key not occurred", pastEvent("generatedPropertyKey", "other", "operator", PastEventsNotOccurred), true},
		{"other key occurred", pastEvent("generatedPropertyKey", "other"), false},
		{"unsupported operator", pastEvent("generatedPropertyKey", key, "operator", "sometimes"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Eval(ctx, tt.c, p); got != tt.want {
				t.Errorf("Eval() = %v, want %v", got, tt.want)
			}
		})
	}
	if !d.Eval(ctx, pastEvent("generatedPropertyKey", key), &types.Event{ID: "e", Profile: p}) {
		t.Error("event item did not use its profile counter")
	}
}

func TestEval_PastEventLegacy(t *testing.T) {
	fp := &fakePersistence{count: 2}
	d, _ := newTestDispatcher(t, WithPersistence(fp), WithClock(fixedClock))
	p := &types.Profile{ID: "p1"}
	ctx := context.Background()

	if !d.Eval(ctx, pastEvent("numberOfDays", 7), p) {
		t.Error("legacy count 2 did not satisfy eventsOccurred")
	}
	if fp.itemType != types.ItemTypeEvent {
		t.Errorf("QueryCount itemType = %q, want event", fp.itemType)
	}
	if fp.last == nil || !fp.last.IsResolved() {
		t.Fatal("QueryCount received an unresolved condition")
	}
	if got := CollectTypeIDs(fp.last); len(got) < 3 {
		t.Errorf("count query types = %v, want window and profile conditions", got)
	}

	fp.err = errors.New("storage down")
	if d.Eval(ctx, pastEvent(), p) {
		t.Error("count failure matched")
	}

	noStore, _ := newTestDispatcher(t)
	if noStore.Eval(ctx, pastEvent(), p) {
		t.Error("legacy path without persistence matched")
	}
}

func TestEval_FailureModes(t *testing.T) {
	log := &recordingLogger{}
	d, reg := newTestDispatcher(t, WithLogger(log))
	reg.AddConditionType(&types.ConditionType{ID: "ghostEvaluated", ConditionEvaluator: "ghostEvaluator"})
	reg.AddConditionType(&types.ConditionType{ID: "noEvaluator"})
	reg.AddConditionType(&types.ConditionType{ID: "panicky", ConditionEvaluator: "panicEvaluator"})
	d.Register("panicEvaluator", EvaluatorFunc(func(context.Context, *types.Condition, types.Item, Params, *Dispatcher) (bool, error) {
		panic("boom")
	}))
	p := &types.Profile{ID: "p1"}
	ctx := context.Background()

	for _, c := range []*types.Condition{
		nil,
		types.NewCondition("undeployed"),
		types.NewCondition("ghostEvaluated"),
		types.NewCondition("noEvaluator"),
		types.NewCondition("panicky"),
		profileProp("properties[", OpExists),
	} {
		if d.Eval(ctx, c, p) {
			t.Errorf("Eval(%v) = true, want false", c)
		}
	}
	if log.count("error", logMsgEvaluatorFailed) < 2 {
		t.Errorf("evaluator failures logged %d times, want at least 2", log.count("error", logMsgEvaluatorFailed))
	}
	if log.count("warn", logMsgNoEvaluator) != 1 {
		t.Error("type without evaluator was not warned about")
	}
}

func TestEval_SlowPropertyAccessLogged(t *testing.T) {
	log := &recordingLogger{}
	slow := slowAccessor{delay: 2 * time.Millisecond}
	d, _ := newTestDispatcher(t, WithLogger(log), WithSlowAccessThreshold(time.Millisecond),
		WithAccessors(DefaultAccessors().With(slow)))
	d.Eval(context.Background(), profileProp("properties.x", OpExists), &types.Profile{ID: "p1"})
	if log.count("info", logMsgSlowPropertyAccess) != 1 {
		t.Error("slow property access not logged at info level")
	}
}

type slowAccessor struct{ delay time.Duration }

func (s slowAccessor) Handles(obj any) bool {
	_, ok := obj.(*types.Profile)
	return ok
}

func (s slowAccessor) Field(any, string) (any, bool) {
	time.Sleep(s.delay)
	return nil, false
}
