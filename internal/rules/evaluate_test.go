package rules

import (
	"context"
	"testing"

	"github.com/solatis/condengine/internal/types"
)

func TestEvaluate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	homeView := f.mustBuild(t, f.builder.And(
		f.eventType("view"),
		f.builder.EventProperty("properties.page").Equals("home"),
	))
	cr := f.engine.Add(rule("home", 0, homeView))[0]

	tests := []struct {
		name        string
		event       *types.Event
		wantMatched bool
		wantSkipped bool
	}{
		{"matching event", pageView("e1", "home"), true, false},
		{"other page", pageView("e2", "cart"), false, false},
		{"other event type", &types.Event{ID: "e3", EventType: "purchase", Properties: map[string]any{"page": "home"}}, false, true},
		{"nil event", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.engine.Evaluate(ctx, cr, tt.event)
			if res.Matched != tt.wantMatched || res.Skipped != tt.wantSkipped {
				t.Errorf("Evaluate() = %+v, want matched=%v skipped=%v", res, tt.wantMatched, tt.wantSkipped)
			}
			if res.RuleID != "home" {
				t.Errorf("RuleID = %q", res.RuleID)
			}
			if res.Matched && (len(res.Actions) != 1 || res.Actions[0].Type == nil) {
				t.Errorf("Actions = %+v, want one bound action", res.Actions)
			}
		})
	}
}

func TestEvaluate_InvalidRuleSkipped(t *testing.T) {
	f := newFixture(t)
	cr := f.engine.Add(rule("vip", 0, types.NewCondition("vipCondition")))[0]

	res := f.engine.Evaluate(context.Background(), cr, pageView("e1", "home"))
	if !res.Skipped || res.Matched {
		t.Errorf("Evaluate() = %+v, want skipped", res)
	}
}

func TestEvaluate_RaiseEventOnlyOnce(t *testing.T) {
	logger := &recordingLogger{}
	f := newFixture(t, WithLogger(logger))
	ctx := context.Background()
	r := rule("once", 0, f.mustBuild(t, f.eventType("view")))
	r.RaiseEventOnlyOnce = true
	cr := f.engine.Add(r)[0]

	first := f.engine.Evaluate(ctx, cr, pageView("e1", "home"))
	if !first.Matched {
		t.Fatalf("first Evaluate() = %+v", first)
	}
	again := f.engine.Evaluate(ctx, cr, pageView("e1", "home"))
	if again.Matched || !again.AlreadyRaised {
		t.Errorf("replayed Evaluate() = %+v, want already raised", again)
	}
	other := f.engine.Evaluate(ctx, cr, pageView("e2", "home"))
	if !other.Matched {
		t.Errorf("new event Evaluate() = %+v", other)
	}
	if n := logger.count(logMsgAlreadyRaised); n != 1 {
		t.Errorf("already raised logged %d times, want 1", n)
	}
}

func TestEvaluate_RaisedForgottenOnRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := rule("once", 0, f.mustBuild(t, f.eventType("view")))
	r.RaiseEventOnlyOnce = true

	cr := f.engine.Add(r)[0]
	if res := f.engine.Evaluate(ctx, cr, pageView("e1", "home")); !res.Matched {
		t.Fatalf("Evaluate() = %+v", res)
	}
	if !f.engine.Remove("once") {
		t.Fatal("Remove() = false")
	}
	if _, ok := f.engine.raised.byRule["once"]; ok {
		t.Error("raised ids kept after Remove")
	}

	cr = f.engine.Add(r)[0]
	if res := f.engine.Evaluate(ctx, cr, pageView("e1", "home")); !res.Matched {
		t.Errorf("redeployed Evaluate() = %+v, want matched", res)
	}
}

func TestEvaluate_RaisedLimit(t *testing.T) {
	f := newFixture(t, WithRaisedLimit(2))
	ctx := context.Background()
	r := rule("once", 0, f.mustBuild(t, f.eventType("view")))
	r.RaiseEventOnlyOnce = true
	cr := f.engine.Add(r)[0]

	for _, id := range []string{"e1", "e2", "e3"} {
		if res := f.engine.Evaluate(ctx, cr, pageView(id, "home")); !res.Matched {
			t.Fatalf("Evaluate(%s) = %+v", id, res)
		}
	}
	if n := len(f.engine.raised.byRule["once"].order); n != 2 {
		t.Errorf("remembered %d ids, want 2", n)
	}

	tests := []struct {
		eventID string
		raised  bool
	}{
		{"e3", true},
		{"e2", true},
		{"e1", false}, // evicted
	}
	for _, tt := range tests {
		t.Run(tt.eventID, func(t *testing.T) {
			res := f.engine.Evaluate(ctx, cr, pageView(tt.eventID, "home"))
			if res.AlreadyRaised != tt.raised {
				t.Errorf("Evaluate() = %+v, want AlreadyRaised %v", res, tt.raised)
			}
		})
	}
}

func TestRaisedLog_Isolated(t *testing.T) {
	l := newRaisedLog(1)
	if l.mark("a", "e1") {
		t.Error("first mark reported seen")
	}
	if l.mark("b", "e1") {
		t.Error("other rule shares ids")
	}
	if !l.mark("a", "e1") {
		t.Error("second mark not seen")
	}
	l.forget("a")
	if l.mark("a", "e1") {
		t.Error("mark after forget reported seen")
	}
}

func TestMatchingRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Add(
		rule("late", 10, f.mustBuild(t, f.eventType("view"))),
		rule("early", 1, f.mustBuild(t, f.eventType("view"))),
		rule("any", 5, f.mustBuild(t, f.builder.Not(f.eventType("purchase")))),
		rule("purchase", 0, f.mustBuild(t, f.eventType("purchase"))),
		rule("cart", 0, f.mustBuild(t, f.builder.EventProperty("properties.page").Equals("cart"))),
		rule("broken", 0, types.NewCondition("vipCondition")),
	)

	got := f.engine.MatchingRules(ctx, pageView("e1", "home"))
	want := []string{"early", "any", "late"}
	if len(got) != len(want) {
		t.Fatalf("MatchingRules() = %+v, want %v", got, want)
	}
	for i, id := range want {
		if got[i].RuleID != id {
			t.Errorf("match %d = %s, want %s", i, got[i].RuleID, id)
		}
	}

	if got := f.engine.MatchingRules(ctx, pageView("e2", "cart")); len(got) != 4 {
		t.Errorf("cart view matched %d rules, want 4", len(got))
	}
	if got := f.engine.MatchingRules(ctx, nil); got != nil {
		t.Errorf("nil event matched %v", got)
	}
}

func TestEngine_AddRemove(t *testing.T) {
	f := newFixture(t)
	f.engine.Add(rule("a", 2, f.mustBuild(t, f.eventType("view"))), rule("b", 1, types.NewCondition("vipCondition")))

	rules := f.engine.Rules()
	if len(rules) != 2 || rules[0].ID() != "b" || rules[1].ID() != "a" {
		t.Errorf("Rules() order = %v", rules)
	}
	if inv := f.engine.Invalid(); len(inv) != 1 || inv[0] != "b" {
		t.Errorf("Invalid() = %v", inv)
	}

	// Redeploying replaces the rule.
	f.engine.Add(rule("b", 1, f.mustBuild(t, f.eventType("view"))))
	if cr, ok := f.engine.Rule("b"); !ok || !cr.Valid {
		t.Errorf("Rule(b) = %+v, %v", cr, ok)
	}

	if !f.engine.Remove("a") {
		t.Error("Remove(a) = false")
	}
	if f.engine.Remove("a") {
		t.Error("second Remove(a) = true")
	}
	if got := f.engine.MatchingRules(context.Background(), pageView("e1", "home")); len(got) != 1 || got[0].RuleID != "b" {
		t.Errorf("MatchingRules() after remove = %+v", got)
	}
}
