package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCondition_ParameterOrder(t *testing.T) {
	c := NewCondition("x").
		SetParameter("b", Int(1)).
		SetParameter("a", String("s")).
		SetParameter("c", Bool(true))
	c.SetParameter("b", Int(2))

	ps := c.Parameters()
	want := []string{"b", "a", "c"}
	if len(ps) != len(want) {
		t.Fatalf("len = %d, want %d", len(ps), len(want))
	}
	for i, name := range want {
		if ps[i].Name != name {
			t.Errorf("parameter %d = %s, want %s", i, ps[i].Name, name)
		}
	}
	if n, _ := c.Param("b").AsInt(); n != 2 {
		t.Errorf("b = %d, want 2 after replace", n)
	}

	c.DeleteParameter("a")
	if _, ok := c.Parameter("a"); ok {
		t.Error("a still present after delete")
	}
	if !c.Param("missing").IsNull() {
		t.Error("absent parameter is not Null")
	}
}

func TestCondition_CloneIsDeep(t *testing.T) {
	inner := NewCondition("leaf").SetParameter("v", String("old"))
	c := NewCondition("root").SetParameter("subConditions", Conds(inner))
	cp := c.Clone()

	inner.SetParameter("v", String("new"))
	subs, _ := cp.ConditionsParam("subConditions")
	if s, _ := subs[0].StringParam("v"); s != "old" {
		t.Errorf("clone shares nested condition: v = %q", s)
	}
	if !cp.Equal(cp.Clone()) {
		t.Error("clone not equal to itself")
	}
	if c.Equal(cp) {
		t.Error("diverged trees compare equal")
	}
}

func TestValue_Of(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	tests := []struct {
		name string
		in   any
		want ValueKind
	}{
		{"nil", nil, KindNull},
		{"string", "s", KindString},
		{"int", 3, KindInt},
		{"float", 1.5, KindFloat},
		{"bool", true, KindBool},
		{"time", ts, KindDate},
		{"strings", []string{"a"}, KindList},
		{"map", map[string]any{"b": 1, "a": 2}, KindMap},
		{"condition", NewCondition("x"), KindCondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.in).Kind(); got != tt.want {
				t.Errorf("Of(%v).Kind() = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if d, _ := Of(ts).AsDate(); d.Location() != time.UTC {
		t.Error("dates are not normalized to UTC")
	}
	m, _ := Of(map[string]any{"b": 1, "a": 2}).AsMap()
	if m[0].Name != "a" || m[1].Name != "b" {
		t.Errorf("native map not ordered by key: %v", m)
	}
}

func TestValue_Conditions(t *testing.T) {
	a, b := NewCondition("a"), NewCondition("b")
	v := List(Cond(a), String("x"), Cond(b))
	got := v.Conditions()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Conditions() = %v, want [a b]", got)
	}
	if Cond(nil).Kind() != KindNull {
		t.Error("Cond(nil) is not Null")
	}
}

func TestIDs(t *testing.T) {
	id := NewItemID()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error = %v", id, err)
	}
	if u.Version() != 7 {
		t.Errorf("NewItemID() version = %d, want 7", u.Version())
	}
	k1 := GeneratedPropertyKey([]byte(`{"a":1}`))
	if k1 != GeneratedPropertyKey([]byte(`{"a":1}`)) || k1 == GeneratedPropertyKey([]byte(`{"a":2}`)) {
		t.Error("GeneratedPropertyKey is not a stable function of its input")
	}
}
