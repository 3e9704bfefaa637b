package conditions

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/condengine/internal/types"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    []types.PathSegment
		wantErr error
	}{
		{
			name: "dotted",
			path: "properties.firstName",
			want: []types.PathSegment{{Key: "properties"}, {Key: "firstName"}},
		},
		{
			name: "leading dot",
			path: ".properties.firstName",
			want: []types.PathSegment{{Key: "properties"}, {Key: "firstName"}},
		},
		{
			name: "double quoted key with dots",
			path: `properties["first.name"]`,
			want: []types.PathSegment{{Key: "properties"}, {Key: "first.name"}},
		},
		{
			name: "single quoted key",
			path: `properties['first.name'].x`,
			want: []types.PathSegment{{Key: "properties"}, {Key: "first.name"}, {Key: "x"}},
		},
		{
			name: "index",
			path: "properties.interests[1].name",
			want: []types.PathSegment{{Key: "properties"}, {Key: "interests"}, {Index: 1, IsIndex: true}, {Key: "name"}},
		},
		{name: "empty", path: "", wantErr: types.ErrInvalidPath},
		{name: "only dot", path: ".", wantErr: types.ErrInvalidPath},
		{name: "empty segment", path: "a..b", wantErr: types.ErrInvalidPath},
		{name: "unclosed bracket", path: "a[0", wantErr: types.ErrInvalidPath},
		{name: "negative index", path: "a[-1]", wantErr: types.ErrInvalidPath},
		{name: "non-numeric index", path: "a[x]", wantErr: types.ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePath(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve_Normal(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		data      string
		expected  any
		wantFound bool
	}{
		{"nested object traversal", "user.name", `{"user": {"name": "Alice"}}`, "Alice", true},
		{"array index access", "users[0].name", `{"users": [{"name": "Bob"}]}`, "Bob", true},
		{"deep nesting", "a.b.c.d", `{"a": {"b": {"c": {"d": "deep"}}}}`, "deep", true},
		{"explicit null is found", "a.b", `{"a": {"b": null}}`, nil, true},
		{"missing key", "a.c", `{"a": {"b": 1}}`, nil, false},
		{"index out of range", "a[3]", `{"a": [1]}`, nil, false},
		{"key into scalar", "a.b", `{"a": 1}`, nil, false},
		{"index into object", "a[0]", `{"a": {"0": 1}}`, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data any
			if err := json.Unmarshal([]byte(tt.data), &data); err != nil {
				t.Fatal(err)
			}
			segs, err := ParsePath(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			res := Resolve(segs, data)
			if res.Found != tt.wantFound {
				t.Fatalf("Resolve() Found = %v, want %v", res.Found, tt.wantFound)
			}
			if res.Value != tt.expected {
				t.Errorf("Resolve() Value = %v, want %v", res.Value, tt.expected)
			}
		})
	}
}

func TestResolve_PathStringRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("parse after render yields the same segments", prop.ForAll(
		func(keys []string, idx int) bool {
			segs := make([]types.PathSegment, 0, len(keys)+1)
			for _, k := range keys {
				segs = append(segs, types.PathSegment{Key: k})
			}
			segs = append(segs, types.PathSegment{Index: idx, IsIndex: true})
			got, err := ParsePath(pathString(segs))
			return err == nil && reflect.DeepEqual(got, segs)
		},
		gen.SliceOfN(3, gen.Identifier()).SuchThat(func(ks []string) bool { return len(ks) > 0 }),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestAccessors_Items(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	profile := &types.Profile{
		ID:         "p1",
		Properties: map[string]any{"age": float64(30), "address": map[string]any{"city": "Lyon"}},
		Segments:   []string{"gold"},
		Scores:     map[string]int{"engagement": 12},
		Consents: map[string]types.Consent{
			"newsletter": {TypeID: "newsletter", Status: "GRANTED", StatusDate: ts},
		},
	}
	session := &types.Session{ID: "s1", ProfileID: "p1", Profile: profile, Duration: 60, TimeStamp: ts}
	event := &types.Event{
		ID: "e1", EventType: "view", SessionID: "s1", ProfileID: "p1", TimeStamp: ts,
		Target:  &types.CustomItem{ID: "page-1", Type: "page", Properties: map[string]any{"path": "/home"}},
		Profile: profile, Session: session,
	}
	a := DefaultAccessors()

	tests := []struct {
		name      string
		obj       any
		path      string
		want      any
		wantFound bool
	}{
		{"profile property", profile, "properties.age", float64(30), true},
		{"profile nested property", profile, "properties.address.city", "Lyon", true},
		{"profile segment index", profile, "segments[0]", "gold", true},
		{"profile score", profile, "scores.engagement", int64(12), true},
		{"profile consent status", profile, "consents.newsletter.status", "GRANTED", true},
		{"profile missing", profile, "properties.ghost", nil, false},
		{"profile unknown field", profile, "color", nil, false},
		{"session duration", session, "duration", int64(60), true},
		{"session through profile", session, "profile.properties.age", float64(30), true},
		{"event type", event, "eventType", "view", true},
		{"event target property", event, "target.properties.path", "/home", true},
		{"event target id", event, "target.itemId", "page-1", true},
		{"event session", event, "session.duration", int64(60), true},
		{"event timestamp", event, "timeStamp", ts, true},
		{"event missing source", event, "source.itemId", nil, false},
		{"unsupported object", struct{}{}, "x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Get(tt.obj, tt.path)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if res.Found != tt.wantFound {
				t.Fatalf("Get() Found = %v, want %v", res.Found, tt.wantFound)
			}
			if tt.wantFound && !reflect.DeepEqual(res.Value, tt.want) {
				t.Errorf("Get() = %#v, want %#v", res.Value, tt.want)
			}
		})
	}

	if _, err := a.Get(profile, "properties["); !errors.Is(err, types.ErrInvalidPath) {
		t.Errorf("Get() with bad path error = %v, want ErrInvalidPath", err)
	}
}
