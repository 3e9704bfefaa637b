package definitions

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/solatis/condengine/internal/types"
)

func TestBuiltinRegistry(t *testing.T) {
	r, err := NewBuiltinRegistry()
	if err != nil {
		t.Fatalf("NewBuiltinRegistry() error = %v", err)
	}

	ids := []string{
		types.BooleanConditionID,
		types.NotConditionID,
		types.MatchAllConditionID,
		types.IDsConditionID,
		types.PropertyConditionID,
		types.ProfilePropertyConditionID,
		types.SessionPropertyConditionID,
		types.EventPropertyConditionID,
		types.NestedConditionID,
		types.PastEventConditionID,
		types.EventTypeConditionID,
		types.GeoLocationConditionID,
		"profileSegmentCondition",
		"sessionDurationCondition",
		"profileUpdatedEventCondition",
	}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			if r.ConditionType(id) == nil {
				t.Errorf("ConditionType(%q) = nil", id)
			}
		})
	}

	if ct := r.ConditionType(types.EventTypeConditionID); ct.ParentCondition == nil ||
		ct.ParentCondition.TypeID != types.EventPropertyConditionID {
		t.Errorf("eventTypeCondition parent = %v", ct.ParentCondition)
	}
	if r.ActionType("setPropertyAction") == nil || r.ActionType("sendEventAction") == nil {
		t.Error("built-in action types missing")
	}
	if r.ValueType("string") == nil {
		t.Error("built-in value type string missing")
	}
	if r.ConditionType("notDeployed") != nil {
		t.Error("unknown id should return nil")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"ok.json":     `{"metadata":{"id":"pluginCondition"},"conditionEvaluator":"propertyConditionEvaluator"}`,
		"action.json": `{"metadata":{"id":"pluginAction"},"actionExecutor":"noop"}`,
		"bad.json":    `{"metadata":`,
		"skip.txt":    `ignored`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRegistry()
	n, err := r.LoadDir(dir)
	if err == nil {
		t.Error("LoadDir() expected error for bad.json")
	}
	if n != 2 {
		t.Errorf("LoadDir() loaded = %d, want 2", n)
	}
	if r.ConditionType("pluginCondition") == nil || r.ActionType("pluginAction") == nil {
		t.Error("valid definitions were not deployed")
	}
}

func TestLoadDir_Missing(t *testing.T) {
	if _, err := NewRegistry().LoadDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("LoadDir() on missing dir expected error")
	}
}

func TestLoad_RejectsRule(t *testing.T) {
	err := NewRegistry().Load([]byte(`{"metadata":{"id":"r"},"condition":{"type":"matchAllCondition","parameterValues":{}}}`))
	if err == nil {
		t.Error("Load() of a rule expected error")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.AddConditionType(&types.ConditionType{ID: "c"})
				r.RemoveConditionType("c")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.ConditionType("c")
				_ = r.ConditionTypes()
			}
		}()
	}
	wg.Wait()
}
