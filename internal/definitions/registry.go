// internal/definitions/registry.go
package definitions

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Type registry.
 *
 * Registry is the lookup service the resolver, the condition builder and
 * the rules engine share: condition types, action types and value types by
 * id. Lookups of undeployed ids return nil, which callers treat as "not yet
 * available" rather than an error.
 *
 * Definitions arrive as JSON documents (metadata envelope, see
 * internal/codec). Built-in types are embedded; plugin directories are
 * loaded with LoadDir. Adding a type replaces any previous definition with
 * the same id, which is how redeployment works.
 *
 * Thread safety: all methods are safe for concurrent use.
 */

//go:embed builtin
var builtinFS embed.FS

// builtinValueTypes are the property value types known without plugins.
var builtinValueTypes = []string{
	"string", "integer", "long", "float", "double", "boolean", "date",
	"email", "geopoint", "set", "id", "comparisonOperator", "Condition",
}

// Registry holds deployed definitions.
type Registry struct {
	mu         sync.RWMutex
	conditions map[string]*types.ConditionType
	actions    map[string]*types.ActionType
	values     map[string]*types.ValueType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conditions: make(map[string]*types.ConditionType),
		actions:    make(map[string]*types.ActionType),
		values:     make(map[string]*types.ValueType),
	}
}

// NewBuiltinRegistry creates a registry preloaded with the built-in
// condition, action and value types.
func NewBuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadBuiltins(); err != nil {
		return nil, err
	}
	return r, nil
}

// ConditionType returns the condition type with the given id, or nil.
func (r *Registry) ConditionType(id string) *types.ConditionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conditions[id]
}

// ActionType returns the action type with the given id, or nil.
func (r *Registry) ActionType(id string) *types.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actions[id]
}

// ValueType returns the value type with the given id, or nil.
func (r *Registry) ValueType(id string) *types.ValueType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[id]
}

// AddConditionType deploys ct, replacing an existing type with the same id.
func (r *Registry) AddConditionType(ct *types.ConditionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[ct.ID] = ct
}

// RemoveConditionType undeploys a condition type.
func (r *Registry) RemoveConditionType(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conditions, id)
}

// AddActionType deploys at.
func (r *Registry) AddActionType(at *types.ActionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[at.ID] = at
}

// AddValueType deploys vt.
func (r *Registry) AddValueType(vt *types.ValueType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[vt.ID] = vt
}

// ConditionTypes returns all deployed condition types ordered by id.
func (r *Registry) ConditionTypes() []*types.ConditionType {
	r.mu.RLock()
	out := make([]*types.ConditionType, 0, len(r.conditions))
	for _, ct := range r.conditions {
		out = append(out, ct)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActionTypes returns all deployed action types ordered by id.
func (r *Registry) ActionTypes() []*types.ActionType {
	r.mu.RLock()
	out := make([]*types.ActionType, 0, len(r.actions))
	for _, at := range r.actions {
		out = append(out, at)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Load deploys one JSON definition document. Rules are rejected; they are
// not registry content.
func (r *Registry) Load(data []byte) error {
	kind, err := codec.DetectKind(data)
	if err != nil {
		return err
	}
	switch kind {
	case codec.KindConditionType:
		ct, err := codec.UnmarshalConditionType(data)
		if err != nil {
			return err
		}
		r.AddConditionType(ct)
	case codec.KindActionType:
		at, err := codec.UnmarshalActionType(data)
		if err != nil {
			return err
		}
		r.AddActionType(at)
	default:
		return fmt.Errorf("%w: rule documents cannot be deployed as types", types.ErrInvalidParameter)
	}
	return nil
}

// LoadBuiltins deploys the embedded definitions and value types.
func (r *Registry) LoadBuiltins() error {
	for _, id := range builtinValueTypes {
		r.AddValueType(&types.ValueType{ID: id})
	}
	_, err := r.loadFS(builtinFS, "builtin")
	return err
}

// LoadDir deploys every *.json file below dir and returns how many were
// loaded. Failures are collected; valid files are still deployed.
func (r *Registry) LoadDir(dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("definitions dir: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("definitions dir %s: not a directory", dir)
	}
	return r.loadFS(os.DirFS(dir), ".")
}

func (r *Registry) loadFS(fsys fs.FS, root string) (int, error) {
	var errs []error
	loaded := 0
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		if err := r.Load(data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return loaded, errors.Join(errs...)
}
