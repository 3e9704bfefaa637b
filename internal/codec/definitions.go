package codec

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/solatis/condengine/internal/types"
)

// Definition documents share a metadata envelope.
type metadataDoc struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	SystemTags  []string `json:"systemTags,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
}

type parameterDoc struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Multivalued  bool                `json:"multivalued,omitempty"`
	DefaultValue jsoniter.RawMessage `json:"defaultValue,omitempty"`
}

type conditionTypeDoc struct {
	Metadata           metadataDoc         `json:"metadata"`
	ConditionEvaluator string              `json:"conditionEvaluator,omitempty"`
	QueryBuilder       string              `json:"queryBuilder,omitempty"`
	ParentCondition    jsoniter.RawMessage `json:"parentCondition,omitempty"`
	Parameters         []parameterDoc      `json:"parameters,omitempty"`
}

type actionTypeDoc struct {
	Metadata       metadataDoc    `json:"metadata"`
	ActionExecutor string         `json:"actionExecutor"`
	Parameters     []parameterDoc `json:"parameters,omitempty"`
}

type actionDoc struct {
	Type            string              `json:"type"`
	ParameterValues jsoniter.RawMessage `json:"parameterValues,omitempty"`
}

type ruleDoc struct {
	Metadata           metadataDoc         `json:"metadata"`
	Priority           int                 `json:"priority,omitempty"`
	RaiseEventOnlyOnce bool                `json:"raiseEventOnlyOnce,omitempty"`
	Condition          jsoniter.RawMessage `json:"condition"`
	Actions            []actionDoc         `json:"actions,omitempty"`
}

// DefinitionKind classifies a definition document.
type DefinitionKind string

const (
	KindConditionType DefinitionKind = "condition"
	KindActionType    DefinitionKind = "action"
	KindRule          DefinitionKind = "rule"
)

// DetectKind inspects a definition document and reports what it describes.
// Action types carry actionExecutor; rules carry condition; everything else
// with a metadata id is a condition type.
func DetectKind(data []byte) (DefinitionKind, error) {
	var head struct {
		Metadata       metadataDoc         `json:"metadata"`
		ActionExecutor string              `json:"actionExecutor"`
		Condition      jsoniter.RawMessage `json:"condition"`
	}
	if err := api.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("decode definition: %w", err)
	}
	if head.Metadata.ID == "" {
		return "", fmt.Errorf("%w: definition without metadata.id", types.ErrInvalidParameter)
	}
	switch {
	case head.ActionExecutor != "":
		return KindActionType, nil
	case len(head.Condition) > 0:
		return KindRule, nil
	default:
		return KindConditionType, nil
	}
}

// UnmarshalConditionType decodes a condition type definition.
func UnmarshalConditionType(data []byte) (*types.ConditionType, error) {
	var doc conditionTypeDoc
	if err := api.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode condition type: %w", err)
	}
	if doc.Metadata.ID == "" {
		return nil, fmt.Errorf("%w: condition type without metadata.id", types.ErrInvalidParameter)
	}

	ct := &types.ConditionType{
		ID:                 doc.Metadata.ID,
		Name:               doc.Metadata.Name,
		Tags:               doc.Metadata.SystemTags,
		ConditionEvaluator: doc.ConditionEvaluator,
		QueryBuilder:       doc.QueryBuilder,
	}
	if isPresent(doc.ParentCondition) {
		parent, err := UnmarshalCondition(doc.ParentCondition)
		if err != nil {
			return nil, fmt.Errorf("condition type %s: parentCondition: %w", ct.ID, err)
		}
		ct.ParentCondition = parent
	}
	params, err := decodeParameterDefs(doc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("condition type %s: %w", ct.ID, err)
	}
	ct.Parameters = params
	return ct, nil
}

// MarshalConditionType encodes a condition type definition.
func MarshalConditionType(ct *types.ConditionType) ([]byte, error) {
	doc := conditionTypeDoc{
		Metadata:           metadataDoc{ID: ct.ID, Name: ct.Name, SystemTags: ct.Tags},
		ConditionEvaluator: ct.ConditionEvaluator,
		QueryBuilder:       ct.QueryBuilder,
	}
	if ct.ParentCondition != nil {
		raw, err := MarshalCondition(ct.ParentCondition)
		if err != nil {
			return nil, err
		}
		doc.ParentCondition = raw
	}
	params, err := encodeParameterDefs(ct.Parameters)
	if err != nil {
		return nil, err
	}
	doc.Parameters = params
	return api.Marshal(doc)
}

// UnmarshalActionType decodes an action type definition.
func UnmarshalActionType(data []byte) (*types.ActionType, error) {
	var doc actionTypeDoc
	if err := api.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode action type: %w", err)
	}
	if doc.Metadata.ID == "" {
		return nil, fmt.Errorf("%w: action type without metadata.id", types.ErrInvalidParameter)
	}
	params, err := decodeParameterDefs(doc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("action type %s: %w", doc.Metadata.ID, err)
	}
	return &types.ActionType{
		ID:         doc.Metadata.ID,
		Name:       doc.Metadata.Name,
		Executor:   doc.ActionExecutor,
		Tags:       doc.Metadata.SystemTags,
		Parameters: params,
	}, nil
}

// MarshalActionType encodes an action type definition.
func MarshalActionType(at *types.ActionType) ([]byte, error) {
	params, err := encodeParameterDefs(at.Parameters)
	if err != nil {
		return nil, err
	}
	return api.Marshal(actionTypeDoc{
		Metadata:       metadataDoc{ID: at.ID, Name: at.Name, SystemTags: at.Tags},
		ActionExecutor: at.Executor,
		Parameters:     params,
	})
}

// UnmarshalRule decodes a rule definition. Its condition and actions come
// back unresolved.
func UnmarshalRule(data []byte) (*types.Rule, error) {
	var doc ruleDoc
	if err := api.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	if doc.Metadata.ID == "" {
		return nil, fmt.Errorf("%w: rule without metadata.id", types.ErrInvalidParameter)
	}

	r := &types.Rule{
		ID:                 doc.Metadata.ID,
		Name:               doc.Metadata.Name,
		Priority:           doc.Priority,
		RaiseEventOnlyOnce: doc.RaiseEventOnlyOnce,
	}
	if isPresent(doc.Condition) {
		c, err := UnmarshalCondition(doc.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %s: condition: %w", r.ID, err)
		}
		r.Condition = c
	}
	for i, a := range doc.Actions {
		params, err := unmarshalParameters(a.ParameterValues)
		if err != nil {
			return nil, fmt.Errorf("rule %s: action %d: %w", r.ID, i, err)
		}
		r.Actions = append(r.Actions, &types.Action{TypeID: a.Type, Parameters: params})
	}
	return r, nil
}

// MarshalRule encodes a rule definition.
func MarshalRule(r *types.Rule) ([]byte, error) {
	doc := ruleDoc{
		Metadata:           metadataDoc{ID: r.ID, Name: r.Name},
		Priority:           r.Priority,
		RaiseEventOnlyOnce: r.RaiseEventOnlyOnce,
	}
	cond, err := MarshalCondition(r.Condition)
	if err != nil {
		return nil, err
	}
	doc.Condition = cond
	for _, a := range r.Actions {
		pv, err := MarshalValue(types.Map(a.Parameters...))
		if err != nil {
			return nil, err
		}
		doc.Actions = append(doc.Actions, actionDoc{Type: a.TypeID, ParameterValues: pv})
	}
	return api.Marshal(doc)
}

func decodeParameterDefs(docs []parameterDoc) ([]types.ParameterDefinition, error) {
	out := make([]types.ParameterDefinition, 0, len(docs))
	for _, d := range docs {
		def := types.ParameterDefinition{ID: d.ID, Type: d.Type, Multivalued: d.Multivalued}
		if isPresent(d.DefaultValue) {
			v, err := UnmarshalValue(d.DefaultValue)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: defaultValue: %w", d.ID, err)
			}
			def.DefaultValue = v
		}
		out = append(out, def)
	}
	return out, nil
}

func encodeParameterDefs(defs []types.ParameterDefinition) ([]parameterDoc, error) {
	out := make([]parameterDoc, 0, len(defs))
	for _, d := range defs {
		doc := parameterDoc{ID: d.ID, Type: d.Type, Multivalued: d.Multivalued}
		if !d.DefaultValue.IsNull() {
			raw, err := MarshalValue(d.DefaultValue)
			if err != nil {
				return nil, err
			}
			doc.DefaultValue = raw
		}
		out = append(out, doc)
	}
	return out, nil
}

func isPresent(raw jsoniter.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
