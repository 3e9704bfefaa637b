// internal/conditions/accessors.go
package conditions

import (
	"time"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Item property access.
 *
 * Each item kind exposes its fields through an ItemAccessor. Accessors
 * form an ordered table: the first accessor whose Handles reports true
 * reads the next path segment. When a field yields another item (an
 * event's profile, a session's profile) lookup continues through the
 * table; JSON-shaped values (property maps) continue through Resolve.
 *
 * Zero times and empty identifiers read as absent so missing/exists
 * behave the same on items as on property maps.
 */

// ItemAccessor reads named fields of one kind of object.
type ItemAccessor interface {
	Handles(obj any) bool
	Field(obj any, name string) (any, bool)
}

// Accessors is an ordered accessor table.
type Accessors struct {
	table []ItemAccessor
}

// NewAccessors builds a table; earlier accessors win.
func NewAccessors(table ...ItemAccessor) *Accessors {
	return &Accessors{table: table}
}

// DefaultAccessors covers events, sessions, profiles and custom items.
func DefaultAccessors() *Accessors {
	return NewAccessors(eventAccessor{}, sessionAccessor{}, profileAccessor{}, customItemAccessor{})
}

// With returns a table with extra accessors consulted before the existing ones.
func (a *Accessors) With(extra ...ItemAccessor) *Accessors {
	table := make([]ItemAccessor, 0, len(extra)+len(a.table))
	table = append(table, extra...)
	table = append(table, a.table...)
	return &Accessors{table: table}
}

// Get resolves a property path against obj.
func (a *Accessors) Get(obj any, path string) (ResolveResult, error) {
	segs, err := ParsePath(path)
	if err != nil {
		return ResolveResult{}, err
	}
	return a.GetPath(obj, segs), nil
}

// GetPath resolves parsed segments against obj.
func (a *Accessors) GetPath(obj any, segs []types.PathSegment) ResolveResult {
	current := obj
	for i, seg := range segs {
		acc := a.accessorFor(current)
		if acc == nil {
			return Resolve(segs[i:], current)
		}
		if seg.IsIndex {
			return ResolveResult{}
		}
		next, ok := acc.Field(current, seg.Key)
		if !ok {
			return ResolveResult{}
		}
		current = next
	}
	return ResolveResult{Value: current, Found: true}
}

func (a *Accessors) accessorFor(obj any) ItemAccessor {
	if obj == nil {
		return nil
	}
	for _, acc := range a.table {
		if acc.Handles(obj) {
			return acc
		}
	}
	return nil
}

type eventAccessor struct{}

func (eventAccessor) Handles(obj any) bool {
	e, ok := obj.(*types.Event)
	return ok && e != nil
}

func (eventAccessor) Field(obj any, name string) (any, bool) {
	e := obj.(*types.Event)
	switch name {
	case "itemId":
		return nonEmpty(e.ID)
	case "itemType":
		return types.ItemTypeEvent, true
	case "scope":
		return nonEmpty(e.ScopeName)
	case "eventType":
		return nonEmpty(e.EventType)
	case "sessionId":
		return nonEmpty(e.SessionID)
	case "profileId":
		return nonEmpty(e.ProfileID)
	case "timeStamp":
		return nonZero(e.TimeStamp)
	case "properties":
		return mapOrAbsent(e.Properties)
	case "source":
		if e.Source == nil {
			return nil, false
		}
		return e.Source, true
	case "target":
		if e.Target == nil {
			return nil, false
		}
		return e.Target, true
	case "profile":
		if e.Profile == nil {
			return nil, false
		}
		return e.Profile, true
	case "session":
		if e.Session == nil {
			return nil, false
		}
		return e.Session, true
	}
	return nil, false
}

type sessionAccessor struct{}

func (sessionAccessor) Handles(obj any) bool {
	s, ok := obj.(*types.Session)
	return ok && s != nil
}

func (sessionAccessor) Field(obj any, name string) (any, bool) {
	s := obj.(*types.Session)
	switch name {
	case "itemId":
		return nonEmpty(s.ID)
	case "itemType":
		return types.ItemTypeSession, true
	case "scope":
		return nonEmpty(s.ScopeName)
	case "profileId":
		return nonEmpty(s.ProfileID)
	case "profile":
		if s.Profile == nil {
			return nil, false
		}
		return s.Profile, true
	case "properties":
		return mapOrAbsent(s.Properties)
	case "systemProperties":
		return mapOrAbsent(s.SystemProperties)
	case "timeStamp":
		return nonZero(s.TimeStamp)
	case "lastEventDate":
		return nonZero(s.LastEventDate)
	case "duration":
		return s.Duration, true
	case "size":
		return int64(s.Size), true
	}
	return nil, false
}

type profileAccessor struct{}

func (profileAccessor) Handles(obj any) bool {
	p, ok := obj.(*types.Profile)
	return ok && p != nil
}

func (profileAccessor) Field(obj any, name string) (any, bool) {
	p := obj.(*types.Profile)
	switch name {
	case "itemId":
		return nonEmpty(p.ID)
	case "itemType":
		return types.ItemTypeProfile, true
	case "scope":
		return nonEmpty(p.ScopeName)
	case "properties":
		return mapOrAbsent(p.Properties)
	case "systemProperties":
		return mapOrAbsent(p.SystemProperties)
	case "segments":
		if p.Segments == nil {
			return nil, false
		}
		out := make([]any, len(p.Segments))
		for i, s := range p.Segments {
			out[i] = s
		}
		return out, true
	case "scores":
		if p.Scores == nil {
			return nil, false
		}
		out := make(map[string]any, len(p.Scores))
		for k, v := range p.Scores {
			out[k] = int64(v)
		}
		return out, true
	case "consents":
		if p.Consents == nil {
			return nil, false
		}
		out := make(map[string]any, len(p.Consents))
		for k, c := range p.Consents {
			out[k] = consentFields(c)
		}
		return out, true
	case "mergedWith":
		return nonEmpty(p.MergedWith)
	}
	return nil, false
}

func consentFields(c types.Consent) map[string]any {
	m := map[string]any{
		"typeIdentifier": c.TypeID,
		"status":         c.Status,
	}
	if !c.StatusDate.IsZero() {
		m["statusDate"] = c.StatusDate
	}
	if !c.RevokeDate.IsZero() {
		m["revokeDate"] = c.RevokeDate
	}
	return m
}

type customItemAccessor struct{}

func (customItemAccessor) Handles(obj any) bool {
	c, ok := obj.(*types.CustomItem)
	return ok && c != nil
}

func (customItemAccessor) Field(obj any, name string) (any, bool) {
	c := obj.(*types.CustomItem)
	switch name {
	case "itemId":
		return nonEmpty(c.ID)
	case "itemType":
		return nonEmpty(c.Type)
	case "scope":
		return nonEmpty(c.ScopeName)
	case "properties":
		return mapOrAbsent(c.Properties)
	}
	return nil, false
}

func nonEmpty(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func nonZero(t time.Time) (any, bool) {
	if t.IsZero() {
		return nil, false
	}
	return t, true
}

func mapOrAbsent(m map[string]any) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m, true
}
