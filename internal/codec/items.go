package codec

import (
	"fmt"
	"time"

	"github.com/solatis/condengine/internal/types"
)

// itemDoc is the JSON envelope shared by all item kinds. Fields that do not
// apply to a kind stay empty.
type itemDoc struct {
	ItemID           string                `json:"itemId"`
	ItemType         string                `json:"itemType"`
	Scope            string                `json:"scope,omitempty"`
	Properties       map[string]any        `json:"properties,omitempty"`
	SystemProperties map[string]any        `json:"systemProperties,omitempty"`
	Segments         []string              `json:"segments,omitempty"`
	Scores           map[string]int        `json:"scores,omitempty"`
	Consents         map[string]consentDoc `json:"consents,omitempty"`
	MergedWith       string                `json:"mergedWith,omitempty"`
	ProfileID        string                `json:"profileId,omitempty"`
	SessionID        string                `json:"sessionId,omitempty"`
	EventType        string                `json:"eventType,omitempty"`
	TimeStamp        *time.Time            `json:"timeStamp,omitempty"`
	LastEventDate    *time.Time            `json:"lastEventDate,omitempty"`
	Duration         int64                 `json:"duration,omitempty"`
	Size             int                   `json:"size,omitempty"`
	Source           *itemDoc              `json:"source,omitempty"`
	Target           *itemDoc              `json:"target,omitempty"`
	Profile          *itemDoc              `json:"profile,omitempty"`
	Session          *itemDoc              `json:"session,omitempty"`
}

type consentDoc struct {
	TypeID     string     `json:"typeIdentifier"`
	Status     string     `json:"status"`
	StatusDate *time.Time `json:"statusDate,omitempty"`
	RevokeDate *time.Time `json:"revokeDate,omitempty"`
}

// UnmarshalItem decodes an item. itemType selects the Go type; unknown
// types decode as CustomItem.
func UnmarshalItem(data []byte) (types.Item, error) {
	var doc itemDoc
	if err := api.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if doc.ItemType == "" {
		return nil, fmt.Errorf("%w: item without itemType", types.ErrUnknownItemType)
	}
	return doc.item(), nil
}

// MarshalItem encodes an item.
func MarshalItem(item types.Item) ([]byte, error) {
	doc, err := docFromItem(item)
	if err != nil {
		return nil, err
	}
	return api.Marshal(doc)
}

// UnmarshalItems decodes a JSON array of items.
func UnmarshalItems(data []byte) ([]types.Item, error) {
	var docs []itemDoc
	if err := api.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	out := make([]types.Item, 0, len(docs))
	for i := range docs {
		if docs[i].ItemType == "" {
			return nil, fmt.Errorf("%w: item %d without itemType", types.ErrUnknownItemType, i)
		}
		out = append(out, docs[i].item())
	}
	return out, nil
}

func (d *itemDoc) item() types.Item {
	if d.ItemID == "" {
		d.ItemID = types.NewItemID()
	}
	switch d.ItemType {
	case types.ItemTypeProfile:
		return d.profile()
	case types.ItemTypeSession:
		return d.session()
	case types.ItemTypeEvent:
		e := &types.Event{
			ID:         d.ItemID,
			EventType:  d.EventType,
			ScopeName:  d.Scope,
			SessionID:  d.SessionID,
			ProfileID:  d.ProfileID,
			TimeStamp:  deref(d.TimeStamp),
			Properties: d.Properties,
		}
		if d.Source != nil {
			e.Source = d.Source.custom()
		}
		if d.Target != nil {
			e.Target = d.Target.custom()
		}
		if d.Profile != nil {
			e.Profile = d.Profile.profile()
		}
		if d.Session != nil {
			e.Session = d.Session.session()
		}
		return e
	default:
		return d.custom()
	}
}

func (d *itemDoc) profile() *types.Profile {
	p := &types.Profile{
		ID:               d.ItemID,
		ScopeName:        d.Scope,
		Properties:       d.Properties,
		SystemProperties: d.SystemProperties,
		Segments:         d.Segments,
		Scores:           d.Scores,
		MergedWith:       d.MergedWith,
	}
	if len(d.Consents) > 0 {
		p.Consents = make(map[string]types.Consent, len(d.Consents))
		for k, c := range d.Consents {
			p.Consents[k] = types.Consent{
				TypeID:     c.TypeID,
				Status:     c.Status,
				StatusDate: deref(c.StatusDate),
				RevokeDate: deref(c.RevokeDate),
			}
		}
	}
	return p
}

func (d *itemDoc) session() *types.Session {
	s := &types.Session{
		ID:               d.ItemID,
		ScopeName:        d.Scope,
		ProfileID:        d.ProfileID,
		Properties:       d.Properties,
		SystemProperties: d.SystemProperties,
		TimeStamp:        deref(d.TimeStamp),
		LastEventDate:    deref(d.LastEventDate),
		Duration:         d.Duration,
		Size:             d.Size,
	}
	if d.Profile != nil {
		s.Profile = d.Profile.profile()
	}
	return s
}

func (d *itemDoc) custom() *types.CustomItem {
	return &types.CustomItem{ID: d.ItemID, Type: d.ItemType, ScopeName: d.Scope, Properties: d.Properties}
}

func docFromItem(item types.Item) (*itemDoc, error) {
	switch it := item.(type) {
	case *types.Profile:
		d := &itemDoc{
			ItemID:           it.ID,
			ItemType:         types.ItemTypeProfile,
			Scope:            it.ScopeName,
			Properties:       it.Properties,
			SystemProperties: it.SystemProperties,
			Segments:         it.Segments,
			Scores:           it.Scores,
			MergedWith:       it.MergedWith,
		}
		if len(it.Consents) > 0 {
			d.Consents = make(map[string]consentDoc, len(it.Consents))
			for k, c := range it.Consents {
				d.Consents[k] = consentDoc{
					TypeID:     c.TypeID,
					Status:     c.Status,
					StatusDate: ref(c.StatusDate),
					RevokeDate: ref(c.RevokeDate),
				}
			}
		}
		return d, nil
	case *types.Session:
		d := &itemDoc{
			ItemID:           it.ID,
			ItemType:         types.ItemTypeSession,
			Scope:            it.ScopeName,
			ProfileID:        it.ProfileID,
			Properties:       it.Properties,
			SystemProperties: it.SystemProperties,
			TimeStamp:        ref(it.TimeStamp),
			LastEventDate:    ref(it.LastEventDate),
			Duration:         it.Duration,
			Size:             it.Size,
		}
		if it.Profile != nil {
			p, err := docFromItem(it.Profile)
			if err != nil {
				return nil, err
			}
			d.Profile = p
		}
		return d, nil
	case *types.Event:
		d := &itemDoc{
			ItemID:     it.ID,
			ItemType:   types.ItemTypeEvent,
			Scope:      it.ScopeName,
			EventType:  it.EventType,
			SessionID:  it.SessionID,
			ProfileID:  it.ProfileID,
			TimeStamp:  ref(it.TimeStamp),
			Properties: it.Properties,
		}
		for _, pair := range []struct {
			dst **itemDoc
			src types.Item
		}{{&d.Source, customOrNil(it.Source)}, {&d.Target, customOrNil(it.Target)}, {&d.Profile, profileOrNil(it.Profile)}, {&d.Session, sessionOrNil(it.Session)}} {
			if pair.src == nil {
				continue
			}
			sub, err := docFromItem(pair.src)
			if err != nil {
				return nil, err
			}
			*pair.dst = sub
		}
		return d, nil
	case *types.CustomItem:
		return &itemDoc{ItemID: it.ID, ItemType: it.Type, Scope: it.ScopeName, Properties: it.Properties}, nil
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownItemType, item)
	}
}

// The helpers below keep typed nil pointers out of the types.Item interface.

func customOrNil(c *types.CustomItem) types.Item {
	if c == nil {
		return nil
	}
	return c
}

func profileOrNil(p *types.Profile) types.Item {
	if p == nil {
		return nil
	}
	return p
}

func sessionOrNil(s *types.Session) types.Item {
	if s == nil {
		return nil
	}
	return s
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

func ref(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
