// internal/types/items.go
package types

import "time"

/*
 * Items conditions are evaluated against.
 *
 * Profile, Session, Event and CustomItem mirror the customer-data entities
 * rules and segments run over. Property maps hold JSON-shaped data
 * (map[string]any, []any, string, float64/int64, bool, nil).
 */

// Item is anything a condition can be evaluated against.
type Item interface {
	ItemID() string
	ItemType() string
	Scope() string
}

// Consent records a profile's consent decision.
type Consent struct {
	TypeID     string
	Status     string
	StatusDate time.Time
	RevokeDate time.Time
}

// Profile is a visitor profile.
type Profile struct {
	ID               string
	ScopeName        string
	Properties       map[string]any
	SystemProperties map[string]any
	Segments         []string
	Scores           map[string]int
	Consents         map[string]Consent
	MergedWith       string
}

func (p *Profile) ItemID() string   { return p.ID }
func (p *Profile) ItemType() string { return ItemTypeProfile }
func (p *Profile) Scope() string    { return p.ScopeName }

// Session is a visit of a profile.
type Session struct {
	ID               string
	ScopeName        string
	ProfileID        string
	Profile          *Profile
	Properties       map[string]any
	SystemProperties map[string]any
	TimeStamp        time.Time
	LastEventDate    time.Time
	Duration         int64
	Size             int
}

func (s *Session) ItemID() string   { return s.ID }
func (s *Session) ItemType() string { return ItemTypeSession }
func (s *Session) Scope() string    { return s.ScopeName }

// CustomItem is a free-form item such as an event source or target.
type CustomItem struct {
	ID         string
	Type       string
	ScopeName  string
	Properties map[string]any
}

func (c *CustomItem) ItemID() string   { return c.ID }
func (c *CustomItem) ItemType() string { return c.Type }
func (c *CustomItem) Scope() string    { return c.ScopeName }

// Event is something a profile did during a session.
type Event struct {
	ID         string
	EventType  string
	ScopeName  string
	SessionID  string
	ProfileID  string
	TimeStamp  time.Time
	Source     *CustomItem
	Target     *CustomItem
	Properties map[string]any
	Profile    *Profile
	Session    *Session
}

func (e *Event) ItemID() string   { return e.ID }
func (e *Event) ItemType() string { return ItemTypeEvent }
func (e *Event) Scope() string    { return e.ScopeName }
