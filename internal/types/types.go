// Package types provides domain models shared across condengine components.
//
// Zero-dependency design: the condition model, items and errors use only the
// standard library so every other package (resolver, evaluators, query
// builders, codec, store) can share them without import cycles. ID utilities
// in ids.go import uuid but are isolated in their own file.
//
// Conditions are trees: a Condition's parameter values may embed further
// Conditions (see Value). Condition types form a separate graph through
// ConditionType.ParentCondition; only that graph can contain cycles.
package types

// Item type identifiers used by the persistence collaborator and the
// query index.
const (
	ItemTypeProfile = "profile"
	ItemTypeSession = "session"
	ItemTypeEvent   = "event"
)

// Resource limits enforced by the resolver and query builders.
const (
	// MaxRecursionDepth bounds every recursive walk over conditions and
	// parent-condition chains. Exceeding it fails the walk instead of
	// exhausting the stack.
	MaxRecursionDepth = 1000

	// MaxIDsQueryCount caps the number of identifiers an ids query may carry.
	MaxIDsQueryCount = 5000

	// AggregateBucketSize is the number of profile buckets requested per
	// partition by the legacy past-event aggregation.
	AggregateBucketSize = 5000
)

// Well-known condition type identifiers referenced by the engine itself.
const (
	BooleanConditionID         = "booleanCondition"
	NotConditionID             = "notCondition"
	MatchAllConditionID        = "matchAllCondition"
	IDsConditionID             = "idsCondition"
	PropertyConditionID        = "propertyCondition"
	ProfilePropertyConditionID = "profilePropertyCondition"
	SessionPropertyConditionID = "sessionPropertyCondition"
	EventPropertyConditionID   = "eventPropertyCondition"
	NestedConditionID          = "nestedCondition"
	PastEventConditionID       = "pastEventCondition"
	EventTypeConditionID       = "eventTypeCondition"
	GeoLocationConditionID     = "geoLocationByPointSessionCondition"
)

// AnyEventType is reported by event type extraction when a condition can
// match events of any type.
const AnyEventType = "*"
