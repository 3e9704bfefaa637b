package conditions

import (
	"sort"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

// Visitor receives callbacks during Walk. Visit runs before a node's
// sub-conditions, PostVisit after them. Either may be nil.
type Visitor struct {
	Visit     func(c *types.Condition)
	PostVisit func(c *types.Condition)
}

// Walk traverses root depth-first: the node, then every condition held by
// its parameters in parameter order and list order, then PostVisit.
// Recursion stops at the default depth ceiling.
func Walk(root *types.Condition, v Visitor) {
	walk(root, v, 0)
}

func walk(c *types.Condition, v Visitor, depth int) {
	if c == nil || depth > types.MaxRecursionDepth {
		return
	}
	if v.Visit != nil {
		v.Visit(c)
	}
	for _, p := range c.Parameters() {
		for _, sub := range p.Value.Conditions() {
			walk(sub, v, depth+1)
		}
	}
	if v.PostVisit != nil {
		v.PostVisit(c)
	}
}

// CollectTypeIDs returns the distinct condition type ids used in root,
// sorted.
func CollectTypeIDs(root *types.Condition) []string {
	seen := make(map[string]struct{})
	Walk(root, Visitor{Visit: func(c *types.Condition) {
		seen[c.TypeID] = struct{}{}
	}})
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EventTypeIDs returns the event types a condition can match, sorted and
// deduplicated. Parent conditions are followed so derived types such as
// profileUpdatedEventCondition contribute their template's event type.
// An eventTypeCondition under a notCondition, or one whose event type is
// a parameter reference, yields types.AnyEventType. Unresolved nodes are
// resolved on the way.
func (r *Resolver) EventTypeIDs(root *types.Condition) []string {
	x := &eventTypeExtractor{r: r, found: make(map[string]struct{})}
	x.walk(root, 0)
	out := make([]string, 0, len(x.found))
	for id := range x.found {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// eventTypeExtractor keeps the stack of ancestor type ids across parent
// condition expansion.
type eventTypeExtractor struct {
	r     *Resolver
	stack []string
	found map[string]struct{}
}

func (x *eventTypeExtractor) negated() bool {
	for _, id := range x.stack {
		if id == types.NotConditionID {
			return true
		}
	}
	return false
}

func (x *eventTypeExtractor) walk(root *types.Condition, depth int) {
	if depth > x.r.cfg.maxDepth {
		return
	}
	walk(root, Visitor{
		Visit: func(c *types.Condition) {
			x.stack = append(x.stack, c.TypeID)
			x.visit(c, depth)
		},
		PostVisit: func(*types.Condition) {
			x.stack = x.stack[:len(x.stack)-1]
		},
	}, 0)
}

func (x *eventTypeExtractor) visit(c *types.Condition, depth int) {
	if c.Type == nil {
		x.r.ResolveConditionType(c, "event type extraction")
	}
	if c.TypeID == types.EventTypeConditionID {
		id, ok := c.StringParam("eventTypeId")
		switch {
		case !ok:
			x.r.cfg.logger.Warn(logMsgMissingEventTypeID)
		case x.negated():
			x.r.cfg.logger.Debug(logMsgNegatedEventType, logAttrTypeID, id)
			x.found[types.AnyEventType] = struct{}{}
		case strings.HasPrefix(id, parameterPrefix) || strings.HasPrefix(id, scriptPrefix):
			x.found[types.AnyEventType] = struct{}{}
		default:
			x.found[id] = struct{}{}
		}
		return
	}
	if c.Type == nil || c.Type.ParentCondition == nil {
		return
	}
	graphMu.RLock()
	parent := c.Type.ParentCondition.Clone()
	graphMu.RUnlock()
	x.walk(parent, depth+1)
}
