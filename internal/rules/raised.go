// internal/rules/raised.go
package rules

import "sync"

/*
 * Raised event log for RaiseEventOnlyOnce rules.
 *
 * Each rule keeps the ids of the events it already fired for, oldest first.
 * Once a rule holds limit ids the oldest is forgotten, so a very old event
 * replayed after that fires again. Removing a rule drops its log.
 */

// defaultRaisedLimit bounds the event ids remembered per rule.
const defaultRaisedLimit = 10000

type raisedLog struct {
	mu     sync.Mutex
	limit  int
	byRule map[string]*raisedEvents
}

type raisedEvents struct {
	seen  map[string]struct{}
	order []string
}

func newRaisedLog(limit int) *raisedLog {
	return &raisedLog{limit: limit, byRule: make(map[string]*raisedEvents)}
}

// mark records eventID for ruleID and reports whether it was already there.
func (l *raisedLog) mark(ruleID, eventID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	re, ok := l.byRule[ruleID]
	if !ok {
		re = &raisedEvents{seen: make(map[string]struct{})}
		l.byRule[ruleID] = re
	}
	if _, seen := re.seen[eventID]; seen {
		return true
	}
	if len(re.order) >= l.limit {
		delete(re.seen, re.order[0])
		re.order[0] = ""
		re.order = re.order[1:]
	}
	re.seen[eventID] = struct{}{}
	re.order = append(re.order, eventID)
	return false
}

func (l *raisedLog) forget(ruleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byRule, ruleID)
}

