// internal/query/index.go
package query

import (
	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Document flattening.
 *
 * Index turns an item into the shape filters are written against: every
 * scalar reachable through the item's fields is recorded under its dotted
 * path, lists contribute each scalar element, and lists of objects are
 * kept as nested documents, one per element, with fields under their full
 * path. Objects inside such lists are not visible to the parent, the same
 * way evaluation cannot read through a list of objects without a nested
 * condition.
 *
 * Paths records every path that holds a value, including objects and
 * empty lists, so Exists agrees with evaluation on non-scalar fields.
 *
 * Fields are read through the evaluator's accessors; an event's source
 * and target are flattened under "source." and "target.". Linked
 * profiles and sessions are separate documents and are not embedded.
 */

// Document is an item flattened for filter matching.
type Document struct {
	ID     string
	Type   string
	Fields map[string][]any
	Paths  map[string]struct{}
	Nested map[string][]*Document
}

var indexedFields = map[string][]string{
	types.ItemTypeProfile: {"itemId", "itemType", "scope", "properties", "systemProperties", "segments", "scores", "consents", "mergedWith"},
	types.ItemTypeSession: {"itemId", "itemType", "scope", "profileId", "properties", "systemProperties", "timeStamp", "lastEventDate", "duration", "size"},
	types.ItemTypeEvent:   {"itemId", "itemType", "scope", "eventType", "sessionId", "profileId", "timeStamp", "properties", "source", "target"},
}

var customItemFields = []string{"itemId", "itemType", "scope", "properties"}

// Indexer flattens items into documents.
type Indexer struct {
	accessors *conditions.Accessors
}

// NewIndexer creates an indexer reading fields through accessors; nil
// means the default table.
func NewIndexer(accessors *conditions.Accessors) *Indexer {
	if accessors == nil {
		accessors = conditions.DefaultAccessors()
	}
	return &Indexer{accessors: accessors}
}

var defaultIndexer = NewIndexer(nil)

// Index flattens item with the default accessors.
func Index(item types.Item) *Document {
	return defaultIndexer.Index(item)
}

// Index flattens item.
func (ix *Indexer) Index(item types.Item) *Document {
	doc := newDocument(item.ItemID(), item.ItemType())
	ix.addItem(doc, "", item)
	return doc
}

func newDocument(id, typ string) *Document {
	return &Document{
		ID:     id,
		Type:   typ,
		Fields: make(map[string][]any),
		Paths:  make(map[string]struct{}),
		Nested: make(map[string][]*Document),
	}
}

func fieldsOf(item types.Item) []string {
	if fs, ok := indexedFields[item.ItemType()]; ok {
		if _, custom := item.(*types.CustomItem); !custom {
			return fs
		}
	}
	return customItemFields
}

func (ix *Indexer) addItem(doc *Document, prefix string, item types.Item) {
	for _, f := range fieldsOf(item) {
		res, err := ix.accessors.Get(item, f)
		if err != nil || !res.Found {
			continue
		}
		ix.add(doc, join(prefix, f), res.Value)
	}
}

func (ix *Indexer) add(doc *Document, path string, v any) {
	switch x := v.(type) {
	case nil:
		return
	case types.Item:
		doc.Paths[path] = struct{}{}
		ix.addItem(doc, path, x)
	case map[string]any:
		doc.Paths[path] = struct{}{}
		for k, e := range x {
			ix.add(doc, join(path, k), e)
		}
	case []any:
		doc.Paths[path] = struct{}{}
		for _, e := range x {
			ix.addElement(doc, path, e)
		}
	case []string:
		doc.Paths[path] = struct{}{}
		for _, e := range x {
			doc.Fields[path] = append(doc.Fields[path], e)
		}
	case []map[string]any:
		doc.Paths[path] = struct{}{}
		for _, e := range x {
			ix.addElement(doc, path, e)
		}
	default:
		doc.Paths[path] = struct{}{}
		doc.Fields[path] = append(doc.Fields[path], x)
	}
}

func (ix *Indexer) addElement(doc *Document, path string, e any) {
	m, ok := e.(map[string]any)
	if !ok {
		ix.add(doc, path, e)
		return
	}
	sub := newDocument(doc.ID, doc.Type)
	ix.add(sub, path, m)
	doc.Nested[path] = append(doc.Nested[path], sub)
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
