package db

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/query"
)

// fieldRow is one item_fields row.
type fieldRow struct {
	DocKey    string
	ParentKey string
	NestPath  string
	Field     string
	Kind      string
	Raw       *string
	Str       *string
	Num       *float64
	Time      *string
	Hash      *int64
}

func (r fieldRow) args(itemType, itemID string) []any {
	return []any{itemType, itemID, r.DocKey, r.ParentKey, r.NestPath, r.Field, r.Kind, r.Raw, r.Str, r.Num, r.Time, r.Hash}
}

// fieldRows flattens a document and its nested element documents into
// rows, in a stable order.
func fieldRows(doc *query.Document) []fieldRow {
	var rows []fieldRow
	appendDocRows(&rows, doc, "", "", "")
	return rows
}

func appendDocRows(rows *[]fieldRow, doc *query.Document, key, parent, nestPath string) {
	for _, path := range sortedKeys(doc.Paths) {
		*rows = append(*rows, fieldRow{DocKey: key, ParentKey: parent, NestPath: nestPath, Field: path, Kind: kindPath})
	}
	for _, field := range sortedKeys(doc.Fields) {
		for _, v := range doc.Fields[field] {
			row := valueRow(v)
			row.DocKey, row.ParentKey, row.NestPath, row.Field = key, parent, nestPath, field
			*rows = append(*rows, row)
		}
	}
	for _, path := range sortedKeys(doc.Nested) {
		for i, sub := range doc.Nested[path] {
			subKey := fmt.Sprintf("%s#%d", path, i)
			if key != "" {
				subKey = key + "/" + subKey
			}
			appendDocRows(rows, sub, subKey, key, path)
		}
	}
}

// valueRow fills every comparison domain the value can take part in.
func valueRow(v any) fieldRow {
	row := fieldRow{Kind: kindString}
	raw := rawText(v)
	str := conditions.Text(v)
	h := fnv.New32a()
	h.Write([]byte(raw))
	hash := int64(h.Sum32())
	row.Raw, row.Str, row.Hash = &raw, &str, &hash

	switch x := v.(type) {
	case time.Time:
		row.Kind = kindDate
	case bool:
		row.Kind = kindBool
	case json.Number:
		row.Kind = kindNumber
		if f, err := x.Float64(); err == nil {
			row.Num = &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			row.Num = &f
		}
	default:
		if f, ok := toFloat(v); ok {
			row.Kind = kindNumber
			row.Num = &f
		}
	}
	if row.Kind != kindBool {
		if t, err := conditions.ParseDate(v); err == nil {
			ts := formatTime(t)
			row.Time = &ts
		}
	}
	return row
}

// rawText is the unfolded text form aggregations group by.
func rawText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
