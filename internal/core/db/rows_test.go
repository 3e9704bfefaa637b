package db

import (
	"testing"
	"time"

	"github.com/solatis/condengine/internal/query"
	"github.com/solatis/condengine/internal/types"
)

func findRow(rows []fieldRow, docKey, field, kind string) (fieldRow, bool) {
	for _, r := range rows {
		if r.DocKey == docKey && r.Field == field && r.Kind == kind {
			return r, true
		}
	}
	return fieldRow{}, false
}

func TestFieldRows(t *testing.T) {
	visit := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	p := &types.Profile{
		ID:        "p1",
		ScopeName: "site",
		Properties: map[string]any{
			"city":   "Zürich",
			"age":    float64(34),
			"visits": "12",
			"visit":  visit,
			"flag":   true,
			"orders": []any{
				map[string]any{"total": float64(50)},
				map[string]any{"total": float64(150), "lines": []any{map[string]any{"sku": "x"}}},
			},
		},
	}
	rows := fieldRows(query.Index(p))

	t.Run("text", func(t *testing.T) {
		r, ok := findRow(rows, "", "properties.city", kindString)
		if !ok {
			t.Fatal("no city row")
		}
		if *r.Raw != "Zürich" || *r.Str != "zurich" {
			t.Errorf("raw/str = %q/%q", *r.Raw, *r.Str)
		}
		if r.Num != nil || r.Time != nil {
			t.Errorf("unexpected num/time on text row: %+v", r)
		}
	})

	t.Run("number", func(t *testing.T) {
		r, ok := findRow(rows, "", "properties.age", kindNumber)
		if !ok {
			t.Fatal("no age row")
		}
		if r.Num == nil || *r.Num != 34 {
			t.Errorf("num = %v", r.Num)
		}
		if *r.Str != "34" {
			t.Errorf("str = %q", *r.Str)
		}
	})

	t.Run("numeric string", func(t *testing.T) {
		r, ok := findRow(rows, "", "properties.visits", kindString)
		if !ok {
			t.Fatal("no visits row")
		}
		if r.Num == nil || *r.Num != 12 {
			t.Errorf("num = %v", r.Num)
		}
	})

	t.Run("date", func(t *testing.T) {
		r, ok := findRow(rows, "", "properties.visit", kindDate)
		if !ok {
			t.Fatal("no visit row")
		}
		if r.Time == nil || *r.Time != "2024-03-01T08:00:00.000000000Z" {
			t.Errorf("time = %v", r.Time)
		}
	})

	t.Run("boolean", func(t *testing.T) {
		r, ok := findRow(rows, "", "properties.flag", kindBool)
		if !ok {
			t.Fatal("no flag row")
		}
		if *r.Str != "true" || r.Time != nil || r.Num != nil {
			t.Errorf("row = %+v", r)
		}
	})

	t.Run("paths", func(t *testing.T) {
		for _, path := range []string{"properties", "properties.city", "properties.orders"} {
			if _, ok := findRow(rows, "", path, kindPath); !ok {
				t.Errorf("no path row for %s", path)
			}
		}
	})

	t.Run("nested elements", func(t *testing.T) {
		for _, key := range []string{"properties.orders#0", "properties.orders#1"} {
			r, ok := findRow(rows, key, "properties.orders", kindPath)
			if !ok {
				t.Fatalf("no element row for %s", key)
			}
			if r.ParentKey != "" || r.NestPath != "properties.orders" {
				t.Errorf("element %s = %+v", key, r)
			}
		}
		r, ok := findRow(rows, "properties.orders#1", "properties.orders.total", kindNumber)
		if !ok || *r.Num != 150 {
			t.Errorf("second total = %+v", r)
		}
		if _, ok := findRow(rows, "", "properties.orders.total", kindNumber); ok {
			t.Error("nested value leaked into the item scope")
		}

		deep := "properties.orders#1/properties.orders.lines#0"
		r, ok = findRow(rows, deep, "properties.orders.lines", kindPath)
		if !ok {
			t.Fatalf("no element row for %s", deep)
		}
		if r.ParentKey != "properties.orders#1" || r.NestPath != "properties.orders.lines" {
			t.Errorf("deep element = %+v", r)
		}
	})

	t.Run("hash follows raw value", func(t *testing.T) {
		a, b := valueRow("Paris"), valueRow("Paris")
		c := valueRow("paris")
		if *a.Hash != *b.Hash {
			t.Error("hash not stable")
		}
		if *a.Hash == *c.Hash {
			t.Error("hash ignores case of raw value")
		}
	})

	t.Run("stable order", func(t *testing.T) {
		again := fieldRows(query.Index(p))
		if len(again) != len(rows) {
			t.Fatalf("len = %d, want %d", len(again), len(rows))
		}
		for i := range rows {
			if rows[i].DocKey != again[i].DocKey || rows[i].Field != again[i].Field || rows[i].Kind != again[i].Kind {
				t.Fatalf("row %d differs: %+v vs %+v", i, rows[i], again[i])
			}
		}
	})
}
