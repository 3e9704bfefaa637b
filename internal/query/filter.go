// internal/query/filter.go
package query

import (
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/solatis/condengine/internal/conditions"
)

/*
 * Backend-neutral filter tree.
 *
 * Query builders compile conditions into Filter values. A Filter is a
 * closed sum type: the node structs below are the only implementations.
 * Backends walk the tree with a type switch (Match for the in-memory
 * index, the goqu compiler in internal/core/db for SQL) and reject nodes
 * they cannot render with types.ErrUnsupportedFilter.
 *
 * Field names are property paths as written in conditions
 * ("properties.age", "segments", "systemProperties.pastEvents.count").
 * Inside Nested, fields keep their full path.
 *
 * Bool follows the usual search-engine semantics: every Must matches, no
 * MustNot matches, and when Should is non-empty at least one of them
 * matches. Bool{} matches everything; MatchNone is the empty disjunction.
 */

// Filter is a node of a compiled query.
type Filter interface {
	isFilter()
}

// Term matches documents with a value of Field equal to Value.
type Term struct {
	Field string
	Value any
}

// Terms matches documents with a value of Field equal to one of Values.
// Empty Values match nothing.
type Terms struct {
	Field  string
	Values []any
}

// Range bounds the values of Field. Nil bounds are open.
type Range struct {
	Field   string
	Gt, Gte any
	Lt, Lte any
}

// Exists matches documents where Field holds at least one value.
type Exists struct {
	Field string
}

// Prefix matches text values of Field starting with Value.
type Prefix struct {
	Field string
	Value string
}

// Regexp matches text values of Field against an anchored,
// case-insensitive pattern.
type Regexp struct {
	Field   string
	Pattern string
}

// Bool combines filters.
type Bool struct {
	Must    []Filter
	Should  []Filter
	MustNot []Filter
}

// IDs matches documents by identifier.
type IDs struct {
	Values []string
}

// MatchAll matches every document.
type MatchAll struct{}

// Nested matches documents where one element of the object list at Path
// matches Filter on its own.
type Nested struct {
	Path   string
	Filter Filter
}

// GeoDistance matches points of Field within Meters of (Lat, Lon).
type GeoDistance struct {
	Field    string
	Lat, Lon float64
	Meters   float64
}

// GeoBoundingBox matches points of Field strictly inside the box.
type GeoBoundingBox struct {
	Field       string
	TopLeft     conditions.GeoPoint
	BottomRight conditions.GeoPoint
}

func (Term) isFilter()           {}
func (Terms) isFilter()          {}
func (Range) isFilter()          {}
func (Exists) isFilter()         {}
func (Prefix) isFilter()         {}
func (Regexp) isFilter()         {}
func (Bool) isFilter()           {}
func (IDs) isFilter()            {}
func (MatchAll) isFilter()       {}
func (Nested) isFilter()         {}
func (GeoDistance) isFilter()    {}
func (GeoBoundingBox) isFilter() {}

// MatchNone matches no document.
func MatchNone() Filter {
	return Bool{MustNot: []Filter{MatchAll{}}}
}

// And requires every filter. A single filter is returned as-is.
func And(fs ...Filter) Filter {
	if len(fs) == 1 {
		return fs[0]
	}
	return Bool{Must: fs}
}

// Or requires one filter. Or() matches nothing.
func Or(fs ...Filter) Filter {
	switch len(fs) {
	case 0:
		return MatchNone()
	case 1:
		return fs[0]
	}
	return Bool{Should: fs}
}

// Not negates f.
func Not(f Filter) Filter {
	return Bool{MustNot: []Filter{f}}
}

// present negates f among documents that have field, so negated
// comparisons never match a missing property.
func present(field string, f Filter) Filter {
	return Bool{Must: []Filter{Exists{Field: field}}, MustNot: []Filter{f}}
}

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// MarshalFilter renders f in the JSON query DSL of search engines.
func MarshalFilter(f Filter) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)
	writeFilter(stream, f)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeFilter(s *jsoniter.Stream, f Filter) {
	s.WriteObjectStart()
	switch x := f.(type) {
	case Term:
		s.WriteObjectField("term")
		writeField(s, x.Field, func() { writeScalar(s, x.Value) })
	case Terms:
		s.WriteObjectField("terms")
		writeField(s, x.Field, func() { writeScalars(s, x.Values) })
	case Range:
		s.WriteObjectField("range")
		writeField(s, x.Field, func() {
			s.WriteObjectStart()
			first := true
			for _, b := range []struct {
				name string
				v    any
			}{{"gt", x.Gt}, {"gte", x.Gte}, {"lt", x.Lt}, {"lte", x.Lte}} {
				if b.v == nil {
					continue
				}
				if !first {
					s.WriteMore()
				}
				first = false
				s.WriteObjectField(b.name)
				writeScalar(s, b.v)
			}
			s.WriteObjectEnd()
		})
	case Exists:
		s.WriteObjectField("exists")
		writeField(s, "field", func() { s.WriteString(x.Field) })
	case Prefix:
		s.WriteObjectField("prefix")
		writeField(s, x.Field, func() { s.WriteString(x.Value) })
	case Regexp:
		s.WriteObjectField("regexp")
		writeField(s, x.Field, func() { s.WriteString(x.Pattern) })
	case Bool:
		s.WriteObjectField("bool")
		s.WriteObjectStart()
		first := true
		for _, clause := range []struct {
			name string
			fs   []Filter
		}{{"must", x.Must}, {"should", x.Should}, {"must_not", x.MustNot}} {
			if len(clause.fs) == 0 {
				continue
			}
			if !first {
				s.WriteMore()
			}
			first = false
			s.WriteObjectField(clause.name)
			s.WriteArrayStart()
			for i, sub := range clause.fs {
				if i > 0 {
					s.WriteMore()
				}
				writeFilter(s, sub)
			}
			s.WriteArrayEnd()
		}
		s.WriteObjectEnd()
	case IDs:
		s.WriteObjectField("ids")
		writeField(s, "values", func() {
			s.WriteArrayStart()
			for i, id := range x.Values {
				if i > 0 {
					s.WriteMore()
				}
				s.WriteString(id)
			}
			s.WriteArrayEnd()
		})
	case MatchAll:
		s.WriteObjectField("match_all")
		s.WriteEmptyObject()
	case Nested:
		s.WriteObjectField("nested")
		s.WriteObjectStart()
		s.WriteObjectField("path")
		s.WriteString(x.Path)
		s.WriteMore()
		s.WriteObjectField("query")
		writeFilter(s, x.Filter)
		s.WriteObjectEnd()
	case GeoDistance:
		s.WriteObjectField("geo_distance")
		s.WriteObjectStart()
		s.WriteObjectField("distance")
		s.WriteString(strconv.FormatFloat(x.Meters, 'f', -1, 64) + "m")
		s.WriteMore()
		s.WriteObjectField(x.Field)
		writePoint(s, conditions.GeoPoint{Lat: x.Lat, Lon: x.Lon})
		s.WriteObjectEnd()
	case GeoBoundingBox:
		s.WriteObjectField("geo_bounding_box")
		writeField(s, x.Field, func() {
			s.WriteObjectStart()
			s.WriteObjectField("top_left")
			writePoint(s, x.TopLeft)
			s.WriteMore()
			s.WriteObjectField("bottom_right")
			writePoint(s, x.BottomRight)
			s.WriteObjectEnd()
		})
	default:
		s.WriteObjectField("unsupported")
		s.WriteNil()
	}
	s.WriteObjectEnd()
}

func writeField(s *jsoniter.Stream, name string, value func()) {
	s.WriteObjectStart()
	s.WriteObjectField(name)
	value()
	s.WriteObjectEnd()
}

func writePoint(s *jsoniter.Stream, p conditions.GeoPoint) {
	s.WriteObjectStart()
	s.WriteObjectField("lat")
	s.WriteFloat64(p.Lat)
	s.WriteMore()
	s.WriteObjectField("lon")
	s.WriteFloat64(p.Lon)
	s.WriteObjectEnd()
}

func writeScalars(s *jsoniter.Stream, vs []any) {
	s.WriteArrayStart()
	for i, v := range vs {
		if i > 0 {
			s.WriteMore()
		}
		writeScalar(s, v)
	}
	s.WriteArrayEnd()
}

func writeScalar(s *jsoniter.Stream, v any) {
	switch x := v.(type) {
	case time.Time:
		s.WriteString(x.UTC().Format(time.RFC3339Nano))
	default:
		s.WriteVal(x)
	}
}
