package query

import (
	"regexp"
	"strings"
	"sync"

	"github.com/solatis/condengine/internal/conditions"
)

// Match reports whether doc satisfies f. Values compare under the
// evaluator's rules: folded text, numbers by value, dates as instants.
// It is the reference semantics SQL compilation is tested against.
func Match(f Filter, doc *Document) bool {
	switch x := f.(type) {
	case Term:
		return anyValue(doc, x.Field, func(v any) bool { return conditions.SameValue(v, x.Value) })
	case Terms:
		return anyValue(doc, x.Field, func(v any) bool {
			for _, want := range x.Values {
				if conditions.SameValue(v, want) {
					return true
				}
			}
			return false
		})
	case Range:
		return anyValue(doc, x.Field, func(v any) bool { return inRange(v, x) })
	case Exists:
		_, ok := doc.Paths[x.Field]
		return ok
	case Prefix:
		want := conditions.Text(x.Value)
		return anyValue(doc, x.Field, func(v any) bool { return strings.HasPrefix(conditions.Text(v), want) })
	case Regexp:
		re, err := compilePattern(x.Pattern)
		if err != nil {
			return false
		}
		return anyValue(doc, x.Field, func(v any) bool { return re.MatchString(conditions.Text(v)) })
	case Bool:
		for _, sub := range x.Must {
			if !Match(sub, doc) {
				return false
			}
		}
		for _, sub := range x.MustNot {
			if Match(sub, doc) {
				return false
			}
		}
		if len(x.Should) == 0 {
			return true
		}
		for _, sub := range x.Should {
			if Match(sub, doc) {
				return true
			}
		}
		return false
	case IDs:
		for _, id := range x.Values {
			if id == doc.ID {
				return true
			}
		}
		return false
	case MatchAll:
		return true
	case Nested:
		for _, sub := range doc.Nested[x.Path] {
			if Match(x.Filter, sub) {
				return true
			}
		}
		return false
	case GeoDistance:
		p, ok := docPoint(doc, x.Field)
		return ok && conditions.ArcDistance(x.Lat, x.Lon, p.Lat, p.Lon) <= x.Meters
	case GeoBoundingBox:
		p, ok := docPoint(doc, x.Field)
		return ok &&
			p.Lat < x.TopLeft.Lat && p.Lat > x.BottomRight.Lat &&
			p.Lon > x.TopLeft.Lon && p.Lon < x.BottomRight.Lon
	}
	return false
}

func anyValue(doc *Document, field string, pred func(any) bool) bool {
	for _, v := range doc.Fields[field] {
		if pred(v) {
			return true
		}
	}
	return false
}

func inRange(v any, r Range) bool {
	check := func(bound any, ok func(int) bool) bool {
		if bound == nil {
			return true
		}
		c, err := conditions.CompareValues(v, bound)
		return err == nil && ok(c)
	}
	return check(r.Gt, func(c int) bool { return c > 0 }) &&
		check(r.Gte, func(c int) bool { return c >= 0 }) &&
		check(r.Lt, func(c int) bool { return c < 0 }) &&
		check(r.Lte, func(c int) bool { return c <= 0 })
}

// docPoint reads a location stored as {lat, lon} or "lat,lon".
func docPoint(doc *Document, field string) (conditions.GeoPoint, bool) {
	lat, lon := doc.Fields[field+".lat"], doc.Fields[field+".lon"]
	if len(lat) > 0 && len(lon) > 0 {
		p, err := conditions.ParseGeoPoint(map[string]any{"lat": lat[0], "lon": lon[0]})
		return p, err == nil
	}
	if vs := doc.Fields[field]; len(vs) > 0 {
		p, err := conditions.ParseGeoPoint(vs[0])
		return p, err == nil
	}
	return conditions.GeoPoint{}, false
}

var patterns sync.Map // pattern -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(conditions.RegexpPattern(pattern))
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}
