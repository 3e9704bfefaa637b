// internal/conditions/fieldpath.go
package conditions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Property path parsing and resolution.
 *
 * Paths are dotted with optional bracket segments:
 *
 *   properties.firstName
 *   .properties.firstName          leading dot is ignored
 *   properties["first.name"]       quoted literal key, may contain dots
 *   properties['first.name']
 *   properties.interests[0]        list index
 *
 * Resolve walks JSON-shaped data (maps, slices, scalars) and distinguishes a
 * path that is absent from a path that holds null: Found is true in the
 * second case with a nil Value. Domain items are not walked here; see
 * accessors.go, which hands item fields to Resolve as JSON-shaped values.
 */

// ResolveResult holds the value at a path.
type ResolveResult struct {
	Value any  // resolved value, nil when not found or null
	Found bool // true if every segment of the path existed
}

// ParsePath splits a property path into segments.
func ParsePath(path string) ([]types.PathSegment, error) {
	p := strings.TrimPrefix(path, ".")
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", types.ErrInvalidPath)
	}
	var segs []types.PathSegment
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, types.PathSegment{Key: cur.String()})
			cur.Reset()
		}
	}
	for i := 0; i < len(p); i++ {
		switch ch := p[i]; ch {
		case '.':
			if cur.Len() == 0 && (i == 0 || p[i-1] != ']') {
				return nil, fmt.Errorf("%w: empty segment in %q", types.ErrInvalidPath, path)
			}
			flush()
		case '[':
			flush()
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed bracket in %q", types.ErrInvalidPath, path)
			}
			inner := p[i+1 : i+end]
			seg, err := bracketSegment(inner)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", err, path)
			}
			segs = append(segs, seg)
			i += end
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty path", types.ErrInvalidPath)
	}
	return segs, nil
}

func bracketSegment(inner string) (types.PathSegment, error) {
	if n := len(inner); n >= 2 {
		if (inner[0] == '"' && inner[n-1] == '"') || (inner[0] == '\'' && inner[n-1] == '\'') {
			return types.PathSegment{Key: inner[1 : n-1]}, nil
		}
	}
	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return types.PathSegment{}, fmt.Errorf("%w: bad index [%s]", types.ErrInvalidPath, inner)
	}
	return types.PathSegment{Index: idx, IsIndex: true}, nil
}

// Resolve follows path through data.
func Resolve(path []types.PathSegment, data any) ResolveResult {
	current := data
	for _, seg := range path {
		next, ok := step(current, seg)
		if !ok {
			return ResolveResult{}
		}
		current = next
	}
	return ResolveResult{Value: current, Found: true}
}

// step descends one segment into a map or list.
func step(current any, seg types.PathSegment) (any, bool) {
	if seg.IsIndex {
		switch v := current.(type) {
		case []any:
			if seg.Index < len(v) {
				return v[seg.Index], true
			}
		case []string:
			if seg.Index < len(v) {
				return v[seg.Index], true
			}
		case []map[string]any:
			if seg.Index < len(v) {
				return v[seg.Index], true
			}
		}
		return nil, false
	}
	switch v := current.(type) {
	case map[string]any:
		val, ok := v[seg.Key]
		return val, ok
	case map[string]string:
		val, ok := v[seg.Key]
		return val, ok
	case map[string]int:
		val, ok := v[seg.Key]
		return val, ok
	}
	return nil, false
}

// pathString renders segments back into dotted form.
func pathString(path []types.PathSegment) string {
	var b strings.Builder
	for i, seg := range path {
		if seg.IsIndex {
			b.WriteString("[" + strconv.Itoa(seg.Index) + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Key)
	}
	return b.String()
}
