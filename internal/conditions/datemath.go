// internal/conditions/datemath.go
package conditions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Date literals and date math.
 *
 * A date math expression is an anchor followed by operations:
 *
 *   now                   current time
 *   now-30d               thirty days ago
 *   now/d                 start of today
 *   2024-01-01||+1M/d     anchor literal, then math
 *
 * Operations are +N<unit>, -N<unit> and /<unit> (round). N defaults to 1.
 * Units: y M w d h H m s. Rounding truncates to the start of the unit; with
 * roundUp it moves to the last millisecond of the unit instead, which is
 * what inclusive upper bounds need. All arithmetic is in UTC.
 *
 * Literals accept the strict date-optional-time forms and epoch millis.
 */

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate converts a literal date to a UTC instant.
func ParseDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x == nil {
			break
		}
		return x.UTC(), nil
	case int64:
		return time.UnixMilli(x).UTC(), nil
	case int:
		return time.UnixMilli(int64(x)).UTC(), nil
	case float64:
		return time.UnixMilli(int64(x)).UTC(), nil
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s", types.ErrInvalidDateExpression, x)
		}
		return time.UnixMilli(ms).UTC(), nil
	case string:
		return parseDateString(x)
	}
	return time.Time{}, fmt.Errorf("%w: %T is not a date", types.ErrInvalidDateExpression, v)
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", types.ErrInvalidDateExpression)
	}
	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", types.ErrInvalidDateExpression, s)
}

// ParseDateMath evaluates a date math expression relative to now.
func ParseDateMath(expr string, now time.Time, roundUp bool) (time.Time, error) {
	var anchor time.Time
	var math string
	if strings.HasPrefix(expr, "now") {
		anchor = now.UTC()
		math = expr[len("now"):]
	} else {
		lit, rest, found := strings.Cut(expr, "||")
		t, err := parseDateString(lit)
		if err != nil {
			return time.Time{}, err
		}
		anchor = t
		if found {
			math = rest
		}
	}
	return applyDateMath(anchor, math, roundUp, expr)
}

func applyDateMath(t time.Time, math string, roundUp bool, expr string) (time.Time, error) {
	bad := func(reason string) (time.Time, error) {
		return time.Time{}, fmt.Errorf("%w: %s in %q", types.ErrInvalidDateExpression, reason, expr)
	}
	i := 0
	for i < len(math) {
		op := math[i]
		i++
		var sign int
		round := false
		switch op {
		case '/':
			round = true
		case '+':
			sign = 1
		case '-':
			sign = -1
		default:
			return bad("operator " + strconv.QuoteRune(rune(op)) + " not supported")
		}
		if i >= len(math) {
			return bad("truncated date math")
		}
		num := 1
		if isDigit(math[i]) {
			start := i
			for i < len(math) && isDigit(math[i]) {
				i++
			}
			if i >= len(math) {
				return bad("missing unit")
			}
			n, err := strconv.Atoi(math[start:i])
			if err != nil {
				return bad("bad number")
			}
			num = n
		}
		if round && num != 1 {
			return bad("rounding must be by a single unit")
		}
		unit := math[i]
		i++

		if round {
			var err error
			t, err = roundDate(t, unit, roundUp)
			if err != nil {
				return bad(err.Error())
			}
			continue
		}
		var err error
		t, err = addUnits(t, unit, sign*num)
		if err != nil {
			return bad(err.Error())
		}
	}
	return t, nil
}

func addUnits(t time.Time, unit byte, n int) (time.Time, error) {
	switch unit {
	case 'y':
		return t.AddDate(n, 0, 0), nil
	case 'M':
		return t.AddDate(0, n, 0), nil
	case 'w':
		return t.AddDate(0, 0, 7*n), nil
	case 'd':
		return t.AddDate(0, 0, n), nil
	case 'h', 'H':
		return t.Add(time.Duration(n) * time.Hour), nil
	case 'm':
		return t.Add(time.Duration(n) * time.Minute), nil
	case 's':
		return t.Add(time.Duration(n) * time.Second), nil
	}
	return time.Time{}, fmt.Errorf("unit %q not supported", unit)
}

func roundDate(t time.Time, unit byte, roundUp bool) (time.Time, error) {
	var start time.Time
	switch unit {
	case 'y':
		start = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case 'M':
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case 'w':
		offset := (int(t.Weekday()) + 6) % 7
		start = time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	case 'd':
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case 'h', 'H':
		start = t.Truncate(time.Hour)
	case 'm':
		start = t.Truncate(time.Minute)
	case 's':
		start = t.Truncate(time.Second)
	default:
		return time.Time{}, fmt.Errorf("unit %q not supported", unit)
	}
	if !roundUp {
		return start, nil
	}
	next, err := addUnits(start, unit, 1)
	if err != nil {
		return time.Time{}, err
	}
	return next.Add(-time.Millisecond), nil
}

// dayStart truncates t to midnight UTC.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sameDay compares calendar days in UTC.
func sameDay(a, b time.Time) bool {
	return dayStart(a).Equal(dayStart(b))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}
