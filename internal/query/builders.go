package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

// buildBoolean mirrors boolean evaluation: a missing subConditions list
// matches everything, an empty one yields the operator's identity.
func buildBoolean(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error) {
	isAnd := true
	if op, ok := conditions.ParamOrDefault(c, "operator").AsString(); ok {
		isAnd = !strings.EqualFold(op, "or")
	}
	subs, ok := c.ConditionsParam("subConditions")
	if !ok {
		return MatchAll{}, nil
	}
	if len(subs) == 0 {
		if isAnd {
			return MatchAll{}, nil
		}
		return MatchNone(), nil
	}
	fs := make([]Filter, 0, len(subs))
	for _, sub := range subs {
		f, err := d.BuildFilterWith(ctx, sub, params)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	if isAnd {
		return And(fs...), nil
	}
	return Or(fs...), nil
}

func buildNot(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error) {
	sub, ok := c.ConditionParam("subCondition")
	if !ok {
		return nil, fmt.Errorf("%w: notCondition needs subCondition", types.ErrMissingParameter)
	}
	f, err := d.BuildFilterWith(ctx, sub, params)
	if err != nil {
		return nil, err
	}
	return Not(f), nil
}

func buildMatchAll(context.Context, *types.Condition, conditions.Params, *Dispatcher) (Filter, error) {
	return MatchAll{}, nil
}

// buildIDs rejects lists longer than the configured cap.
func buildIDs(_ context.Context, c *types.Condition, _ conditions.Params, d *Dispatcher) (Filter, error) {
	match := true
	if b, ok := conditions.ParamOrDefault(c, "match").AsBool(); ok {
		match = b
	}
	var ids []string
	if elems, ok := c.Param("ids").AsList(); ok {
		ids = make([]string, 0, len(elems))
		for _, e := range elems {
			if s, ok := e.AsString(); ok {
				ids = append(ids, s)
			}
		}
	}
	if len(ids) > d.cfg.maxIDs {
		return nil, fmt.Errorf("%w: %d ids, limit %d", types.ErrTooManyIDs, len(ids), d.cfg.maxIDs)
	}
	f := IDs{Values: ids}
	if !match {
		return Not(f), nil
	}
	return f, nil
}

func buildNested(ctx context.Context, c *types.Condition, params conditions.Params, d *Dispatcher) (Filter, error) {
	path, ok := c.StringParam("path")
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: nestedCondition needs path", types.ErrMissingParameter)
	}
	sub, ok := c.ConditionParam("subCondition")
	if !ok {
		return nil, fmt.Errorf("%w: nestedCondition needs subCondition", types.ErrMissingParameter)
	}
	segs, err := conditions.ParsePath(path)
	if err != nil {
		return nil, err
	}
	if len(segs) < 2 || segs[0].IsIndex || (segs[0].Key != "properties" && segs[0].Key != "systemProperties") {
		return nil, fmt.Errorf("%w: nested path %q must start with properties or systemProperties", types.ErrInvalidPath, path)
	}
	f, err := d.BuildFilterWith(ctx, sub, params)
	if err != nil {
		return nil, err
	}
	return Nested{Path: path, Filter: f}, nil
}

func buildGeoLocation(_ context.Context, c *types.Condition, _ conditions.Params, _ *Dispatcher) (Filter, error) {
	shape, err := conditions.LoadGeoShape(c)
	if err != nil {
		return nil, err
	}
	if shape.Circle {
		return GeoDistance{
			Field:  conditions.GeoLocationProperty,
			Lat:    shape.Center.Lat,
			Lon:    shape.Center.Lon,
			Meters: shape.Meters,
		}, nil
	}
	return GeoBoundingBox{
		Field:       conditions.GeoLocationProperty,
		TopLeft:     conditions.GeoPoint{Lat: shape.NE.Lat, Lon: shape.SW.Lon},
		BottomRight: conditions.GeoPoint{Lat: shape.SW.Lat, Lon: shape.NE.Lon},
	}, nil
}
