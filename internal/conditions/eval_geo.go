package conditions

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

// GeoLocationProperty is where sessions keep their location.
const GeoLocationProperty = "properties.location"

// GeoShape is the parsed form of a geoLocationByPoint condition.
type GeoShape struct {
	Circle bool
	Center GeoPoint
	Meters float64
	NE, SW GeoPoint
}

// LoadGeoShape reads the circle or rectangle parameters of c.
func LoadGeoShape(c *types.Condition) (GeoShape, error) {
	kind, _ := ParamOrDefault(c, "type").AsString()
	num := func(name string) (float64, error) {
		v := c.Param(name)
		if v.IsNull() {
			return 0, fmt.Errorf("%w: %s", types.ErrMissingParameter, name)
		}
		return toFloat(v)
	}
	switch strings.ToLower(kind) {
	case "", "circle":
		lat, err := num("circleLatitude")
		if err != nil {
			return GeoShape{}, err
		}
		lon, err := num("circleLongitude")
		if err != nil {
			return GeoShape{}, err
		}
		dist, ok := c.StringParam("distance")
		if !ok {
			if v := c.Param("distance"); !v.IsNull() {
				dist = toString(v)
			} else {
				return GeoShape{}, fmt.Errorf("%w: distance", types.ErrMissingParameter)
			}
		}
		meters, err := ParseDistance(dist)
		if err != nil {
			return GeoShape{}, err
		}
		return GeoShape{Circle: true, Center: GeoPoint{Lat: lat, Lon: lon}, Meters: meters}, nil
	case "rectangle":
		var vals [4]float64
		for i, name := range []string{"rectLatitudeNE", "rectLongitudeNE", "rectLatitudeSW", "rectLongitudeSW"} {
			f, err := num(name)
			if err != nil {
				return GeoShape{}, err
			}
			vals[i] = f
		}
		return GeoShape{NE: GeoPoint{Lat: vals[0], Lon: vals[1]}, SW: GeoPoint{Lat: vals[2], Lon: vals[3]}}, nil
	}
	return GeoShape{}, fmt.Errorf("%w: geo type %q", types.ErrInvalidParameter, kind)
}

// Contains reports whether p lies in the shape. Rectangle bounds are
// exclusive.
func (g GeoShape) Contains(p GeoPoint) bool {
	if g.Circle {
		return ArcDistance(g.Center.Lat, g.Center.Lon, p.Lat, p.Lon) <= g.Meters
	}
	return p.Lat > g.SW.Lat && p.Lat < g.NE.Lat && p.Lon > g.SW.Lon && p.Lon < g.NE.Lon
}

// evalGeoLocation checks the session location against a circle or
// rectangle. Events are checked through their session.
func evalGeoLocation(_ context.Context, c *types.Condition, item types.Item, _ Params, d *Dispatcher) (bool, error) {
	shape, err := LoadGeoShape(c)
	if err != nil {
		return false, err
	}
	target := item
	if e, ok := item.(*types.Event); ok {
		if e.Session == nil {
			d.cfg.logger.Debug(logMsgGeoLocationUnusable, logAttrItemType, item.ItemType())
			return false, nil
		}
		target = e.Session
	}
	res, err := d.cfg.accessors.Get(target, GeoLocationProperty)
	if err != nil || !res.Found || res.Value == nil {
		d.cfg.logger.Debug(logMsgGeoLocationUnusable, logAttrItemType, target.ItemType())
		return false, nil
	}
	p, err := ParseGeoPoint(res.Value)
	if err != nil {
		d.cfg.logger.Debug(logMsgGeoLocationUnusable, logAttrItemType, target.ItemType(), logAttrError, err)
		return false, nil
	}
	return shape.Contains(p), nil
}
