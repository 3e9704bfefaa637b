package conditions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

// EarthMeanRadius is the mean earth radius in meters used for arc distance.
const EarthMeanRadius = 6371008.7714

// distance units in meters; longest suffixes first so "nmi" wins over "mi".
var distanceUnits = []struct {
	suffix string
	meters float64
}{
	{"nauticalmiles", 1852},
	{"kilometers", 1000},
	{"centimeters", 0.01},
	{"millimeters", 0.001},
	{"meters", 1},
	{"miles", 1609.344},
	{"yards", 0.9144},
	{"inches", 0.0254},
	{"feet", 0.3048},
	{"inch", 0.0254},
	{"nmi", 1852},
	{"km", 1000},
	{"mi", 1609.344},
	{"yd", 0.9144},
	{"ft", 0.3048},
	{"in", 0.0254},
	{"NM", 1852},
	{"cm", 0.01},
	{"mm", 0.001},
	{"m", 1},
}

// ParseDistance converts "10km", "5 mi" or "300" (meters) to meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	factor := 1.0
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			factor = u.meters
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", types.ErrInvalidDistance, s)
	}
	return v * factor, nil
}

// ArcDistance returns the great-circle distance in meters between two points.
func ArcDistance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthMeanRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// ParseGeoPoint reads a location stored as {"lat":..,"lon":..} or "lat,lon".
func ParseGeoPoint(v any) (GeoPoint, error) {
	switch x := v.(type) {
	case GeoPoint:
		return x, nil
	case map[string]any:
		lat, err1 := toFloat(x["lat"])
		lon, err2 := toFloat(x["lon"])
		if err1 != nil || err2 != nil {
			return GeoPoint{}, fmt.Errorf("%w: location map needs numeric lat and lon", types.ErrInvalidParameter)
		}
		return checkGeoPoint(lat, lon)
	case string:
		latS, lonS, ok := strings.Cut(x, ",")
		if !ok {
			return GeoPoint{}, fmt.Errorf("%w: location %q", types.ErrInvalidParameter, x)
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(latS), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(lonS), 64)
		if err1 != nil || err2 != nil {
			return GeoPoint{}, fmt.Errorf("%w: location %q", types.ErrInvalidParameter, x)
		}
		return checkGeoPoint(lat, lon)
	}
	return GeoPoint{}, fmt.Errorf("%w: %T is not a location", types.ErrInvalidParameter, v)
}

func checkGeoPoint(lat, lon float64) (GeoPoint, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return GeoPoint{}, fmt.Errorf("%w: location %v,%v out of range", types.ErrInvalidParameter, lat, lon)
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}
