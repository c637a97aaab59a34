package filter

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// GeoPoint is a {lat, lon} pair as carried in vector metadata.
type GeoPoint struct {
	Lat float64
	Lon float64
}

func geoPointFrom(v interface{}) (GeoPoint, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return GeoPoint{}, false
	}
	lat, latOk := toFloat64(m["lat"])
	lon, lonOk := toFloat64(m["lon"])
	if !latOk || !lonOk {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: lat, Lon: lon}, true
}

func haversineMeters(a, b GeoPoint) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// GeoRadius matches when the field's {lat,lon} point lies within
// RadiusMeters of Center, measured via the haversine great-circle distance.
type GeoRadius struct {
	Field        string
	Center       GeoPoint
	RadiusMeters float64
}

func NewGeoRadius(field string, center GeoPoint, radiusMeters float64) *GeoRadius {
	return &GeoRadius{Field: field, Center: center, RadiusMeters: radiusMeters}
}

func (g *GeoRadius) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[g.Field]
	if !ok {
		return false
	}
	point, ok := geoPointFrom(v)
	if !ok {
		return false
	}
	return haversineMeters(g.Center, point) <= g.RadiusMeters
}

func (g *GeoRadius) Validate() error {
	if g.Field == "" {
		return newError(g.Field, "field name cannot be empty")
	}
	if g.RadiusMeters <= 0 {
		return newError(g.Field, "radius_meters must be positive")
	}
	return nil
}

func (g *GeoRadius) EstimateSelectivity() float64 { return 0.3 }

func (g *GeoRadius) String() string {
	return fmt.Sprintf("%s WITHIN %fm of (%f,%f)", g.Field, g.RadiusMeters, g.Center.Lat, g.Center.Lon)
}

// GeoBoundingBox matches when the field's point lies within an
// axis-aligned lat/lon box, assuming TopLeft.Lat >= BottomRight.Lat and
// TopLeft.Lon <= BottomRight.Lon.
type GeoBoundingBox struct {
	Field       string
	TopLeft     GeoPoint
	BottomRight GeoPoint
}

func NewGeoBoundingBox(field string, topLeft, bottomRight GeoPoint) *GeoBoundingBox {
	return &GeoBoundingBox{Field: field, TopLeft: topLeft, BottomRight: bottomRight}
}

func (g *GeoBoundingBox) Evaluate(metadata map[string]interface{}) bool {
	v, ok := metadata[g.Field]
	if !ok {
		return false
	}
	point, ok := geoPointFrom(v)
	if !ok {
		return false
	}
	return point.Lat <= g.TopLeft.Lat && point.Lat >= g.BottomRight.Lat &&
		point.Lon >= g.TopLeft.Lon && point.Lon <= g.BottomRight.Lon
}

func (g *GeoBoundingBox) Validate() error {
	if g.Field == "" {
		return newError(g.Field, "field name cannot be empty")
	}
	if g.TopLeft.Lat < g.BottomRight.Lat || g.TopLeft.Lon > g.BottomRight.Lon {
		return newError(g.Field, "top_left must be north-west of bottom_right")
	}
	return nil
}

func (g *GeoBoundingBox) EstimateSelectivity() float64 { return 0.3 }

func (g *GeoBoundingBox) String() string {
	return fmt.Sprintf("%s WITHIN BOX[%v,%v]", g.Field, g.TopLeft, g.BottomRight)
}
