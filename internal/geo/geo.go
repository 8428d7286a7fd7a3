package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// ErrInvalidLocation is returned for coordinates outside WGS84 ranges or non-finite values.
var ErrInvalidLocation = errors.New("invalid location")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint validates lat/lon and returns the point.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks that both coordinates are finite and inside lat [-90,90], lon [-180,180].
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsInf(p.Latitude, 0) ||
		math.IsNaN(p.Longitude) || math.IsInf(p.Longitude, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidLocation)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidLocation, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidLocation, p.Longitude)
	}
	return nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the great-circle distance in meters between a and b (Haversine).
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h slightly past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadius * c
}

// Bearing returns the compass bearing from a to b in degrees [0,360), North = 0.
// It works on raw degree deltas, so it is a local approximation rather than an
// initial great-circle course. Identical points return 0.
func Bearing(a, b Point) float64 {
	dLat := b.Latitude - a.Latitude
	dLon := b.Longitude - a.Longitude
	if dLat == 0 && dLon == 0 {
		return 0
	}
	deg := math.Atan2(dLon, dLat) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// WithinRadius reports whether b lies within radius meters of a.
func WithinRadius(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// Box is a lat/lon rectangle used to pre-filter candidates before exact distances.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	// AllLongitudes is set when the box touches a pole or wraps the antimeridian.
	AllLongitudes bool
}

// BoundingBox returns a box that contains every point within radius meters of center.
func BoundingBox(center Point, radius float64) Box {
	dLat := radius / EarthRadius * 180 / math.Pi
	b := Box{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		b.AllLongitudes = true
		b.MinLon, b.MaxLon = -180, 180
		return b
	}

	dLon := dLat / math.Cos(toRad(center.Latitude))
	b.MinLon = center.Longitude - dLon
	b.MaxLon = center.Longitude + dLon
	if b.MinLon < -180 || b.MaxLon > 180 {
		b.AllLongitudes = true
		b.MinLon, b.MaxLon = -180, 180
	}
	return b
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.AllLongitudes {
		return true
	}
	return p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}
