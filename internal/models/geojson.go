package models

import "boop/server/internal/geo"

// GeoJSON is the wire form of a location: {"type":"Point","coordinates":[lon,lat]}
type GeoJSON struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

// PointToGeoJSON returns nil for a nil point
func PointToGeoJSON(p *geo.Point) *GeoJSON {
	if p == nil {
		return nil
	}
	return &GeoJSON{Type: "Point", Coordinates: [2]float64{p.Longitude, p.Latitude}}
}

// Point converts back to lat/lon
func (g *GeoJSON) Point() *geo.Point {
	if g == nil {
		return nil
	}
	return &geo.Point{Latitude: g.Coordinates[1], Longitude: g.Coordinates[0]}
}
