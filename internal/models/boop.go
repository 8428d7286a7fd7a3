package models

import (
	"time"

	"github.com/google/uuid"

	"boop/server/internal/geo"
)

// BoopRecord is an immutable entry in a group's boop log
type BoopRecord struct {
	ID        string     `json:"id"`
	Booper    string     `json:"booper"`
	Boopee    string     `json:"boopee"`
	Timestamp time.Time  `json:"timestamp"`
	Location  *geo.Point `json:"-"`
}

// NewBoopRecord stamps a new record with an id and the current time
func NewBoopRecord(booper, boopee string, at *geo.Point) BoopRecord {
	return BoopRecord{
		ID:        uuid.NewString(),
		Booper:    booper,
		Boopee:    boopee,
		Timestamp: time.Now(),
		Location:  at,
	}
}

// BoopRecordResponse is the wire form of a record
type BoopRecordResponse struct {
	ID        string    `json:"id"`
	Booper    string    `json:"booper"`
	Boopee    string    `json:"boopee"`
	Timestamp time.Time `json:"timestamp"`
	Location  *GeoJSON  `json:"location"`
}

// ToResponse converts BoopRecord to BoopRecordResponse
func (b BoopRecord) ToResponse() BoopRecordResponse {
	return BoopRecordResponse{
		ID:        b.ID,
		Booper:    b.Booper,
		Boopee:    b.Boopee,
		Timestamp: b.Timestamp,
		Location:  PointToGeoJSON(b.Location),
	}
}

// BoopLogEntry is a record enriched with participant names at read time
type BoopLogEntry struct {
	Booper    UserRef   `json:"booper"`
	Boopee    UserRef   `json:"boopee"`
	Timestamp time.Time `json:"timestamp"`
	Location  *GeoJSON  `json:"location"`
}
