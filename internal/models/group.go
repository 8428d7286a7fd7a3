package models

import "time"

// Group represents a boop group. Members have set semantics and the group is
// deleted once the member set becomes empty.
type Group struct {
	ID        string       `json:"groupId"` // human shareable code, e.g. K3X9QZ
	Name      string       `json:"name"`
	Members   []string     `json:"users"`
	BoopLog   []BoopRecord `json:"boopLog"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// HasMember reports whether uid is in the member set
func (g *Group) HasMember(uid string) bool {
	for _, m := range g.Members {
		if m == uid {
			return true
		}
	}
	return false
}

// GroupSummary is the {groupId, name} pair embedded in boop responses
type GroupSummary struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

// GroupMember is a member with a known location
type GroupMember struct {
	UID      string   `json:"uid"`
	Name     string   `json:"name"`
	Location *GeoJSON `json:"location"`
}
