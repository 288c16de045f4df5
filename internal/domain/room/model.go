package room

import (
	"errors"
	"math"
	"time"
)

// Status represents where a room is in its lifecycle
type Status string

const (
	StatusOpen    Status = "open"
	StatusFull    Status = "full"
	StatusClosed  Status = "closed"
	StatusExpired Status = "expired"
)

// Category identifies the kind of conversation a room hosts
type Category string

const (
	CategoryGeneral  Category = "general"
	CategoryEvent    Category = "event"
	CategoryNews     Category = "news"
	CategorySocial   Category = "social"
	CategorySports   Category = "sports"
	CategoryTraffic  Category = "traffic"
	CategoryOutdoors Category = "outdoors"
)

// ErrNotFound is returned when a room id is not known
var ErrNotFound = errors.New("room not found")

// Room represents a discoverable, time-bounded, location-anchored conversation space
type Room struct {
	ID               string    `json:"id"`
	Title            string    `json:"title,omitempty"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	ParticipantCount int       `json:"participantCount"`
	Category         Category  `json:"category"`
	Status           Status    `json:"status"`
	ExpiresAt        time.Time `json:"expiresAt"`
	CreatedAt        time.Time `json:"createdAt"`
	IsNew            bool      `json:"isNew"`
	IsHighActivity   bool      `json:"isHighActivity"`
	IsExpiringSoon   bool      `json:"isExpiringSoon"`
	IsCreator        bool      `json:"isCreator"`
	HasJoined        bool      `json:"hasJoined"`

	// Distance is meters from a reference point, filled by the search
	// service or computed locally.
	Distance float64 `json:"distance"`
}

// Coordinates returns the room position when both values are present and finite
func (r Room) Coordinates() (lat, lng float64, ok bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return 0, 0, false
	}

	lat, lng = *r.Latitude, *r.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, false
	}

	return lat, lng, true
}

// IsExpired reports whether the room has passed its expiry time.
// A zero ExpiresAt means the expiry is unknown.
func (r Room) IsExpired(now time.Time) bool {
	if r.Status == StatusExpired {
		return true
	}
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// IsDiscoverable reports whether the room may appear in discovery output
func (r Room) IsDiscoverable(now time.Time) bool {
	if r.Status == StatusClosed {
		return false
	}
	return !r.IsExpired(now)
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Title            *string
	Latitude         *float64
	Longitude        *float64
	ParticipantCount *int
	Category         *Category
	Status           *Status
	ExpiresAt        *time.Time
	IsNew            *bool
	IsHighActivity   *bool
	IsExpiringSoon   *bool
	IsCreator        *bool
	HasJoined        *bool
	Distance         *float64
}

// Apply returns a copy of r with the patch fields overwritten
func (p Patch) Apply(r Room) Room {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		r.Latitude = &lat
	}
	if p.Longitude != nil {
		lng := *p.Longitude
		r.Longitude = &lng
	}
	if p.ParticipantCount != nil {
		r.ParticipantCount = *p.ParticipantCount
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ExpiresAt != nil {
		r.ExpiresAt = *p.ExpiresAt
	}
	if p.IsNew != nil {
		r.IsNew = *p.IsNew
	}
	if p.IsHighActivity != nil {
		r.IsHighActivity = *p.IsHighActivity
	}
	if p.IsExpiringSoon != nil {
		r.IsExpiringSoon = *p.IsExpiringSoon
	}
	if p.IsCreator != nil {
		r.IsCreator = *p.IsCreator
	}
	if p.HasJoined != nil {
		r.HasJoined = *p.HasJoined
	}
	if p.Distance != nil {
		r.Distance = *p.Distance
	}
	return r
}

// Float returns a pointer to v, for building rooms and patches
func Float(v float64) *float64 {
	return &v
}
