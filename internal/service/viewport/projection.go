package viewport

import (
	"sort"
	"time"

	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/geo"
	roomsvc "roomscope/internal/service/room"
)

// VisibleRooms projects a store snapshot onto bounds: discoverable,
// non-hidden rooms inside the bounds, flagged with membership and sorted
// by distance from the bounds center. It never fetches.
func VisibleRooms(snap roomsvc.Snapshot, b viewport.Bounds, now time.Time) []room.Room {
	center := geo.BoundsCenter(b)

	rooms := make([]room.Room, 0, len(snap.Rooms))
	for _, r := range snap.Rooms {
		if _, hidden := snap.Hidden[r.ID]; hidden {
			continue
		}
		if !r.IsDiscoverable(now) {
			continue
		}
		lat, lng, ok := r.Coordinates()
		if !ok || !geo.PointInBounds(lat, lng, b) {
			continue
		}

		_, joined := snap.Joined[r.ID]
		r.HasJoined = joined
		r.Distance = geo.Distance(center.Lat, center.Lng, lat, lng)
		rooms = append(rooms, r)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Distance != rooms[j].Distance {
			return rooms[i].Distance < rooms[j].Distance
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}
