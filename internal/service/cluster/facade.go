// internal/service/cluster/facade.go

package cluster

import (
	"fmt"
	"sort"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
	"roomscope/internal/service/geo"
)

// Facade converts between rooms and clustering features. It holds no state;
// construct one per session and pass it where it is needed.
type Facade struct{}

// NewFacade creates a new cluster facade
func NewFacade() *Facade {
	return &Facade{}
}

// FromRoom converts a room to a room feature. Rooms without an id or
// finite coordinates have no feature.
func (f *Facade) FromRoom(r room.Room) (domain.Feature, bool) {
	if r.ID == "" {
		return domain.Feature{}, false
	}
	lat, lng, ok := r.Coordinates()
	if !ok {
		return domain.Feature{}, false
	}

	return domain.Feature{
		Kind:      domain.KindRoom,
		Latitude:  lat,
		Longitude: lng,
		RoomID:    r.ID,
		Room:      &r,
	}, true
}

// FromRooms converts every convertible room
func (f *Facade) FromRooms(rooms []room.Room) []domain.Feature {
	features := make([]domain.Feature, 0, len(rooms))
	for _, r := range rooms {
		if feature, ok := f.FromRoom(r); ok {
			features = append(features, feature)
		}
	}
	return features
}

// ToRoom converts a room feature back to a room. Cluster features are
// rejected; callers must check IsCluster first.
func (f *Facade) ToRoom(feature domain.Feature) (room.Room, error) {
	if feature.IsCluster() {
		return room.Room{}, fmt.Errorf("%w: %s", domain.ErrNotLeaf, feature.ClusterID)
	}

	if feature.Room != nil {
		return *feature.Room, nil
	}

	return room.Room{
		ID:        feature.RoomID,
		Latitude:  room.Float(feature.Latitude),
		Longitude: room.Float(feature.Longitude),
	}, nil
}

// ToRooms converts the room features and silently skips clusters
func (f *Facade) ToRooms(features []domain.Feature) []room.Room {
	rooms := make([]room.Room, 0, len(features))
	for _, feature := range features {
		if feature.IsCluster() {
			continue
		}
		r, err := f.ToRoom(feature)
		if err != nil {
			continue
		}
		rooms = append(rooms, r)
	}
	return rooms
}

// FilterExcluded drops room features whose id is hidden. Clusters always
// pass through.
func (f *Facade) FilterExcluded(features []domain.Feature, hidden map[string]struct{}) []domain.Feature {
	if len(hidden) == 0 {
		return features
	}

	filtered := make([]domain.Feature, 0, len(features))
	for _, feature := range features {
		if !feature.IsCluster() {
			if _, excluded := hidden[feature.RoomID]; excluded {
				continue
			}
		}
		filtered = append(filtered, feature)
	}
	return filtered
}

// MergePending appends a room feature for every pending room that is not
// already shown on its own and does not fall inside an existing cluster's
// expansion bounds.
func (f *Facade) MergePending(features []domain.Feature, pendingIDs []string, rooms map[string]room.Room) []domain.Feature {
	if len(pendingIDs) == 0 {
		return features
	}

	present := make(map[string]struct{}, len(features))
	for _, feature := range features {
		if !feature.IsCluster() {
			present[feature.RoomID] = struct{}{}
		}
	}

	ids := make([]string, len(pendingIDs))
	copy(ids, pendingIDs)
	sort.Strings(ids)

	merged := make([]domain.Feature, len(features), len(features)+len(ids))
	copy(merged, features)

	for _, id := range ids {
		if _, ok := present[id]; ok {
			continue
		}
		r, ok := rooms[id]
		if !ok {
			continue
		}
		feature, ok := f.FromRoom(r)
		if !ok {
			continue
		}
		if insideCluster(features, feature.Latitude, feature.Longitude) {
			continue
		}

		merged = append(merged, feature)
		present[id] = struct{}{}
	}

	return merged
}

func insideCluster(features []domain.Feature, lat, lng float64) bool {
	for _, feature := range features {
		if !feature.IsCluster() || feature.ExpansionBounds == nil {
			continue
		}
		if geo.PointInBounds(lat, lng, *feature.ExpansionBounds) {
			return true
		}
	}
	return false
}
