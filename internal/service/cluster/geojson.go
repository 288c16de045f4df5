package cluster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/domain/room"
)

// ToFeatureCollection renders features as GeoJSON points for map clients
func ToFeatureCollection(features []domain.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, f := range features {
		gf := geojson.NewFeature(orb.Point{f.Longitude, f.Latitude})
		gf.Properties["cluster"] = f.IsCluster()

		if f.IsCluster() {
			gf.ID = f.ClusterID
			gf.Properties["cluster_id"] = f.ClusterID
			gf.Properties["point_count"] = f.PointCount
			gf.Properties["size"] = string(domain.SizeOf(f.PointCount))
			if f.ExpansionBounds != nil {
				gf.BBox = geojson.NewBBox(f.ExpansionBounds.Bound())
			}
		} else {
			gf.ID = f.RoomID
			gf.Properties["room_id"] = f.RoomID
			if f.Room != nil {
				gf.Properties["title"] = f.Room.Title
				gf.Properties["category"] = string(f.Room.Category)
				gf.Properties["status"] = string(f.Room.Status)
				gf.Properties["participant_count"] = f.Room.ParticipantCount
				gf.Properties["is_new"] = f.Room.IsNew
				gf.Properties["is_high_activity"] = f.Room.IsHighActivity
				gf.Properties["is_expiring_soon"] = f.Room.IsExpiringSoon
				gf.Properties["has_joined"] = f.Room.HasJoined
			}
		}

		fc.Append(gf)
	}

	return fc
}

// RoomsFromFeatureCollection reads rooms from Point features. The room id
// comes from the "room_id" property or the feature id; features without
// either, or with a non-point geometry, are skipped.
func RoomsFromFeatureCollection(fc *geojson.FeatureCollection) []room.Room {
	rooms := make([]room.Room, 0, len(fc.Features))

	for _, gf := range fc.Features {
		pt, ok := gf.Geometry.(orb.Point)
		if !ok {
			continue
		}

		id := gf.Properties.MustString("room_id", "")
		if id == "" && gf.ID != nil {
			id = fmt.Sprint(gf.ID)
		}
		if id == "" {
			continue
		}

		r := room.Room{
			ID:               id,
			Title:            gf.Properties.MustString("title", ""),
			Latitude:         room.Float(pt.Lat()),
			Longitude:        room.Float(pt.Lon()),
			ParticipantCount: gf.Properties.MustInt("participant_count", 0),
			Category:         room.Category(gf.Properties.MustString("category", string(room.CategoryGeneral))),
			Status:           room.Status(gf.Properties.MustString("status", string(room.StatusOpen))),
			IsNew:            gf.Properties.MustBool("is_new", false),
			IsHighActivity:   gf.Properties.MustBool("is_high_activity", false),
			IsExpiringSoon:   gf.Properties.MustBool("is_expiring_soon", false),
		}
		if raw := gf.Properties.MustString("expires_at", ""); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				r.ExpiresAt = t
			}
		}

		rooms = append(rooms, r)
	}

	return rooms
}
