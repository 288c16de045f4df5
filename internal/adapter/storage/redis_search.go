package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"roomscope/internal/domain/room"
)

// halfEquatorMeters covers the whole globe from any center
const halfEquatorMeters = 20037508.0

// RedisRoomIndex keeps room positions in a Redis GEO set and room bodies
// in a hash keyed by id.
type RedisRoomIndex struct {
	client  *redis.Client
	geoKey  string
	dataKey string
}

// NewRedisRoomIndex creates a Redis-backed room index
func NewRedisRoomIndex(client *redis.Client) *RedisRoomIndex {
	return &RedisRoomIndex{client: client, geoKey: "rooms:geo", dataKey: "rooms:data"}
}

// SaveRoom stores the room body and its coordinates
func (i *RedisRoomIndex) SaveRoom(ctx context.Context, r room.Room) error {
	lat, lng, ok := r.Coordinates()
	if !ok {
		return fmt.Errorf("room %s has no usable coordinates", r.ID)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error marshaling room: %w", err)
	}

	_, err = i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, i.geoKey, &redis.GeoLocation{
			Name:      r.ID,
			Longitude: lng,
			Latitude:  lat,
		})
		pipe.HSet(ctx, i.dataKey, r.ID, body)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error saving room: %w", err)
	}
	return nil
}

// DeleteRoom removes a room from both keys
func (i *RedisRoomIndex) DeleteRoom(ctx context.Context, id string) error {
	_, err := i.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, i.geoKey, id)
		pipe.HDel(ctx, i.dataKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error removing room: %w", err)
	}
	return nil
}

// Search returns one page of rooms nearest the query center. Closed and
// expired rooms are dropped after paging, so a page may come back short.
func (i *RedisRoomIndex) Search(ctx context.Context, q room.SearchQuery) (room.SearchPage, error) {
	if q.PageSize <= 0 {
		return room.SearchPage{}, fmt.Errorf("page size must be positive")
	}
	if q.Page < 0 {
		return room.SearchPage{}, fmt.Errorf("page must not be negative")
	}

	radius := q.RadiusMeters
	if radius <= 0 {
		radius = halfEquatorMeters
	}

	offset := q.Page * q.PageSize
	results, err := i.client.GeoSearchLocation(ctx, i.geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  q.Center.Lng,
			Latitude:   q.Center.Lat,
			Radius:     radius,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      offset + q.PageSize + 1,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return room.SearchPage{}, fmt.Errorf("error searching rooms: %w", err)
	}

	if offset >= len(results) {
		return room.SearchPage{}, nil
	}

	page := room.SearchPage{}
	results = results[offset:]
	if len(results) > q.PageSize {
		results = results[:q.PageSize]
		page.HasNext = true
	}

	ids := make([]string, len(results))
	for n, res := range results {
		ids[n] = res.Name
	}

	bodies, err := i.client.HMGet(ctx, i.dataKey, ids...).Result()
	if err != nil {
		return room.SearchPage{}, fmt.Errorf("error loading rooms: %w", err)
	}

	for n, body := range bodies {
		raw, ok := body.(string)
		if !ok {
			continue
		}

		var r room.Room
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return room.SearchPage{}, fmt.Errorf("error unmarshaling room %s: %w", ids[n], err)
		}
		if r.Status == room.StatusClosed || r.Status == room.StatusExpired {
			continue
		}
		if q.Category != "" && r.Category != q.Category {
			continue
		}

		r.Distance = results[n].Dist
		page.Rooms = append(page.Rooms, r)
	}

	return page, nil
}
