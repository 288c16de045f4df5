// internal/adapter/storage/room_store.go

package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"roomscope/internal/domain/room"
)

const roomSchema = `
	CREATE EXTENSION IF NOT EXISTS postgis;

	CREATE TABLE IF NOT EXISTS rooms (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL DEFAULT '',
		category          TEXT NOT NULL DEFAULT 'general',
		status            TEXT NOT NULL DEFAULT 'open',
		participant_count INTEGER NOT NULL DEFAULT 0,
		expires_at        TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_new            BOOLEAN NOT NULL DEFAULT false,
		is_high_activity  BOOLEAN NOT NULL DEFAULT false,
		is_expiring_soon  BOOLEAN NOT NULL DEFAULT false,
		location          GEOGRAPHY(Point, 4326)
	);

	CREATE INDEX IF NOT EXISTS rooms_location_idx ON rooms USING GIST (location);
`

// RoomStore implements room search on PostGIS
type RoomStore struct {
	db *pgxpool.Pool
}

// NewRoomStore creates a new room store
func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{
		db: db,
	}
}

// EnsureSchema creates the rooms table and its spatial index
func (s *RoomStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, roomSchema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

// SaveRoom inserts or updates a room
func (s *RoomStore) SaveRoom(ctx context.Context, r room.Room) error {
	query := `
		INSERT INTO rooms (
			id, title, category, status, participant_count,
			expires_at, created_at, is_new, is_high_activity, is_expiring_soon,
			location
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			CASE WHEN $11::float8 IS NOT NULL AND $12::float8 IS NOT NULL
				THEN ST_SetSRID(ST_MakePoint($11, $12), 4326)::geography END
		)
		ON CONFLICT (id) DO UPDATE
		SET
			title = $2,
			category = $3,
			status = $4,
			participant_count = $5,
			expires_at = $6,
			is_new = $8,
			is_high_activity = $9,
			is_expiring_soon = $10,
			location = CASE WHEN $11::float8 IS NOT NULL AND $12::float8 IS NOT NULL
				THEN ST_SetSRID(ST_MakePoint($11, $12), 4326)::geography ELSE rooms.location END
	`

	var expiresAt *time.Time
	if !r.ExpiresAt.IsZero() {
		expiresAt = &r.ExpiresAt
	}

	_, err := s.db.Exec(
		ctx,
		query,
		r.ID,
		r.Title,
		string(r.Category),
		string(r.Status),
		r.ParticipantCount,
		expiresAt,
		r.CreatedAt,
		r.IsNew,
		r.IsHighActivity,
		r.IsExpiringSoon,
		r.Longitude,
		r.Latitude,
	)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}

	return nil
}

// Search returns one page of open rooms within the query radius, nearest
// first. One extra row is requested to decide whether another page exists.
func (s *RoomStore) Search(ctx context.Context, q room.SearchQuery) (room.SearchPage, error) {
	if q.PageSize <= 0 {
		return room.SearchPage{}, fmt.Errorf("page size must be positive")
	}
	if q.Page < 0 {
		return room.SearchPage{}, fmt.Errorf("page must not be negative")
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString(`
		SELECT
			id, title, category, status, participant_count,
			expires_at, created_at, is_new, is_high_activity, is_expiring_soon,
			ST_X(location::geometry) as lng, ST_Y(location::geometry) as lat,
			ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) as distance
		FROM rooms
		WHERE location IS NOT NULL
		AND status NOT IN ('closed', 'expired')
		AND (expires_at IS NULL OR expires_at > now())
	`)

	args := []interface{}{q.Center.Lng, q.Center.Lat}
	argIndex := 3

	// radius 0 means no distance filter
	if q.RadiusMeters > 0 {
		queryBuilder.WriteString(fmt.Sprintf(
			" AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $%d)",
			argIndex,
		))
		args = append(args, q.RadiusMeters)
		argIndex++
	}

	if q.Category != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND category = $%d", argIndex))
		args = append(args, string(q.Category))
		argIndex++
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY distance ASC, id ASC LIMIT $%d OFFSET $%d", argIndex, argIndex+1))
	args = append(args, q.PageSize+1, q.Page*q.PageSize)

	rows, err := s.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return room.SearchPage{}, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	var rooms []room.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return room.SearchPage{}, fmt.Errorf("error scanning room: %w", err)
		}
		rooms = append(rooms, r)
	}

	if err := rows.Err(); err != nil {
		return room.SearchPage{}, fmt.Errorf("error iterating rooms: %w", err)
	}

	page := room.SearchPage{Rooms: rooms}
	if len(rooms) > q.PageSize {
		page.Rooms = rooms[:q.PageSize]
		page.HasNext = true
	}

	return page, nil
}

// DeleteRoom removes a room
func (s *RoomStore) DeleteRoom(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error executing query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", room.ErrNotFound, id)
	}
	return nil
}

func scanRoom(row pgx.Row) (room.Room, error) {
	var r room.Room
	var category, status string
	var expiresAt *time.Time
	var lng, lat *float64

	err := row.Scan(
		&r.ID,
		&r.Title,
		&category,
		&status,
		&r.ParticipantCount,
		&expiresAt,
		&r.CreatedAt,
		&r.IsNew,
		&r.IsHighActivity,
		&r.IsExpiringSoon,
		&lng,
		&lat,
		&r.Distance,
	)
	if err != nil {
		return room.Room{}, err
	}

	if expiresAt != nil {
		r.ExpiresAt = *expiresAt
	}
	// Set location if coordinates are present
	if lng != nil && lat != nil {
		r.Longitude = lng
		r.Latitude = lat
	}

	r.Category = room.Category(category)
	r.Status = room.Status(status)

	return r, nil
}
