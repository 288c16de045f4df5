// internal/domain/room/search.go

package room

import (
	"context"
)

// Point is a plain latitude/longitude pair
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchQuery describes one page request against the room search service
type SearchQuery struct {
	Center       Point
	Page         int
	PageSize     int
	RadiusMeters float64
	Category     Category
}

// SearchPage is one page of search results
type SearchPage struct {
	Rooms   []Room `json:"rooms"`
	HasNext bool   `json:"hasNext"`
}

// Searcher defines the remote room search contract
type Searcher interface {
	// Search returns rooms around the query center. Pages are 0-based.
	Search(ctx context.Context, query SearchQuery) (SearchPage, error)
}
