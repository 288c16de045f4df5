// internal/domain/cluster/model.go

package cluster

import (
	"errors"

	"roomscope/internal/domain/room"
	"roomscope/internal/domain/viewport"
)

// Kind identifies the two feature shapes
type Kind string

const (
	KindRoom    Kind = "room"
	KindCluster Kind = "cluster"
)

var (
	// ErrNotLeaf is returned when a cluster feature is converted to a room
	ErrNotLeaf = errors.New("feature is a cluster, not a room")

	// ErrUnknownCluster is returned for a cluster id the index did not produce
	ErrUnknownCluster = errors.New("unknown cluster")
)

// Feature is a point fed to or returned from the spatial index
type Feature struct {
	Kind      Kind    `json:"kind"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Room features
	RoomID string     `json:"roomId,omitempty"`
	Room   *room.Room `json:"room,omitempty"`

	// Cluster features
	ClusterID       string           `json:"clusterId,omitempty"`
	PointCount      int              `json:"pointCount,omitempty"`
	ExpansionBounds *viewport.Bounds `json:"expansionBounds,omitempty"`
}

// IsCluster reports whether the feature aggregates several rooms
func (f Feature) IsCluster() bool {
	return f.Kind == KindCluster
}

// Size is a presentation hint derived from a cluster's point count
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
	SizeXLarge Size = "xlarge"
)

// SizeOf returns the size category for a point count.
// All consumers share this table.
func SizeOf(pointCount int) Size {
	switch {
	case pointCount < 10:
		return SizeSmall
	case pointCount < 50:
		return SizeMedium
	case pointCount < 100:
		return SizeLarge
	default:
		return SizeXLarge
	}
}
