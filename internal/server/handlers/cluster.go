// internal/server/handlers/cluster.go

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "roomscope/internal/domain/cluster"
	"roomscope/internal/service/cluster"
)

// ClusterHandler handles cluster drill-down requests
type ClusterHandler struct{}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler() *ClusterHandler {
	return &ClusterHandler{}
}

// GetExpansionZoom returns the zoom at which a cluster splits
func (h *ClusterHandler) GetExpansionZoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	zoom, err := engineFrom(r).ExpansionZoom(id)
	if err != nil {
		respondClusterError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"clusterId": id,
		"zoom":      zoom,
	})
}

// GetLeaves pages through the rooms of a cluster
func (h *ClusterHandler) GetLeaves(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	leaves, err := engineFrom(r).Leaves(id, limit, offset)
	if err != nil {
		respondClusterError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, cluster.ToFeatureCollection(leaves))
}

func respondClusterError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownCluster) {
		respondWithError(w, http.StatusNotFound, "Cluster not found", nil)
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to read cluster", err)
}
