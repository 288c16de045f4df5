// internal/server/handlers/viewport.go

package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/cluster"
)

// ViewportHandler handles viewport-related HTTP requests for a session
type ViewportHandler struct{}

// NewViewportHandler creates a new viewport handler
func NewViewportHandler() *ViewportHandler {
	return &ViewportHandler{}
}

type viewportRequest struct {
	Bounds   []float64 `json:"bounds"`
	Zoom     float64   `json:"zoom"`
	MapReady *bool     `json:"mapReady"`
	Moving   bool      `json:"moving"`
}

func (req viewportRequest) viewport() (viewport.Viewport, error) {
	b, err := viewport.FromSlice(req.Bounds)
	if err != nil {
		return viewport.Viewport{}, err
	}
	return viewport.Viewport{Bounds: b, Zoom: req.Zoom}, nil
}

// mapReady defaults to true for HTTP callers
func (req viewportRequest) mapReady() bool {
	return req.MapReady == nil || *req.MapReady
}

// UpdateViewport feeds a viewport change to the session controller
func (h *ViewportHandler) UpdateViewport(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)

	var req viewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v, err := req.viewport()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	accepted := e.OnViewportChange(v, req.mapReady(), req.Moving)

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": accepted,
		"status":   e.Status(),
	})
}

// GetStatus returns the controller status
func (h *ViewportHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, engineFrom(r).Status())
}

// GetFeatures returns the clusters and rooms for the bounds as GeoJSON
func (h *ViewportHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	b, err := parseBounds(r.URL.Query().Get("bounds"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	zoom, err := strconv.ParseFloat(r.URL.Query().Get("zoom"), 64)
	if err != nil || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		respondWithError(w, http.StatusBadRequest, "Invalid zoom", nil)
		return
	}

	features := engineFrom(r).Features(b, zoom)
	respondWithJSON(w, http.StatusOK, cluster.ToFeatureCollection(features))
}

// GetRooms returns the distance-sorted rooms inside the bounds
func (h *ViewportHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	b, err := parseBounds(r.URL.Query().Get("bounds"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rooms := engineFrom(r).VisibleRooms(b)
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

// Refetch fetches the current viewport immediately
func (h *ViewportHandler) Refetch(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	started := e.Refetch(r.Context())

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"started": started,
		"status":  e.Status(),
	})
}

// ClearCache resets the fetch bookkeeping
func (h *ViewportHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	e := engineFrom(r)
	e.ClearCache()
	respondWithJSON(w, http.StatusOK, e.Status())
}
