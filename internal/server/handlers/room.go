// internal/server/handlers/room.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"roomscope/internal/domain/room"
)

// RoomHandler handles room membership and optimistic creation
type RoomHandler struct{}

// NewRoomHandler creates a new room handler
func NewRoomHandler() *RoomHandler {
	return &RoomHandler{}
}

type createRoomRequest struct {
	Title     string        `json:"title"`
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	Category  room.Category `json:"category"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type patchRoomRequest struct {
	Title            *string        `json:"title"`
	Latitude         *float64       `json:"latitude"`
	Longitude        *float64       `json:"longitude"`
	ParticipantCount *int           `json:"participantCount"`
	Category         *room.Category `json:"category"`
	Status           *room.Status   `json:"status"`
	ExpiresAt        *time.Time     `json:"expiresAt"`
	IsHighActivity   *bool          `json:"isHighActivity"`
	IsExpiringSoon   *bool          `json:"isExpiringSoon"`
}

func (req patchRoomRequest) patch() room.Patch {
	return room.Patch{
		Title:            req.Title,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		ParticipantCount: req.ParticipantCount,
		Category:         req.Category,
		Status:           req.Status,
		ExpiresAt:        req.ExpiresAt,
		IsHighActivity:   req.IsHighActivity,
		IsExpiringSoon:   req.IsExpiringSoon,
	}
}

// CreateRoom adds an optimistic room to the session
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	created, err := engineFrom(r).Rooms().CreatePending(room.Room{
		Title:     req.Title,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Category:  req.Category,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GetRoom returns a room by id
func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := engineFrom(r).Rooms().Get(chi.URLParam(r, "id"))
	if err != nil {
		respondRoomError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rm)
}

// UpdateRoom applies a partial update
func (h *RoomHandler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req patchRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rm, err := engineFrom(r).Rooms().Update(chi.URLParam(r, "id"), req.patch())
	if err != nil {
		respondRoomError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rm)
}

// JoinRoom marks a room as joined
func (h *RoomHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := engineFrom(r).Rooms().Join(chi.URLParam(r, "id"))
	if err != nil {
		respondRoomError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rm)
}

// LeaveRoom clears the joined mark
func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := engineFrom(r).Rooms().Leave(chi.URLParam(r, "id"))
	if err != nil {
		respondRoomError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rm)
}

// HideRoom excludes a room from discovery output
func (h *RoomHandler) HideRoom(w http.ResponseWriter, r *http.Request) {
	engineFrom(r).Rooms().Hide(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// UnhideRoom reverses HideRoom
func (h *RoomHandler) UnhideRoom(w http.ResponseWriter, r *http.Request) {
	engineFrom(r).Rooms().Unhide(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func respondRoomError(w http.ResponseWriter, err error) {
	if errors.Is(err, room.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Room not found", nil)
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to update room", err)
}
