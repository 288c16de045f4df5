// internal/server/handlers/session.go

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"roomscope/internal/service/discovery"
)

type sessionKey struct{}

// SessionHandler manages discovery sessions
type SessionHandler struct {
	manager *discovery.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *discovery.Manager) *SessionHandler {
	return &SessionHandler{
		manager: manager,
	}
}

// CreateSession starts a new discovery session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	e, err := h.manager.Create()
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Failed to create session", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     e.ID(),
		"status": e.Status(),
	})
}

// CloseSession ends a discovery session
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(chi.URLParam(r, "session")); err != nil {
		respondWithError(w, http.StatusNotFound, "Session not found", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Load resolves the {session} URL parameter and stores the engine in the
// request context.
func (h *SessionHandler) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e, err := h.manager.Get(chi.URLParam(r, "session"))
		if err != nil {
			if errors.Is(err, discovery.ErrSessionNotFound) {
				respondWithError(w, http.StatusNotFound, "Session not found", nil)
			} else {
				respondWithError(w, http.StatusInternalServerError, "Failed to load session", err)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, e)))
	})
}

func engineFrom(r *http.Request) *discovery.Engine {
	e, _ := r.Context().Value(sessionKey{}).(*discovery.Engine)
	return e
}
