// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/apex/log"

	"roomscope/internal/domain/viewport"
)

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}

	if err != nil && code >= 500 {
		log.WithError(err).WithFields(log.Fields{
			"code":    code,
			"message": message,
		}).Error("HTTP error")
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

// parseBounds reads a "w,s,e,n" bounds parameter
func parseBounds(raw string) (viewport.Bounds, error) {
	if raw == "" {
		return viewport.Bounds{}, fmt.Errorf("%w: missing bounds", viewport.ErrInvalidBounds)
	}

	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return viewport.Bounds{}, fmt.Errorf("%w: %q is not a number", viewport.ErrInvalidBounds, part)
		}
		values = append(values, v)
	}

	return viewport.FromSlice(values)
}

// queryInt reads an integer query parameter with a default
func queryInt(r *http.Request, key string, defaultValue int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return defaultValue
}
