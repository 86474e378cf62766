package controller

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// generateTimeBasedId returns a UUIDv7, so ids sort by creation time in logs.
func (c controller) generateTimeBasedId() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

type envelope map[string]any

func (c controller) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Warn("failed to write json response", "error", err)
	}
}
