package api

import "net/http"

// Health is the health check response body
type Health struct {
	Status string `json:"status"`
}

// GetHealth implements health check endpoint
func (s *ApiService) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: "ok"})
}
