package handlers

import (
	"net/http"
)

// ServiceInfo describes the running service.
type ServiceInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Generator string `json:"generator"`
	Detector  string `json:"detector"`
}

// InfoHandler answers GET / with service metadata.
func InfoHandler(info ServiceInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, info)
	}
}
