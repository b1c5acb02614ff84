package handlers

import (
	"net/http"

	"github.com/usermgmt/apiserver/config"
)

// HealthResponse reports liveness along with basic service metadata.
type HealthResponse struct {
	Status      string `json:"status"`
	AppName     string `json:"app_name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// RootResponse is the metadata payload served at the root path.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// Health returns a liveness handler for the configured service.
func Health(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:      "healthy",
			AppName:     cfg.AppName,
			Version:     cfg.AppVersion,
			Environment: cfg.Environment,
		})
	}
}

// Root returns a handler serving basic service metadata.
func Root(cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, RootResponse{
			Message: "Welcome to " + cfg.AppName,
			Version: cfg.AppVersion,
			Health:  "/health",
		})
	}
}
