// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rental-marketplace/backend/internal/api/middleware"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HubStats exposes realtime connection counts.
type HubStats interface {
	ClientCount() int
	ChannelCount() int
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status           string `json:"status"`
	DBConnected      bool   `json:"db_connected"`
	RealtimeClients  int    `json:"realtime_clients"`
	RealtimeChannels int    `json:"realtime_channels"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db Pinger, hub HubStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbConnected := db.PingContext(ctx) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		response := HealthResponse{Status: status, DBConnected: dbConnected}
		if hub != nil {
			response.RealtimeClients = hub.ClientCount()
			response.RealtimeChannels = hub.ChannelCount()
		}

		middleware.WriteJSON(w, code, response)
	}
}
