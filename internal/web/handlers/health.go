package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports database and camera status.
type HealthHandler struct {
	pinger database.Pinger
	camera Camera
	now    func() time.Time
}

// NewHealthHandler creates a new health handler. Both arguments may be nil.
func NewHealthHandler(pinger database.Pinger, camera Camera) *HealthHandler {
	return &HealthHandler{pinger: pinger, camera: camera, now: time.Now}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Camera    string    `json:"camera"`
}

// Health handles GET /api/v1/health. It always answers 200; a failing
// dependency turns the status to "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Database:  "disconnected",
		Camera:    "disabled",
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err == nil {
			resp.Database = "connected"
		}
	}
	if resp.Database != "connected" {
		resp.Status = "degraded"
	}

	if h.camera != nil {
		if h.camera.IsAlive() {
			resp.Camera = "running"
		} else {
			resp.Camera = "unavailable"
			resp.Status = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
