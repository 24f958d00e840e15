package handlers

import (
	"encoding/base64"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// Camera is the frame source seen by the HTTP layer.
type Camera interface {
	IsAlive() bool
	LatestFrame() (*image.RGBA, time.Time, bool)
	LastError() error
}

// Overlay draws the guide and face boxes onto a frame copy.
type Overlay interface {
	Draw(frame *image.RGBA, guide facematch.Guide, g facematch.Guidance) (*image.RGBA, error)
}

// latestFrame returns the newest frame, or false when the camera is off.
func latestFrame(cam Camera) (*image.RGBA, time.Time, bool) {
	if cam == nil || !cam.IsAlive() {
		return nil, time.Time{}, false
	}
	return cam.LatestFrame()
}

// CaptureHandler returns single camera frames.
type CaptureHandler struct {
	camera Camera
}

// NewCaptureHandler creates a new capture handler. camera may be nil.
func NewCaptureHandler(camera Camera) *CaptureHandler {
	return &CaptureHandler{camera: camera}
}

// Capture handles GET /api/v1/capture. With preview=1 it returns the JPEG
// itself, otherwise a JSON body with a data URL.
func (h *CaptureHandler) Capture(w http.ResponseWriter, r *http.Request) {
	frame, _, ok := latestFrame(h.camera)
	if !ok {
		respondFailure(w, http.StatusServiceUnavailable, constants.ReasonCameraUnavailable)
		return
	}

	data, err := imageio.EncodeJPEG(frame, constants.CaptureJPEGQuality)
	if err != nil {
		slog.Error("encoding capture failed", "error", err)
		respondFailure(w, http.StatusInternalServerError, constants.ReasonInternalError)
		return
	}

	if r.URL.Query().Get("preview") == "1" {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"image":   "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
	})
}
