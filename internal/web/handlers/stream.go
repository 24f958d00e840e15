package handlers

import (
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageio"
)

const streamBoundary = "frame"

// Assessor classifies face placement in a frame.
type Assessor interface {
	Assess(frame *image.RGBA) (facematch.Guide, facematch.Guidance)
}

// StreamHandler serves the annotated camera feed as MJPEG.
type StreamHandler struct {
	camera   Camera
	assessor Assessor
	overlay  Overlay
	interval time.Duration
}

// NewStreamHandler creates a new stream handler. overlay may be nil, in
// which case raw frames are streamed.
func NewStreamHandler(camera Camera, assessor Assessor, overlay Overlay, fps int) *StreamHandler {
	if fps <= 0 {
		fps = 30
	}
	return &StreamHandler{
		camera:   camera,
		assessor: assessor,
		overlay:  overlay,
		interval: time.Second / time.Duration(fps),
	}
}

// Stream handles GET /api/v1/stream.mjpeg.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := latestFrame(h.camera); !ok {
		msg := constants.ReasonCameraUnavailable.Message()
		if h.camera != nil && h.camera.LastError() != nil {
			msg = h.camera.LastError().Error()
		}
		respondJSON(w, http.StatusServiceUnavailable, failureResponse{
			Reason:  constants.ReasonCameraUnavailable,
			Message: msg,
		})
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("clearing stream write deadline failed", "error", err)
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, at, ok := latestFrame(h.camera)
		if !ok {
			slog.Info("camera went away, ending stream")
			return
		}
		if !at.After(last) {
			continue
		}
		last = at

		data, err := h.render(frame)
		if err != nil {
			slog.Debug("rendering stream frame failed", "error", err)
			continue
		}
		if err := writePart(w, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// render annotates frame and encodes it as JPEG.
func (h *StreamHandler) render(frame *image.RGBA) ([]byte, error) {
	out := frame
	if h.assessor != nil && h.overlay != nil {
		guide, guidance := h.assessor.Assess(frame)
		drawn, err := h.overlay.Draw(frame, guide, guidance)
		if err != nil {
			return nil, err
		}
		out = drawn
	}
	return imageio.EncodeJPEG(out, constants.StreamJPEGQuality)
}

func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
