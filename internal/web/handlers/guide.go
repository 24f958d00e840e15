package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

const (
	guideWriteWait  = 5 * time.Second
	guidePongWait   = 60 * time.Second
	guidePingPeriod = guidePongWait * 9 / 10
)

// guideMessage is pushed to guidance websocket clients.
type guideMessage struct {
	Status    string    `json:"status"`
	Hint      string    `json:"hint"`
	FaceRatio float64   `json:"face_ratio"`
	Faces     int       `json:"faces"`
	Timestamp time.Time `json:"timestamp"`
}

// GuideHandler pushes live placement guidance over a websocket.
type GuideHandler struct {
	camera   Camera
	assessor Assessor
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewGuideHandler creates a new guidance handler. checkOrigin decides which
// browser origins may connect.
func NewGuideHandler(camera Camera, assessor Assessor, checkOrigin func(r *http.Request) bool) *GuideHandler {
	return &GuideHandler{
		camera:   camera,
		assessor: assessor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		interval: constants.GuideUpdateIntervalMillis * time.Millisecond,
	}
}

// Guide handles GET /api/v1/stream/guide (websocket upgrade).
func (h *GuideHandler) Guide(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("guide websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go readPump(conn, done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(guidePingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(guideWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(guideWriteWait))
			if err := conn.WriteJSON(h.assess()); err != nil {
				slog.Debug("guide websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *GuideHandler) assess() guideMessage {
	frame, _, ok := latestFrame(h.camera)
	if !ok || h.assessor == nil {
		return guideMessage{
			Status:    string(constants.ReasonCameraUnavailable),
			Hint:      constants.ReasonCameraUnavailable.Message(),
			Timestamp: time.Now().UTC(),
		}
	}
	_, g := h.assessor.Assess(frame)
	return toGuideMessage(g, time.Now().UTC())
}

func toGuideMessage(g facematch.Guidance, at time.Time) guideMessage {
	return guideMessage{
		Status:    string(g.Status),
		Hint:      g.Hint,
		FaceRatio: g.FaceRatio,
		Faces:     len(g.Faces),
		Timestamp: at,
	}
}

// readPump drains client messages so control frames are processed, and
// closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(guidePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(guidePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
