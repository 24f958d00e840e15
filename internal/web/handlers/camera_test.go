package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func TestCapture_JSON(t *testing.T) {
	cam := &fakeCamera{alive: true, frame: texturedFrame(320, 240, 1)}

	recorder := httptest.NewRecorder()
	NewCaptureHandler(cam).Capture(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/capture", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result struct {
		Success bool   `json:"success"`
		Image   string `json:"image"`
	}
	parseJSONResponse(t, recorder, &result)
	if !result.Success {
		t.Fatal("expected success")
	}
	encoded, ok := strings.CutPrefix(result.Image, "data:image/jpeg;base64,")
	if !ok {
		t.Fatalf("expected a JPEG data URL, got %.40s", result.Image)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid jpeg: %v", err)
	}
	if img.Bounds().Dx() != 320 || img.Bounds().Dy() != 240 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
}

func TestCapture_Preview(t *testing.T) {
	cam := &fakeCamera{alive: true, frame: texturedFrame(320, 240, 1)}

	recorder := httptest.NewRecorder()
	NewCaptureHandler(cam).Capture(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/capture?preview=1", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/jpeg")
	if _, err := jpeg.Decode(recorder.Body); err != nil {
		t.Errorf("invalid jpeg: %v", err)
	}
}

func TestCapture_Unavailable(t *testing.T) {
	for name, cam := range map[string]Camera{
		"nil camera":  nil,
		"dead camera": &fakeCamera{alive: false, frame: texturedFrame(32, 32, 1)},
		"no frame":    &fakeCamera{alive: true},
	} {
		t.Run(name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			NewCaptureHandler(cam).Capture(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/capture", nil))

			assertStatusCode(t, recorder, http.StatusServiceUnavailable)
			var result failureResponse
			parseJSONResponse(t, recorder, &result)
			if result.Reason != constants.ReasonCameraUnavailable {
				t.Errorf("expected camera_unavailable, got %s", result.Reason)
			}
		})
	}
}

// markOverlay counts how often it is drawn.
type markOverlay struct {
	calls int
}

func (o *markOverlay) Draw(frame *image.RGBA, guide facematch.Guide, g facematch.Guidance) (*image.RGBA, error) {
	o.calls++
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)
	return out, nil
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	overlay := &markOverlay{}
	h := NewStreamHandler(env.camera, env.svc, overlay, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()
	h.Stream(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if ct := recorder.Header().Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, "--frame\r\nContent-Type: image/jpeg\r\n") {
		t.Error("expected at least one JPEG part")
	}
	if overlay.calls == 0 {
		t.Error("expected the overlay to be drawn")
	}
}

func TestStream_Unavailable(t *testing.T) {
	cam := &fakeCamera{alive: false, err: errors.New("device 0 not found")}

	recorder := httptest.NewRecorder()
	NewStreamHandler(cam, nil, nil, 10).Stream(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil))

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
	var result failureResponse
	parseJSONResponse(t, recorder, &result)
	if result.Reason != constants.ReasonCameraUnavailable || result.Message != "device 0 not found" {
		t.Errorf("unexpected failure %+v", result)
	}
}
