package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

var centeredBox = image.Rect(240, 140, 400, 340)

// boxDetector reports the same boxes for every frame.
type boxDetector struct {
	boxes []image.Rectangle
}

func (d *boxDetector) Name() string { return "fixed" }

func (d *boxDetector) Detect(img *image.RGBA) ([]facedetect.Detection, error) {
	var out []facedetect.Detection
	for _, b := range d.boxes {
		out = append(out, facedetect.Detection{Box: b, Score: 1})
	}
	return out, nil
}

// fakeCamera is a Camera with a fixed frame.
type fakeCamera struct {
	alive bool
	frame *image.RGBA
	err   error
}

func (c *fakeCamera) IsAlive() bool { return c.alive }

func (c *fakeCamera) LatestFrame() (*image.RGBA, time.Time, bool) {
	if c.frame == nil {
		return nil, time.Time{}, false
	}
	return c.frame, time.Now(), true
}

func (c *fakeCamera) LastError() error { return c.err }

// texturedFrame returns a frame that passes the brightness and contrast gates.
func texturedFrame(w, h, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(64 + (x*7+y*13+seed*31+(x*y)%17)%128)
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// testEnv bundles a recognition service wired to in-memory fakes.
type testEnv struct {
	svc       *recognition.Service
	directory *mock.MockIdentityDirectory
	recorder  *mock.MockAttendanceRecorder
	camera    *fakeCamera
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := gallery.NewFileStore(filepath.Join(dir, "encodings"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	thumbs, err := gallery.NewThumbnails(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("thumbnails: %v", err)
	}
	env := &testEnv{
		directory: mock.NewMockIdentityDirectory(),
		recorder:  mock.NewMockAttendanceRecorder(),
		camera:    &fakeCamera{alive: true, frame: texturedFrame(640, 480, 1)},
	}
	detector := &boxDetector{boxes: []image.Rectangle{centeredBox}}
	env.svc = recognition.NewService(recognition.Deps{
		Locator:    facedetect.NewLocator(detector, facedetect.DefaultFrameFloor, facedetect.DefaultCropFloor),
		Generator:  embedding.NewHOG(),
		Store:      store,
		Thumbnails: thumbs,
		Directory:  env.directory,
		Camera:     env.camera,
	}, recognition.Options{})
	return env
}

// multipartRequest builds a multipart POST with the given fields and an
// optional image file.
func multipartRequest(t *testing.T, path string, fields map[string]string, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
