package recognition

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var centeredBox = image.Rect(240, 140, 400, 340)

// boxDetector reports the same boxes for every frame.
type boxDetector struct {
	boxes []image.Rectangle
	err   error
}

func (d *boxDetector) Name() string { return "fixed" }

func (d *boxDetector) Detect(img *image.RGBA) ([]facedetect.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []facedetect.Detection
	for _, b := range d.boxes {
		out = append(out, facedetect.Detection{Box: b, Score: 1})
	}
	return out, nil
}

type panicDetector struct{}

func (panicDetector) Name() string { return "panic" }

func (panicDetector) Detect(img *image.RGBA) ([]facedetect.Detection, error) {
	panic("detector exploded")
}

type fakeCamera struct {
	alive bool
	frame *image.RGBA
}

func (c *fakeCamera) IsAlive() bool { return c.alive }

func (c *fakeCamera) LatestFrame() (*image.RGBA, time.Time, bool) {
	if c.frame == nil {
		return nil, time.Time{}, false
	}
	return c.frame, time.Now(), true
}

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

type fixture struct {
	svc       *Service
	directory *mock.MockIdentityDirectory
	store     *gallery.FileStore
	detector  *boxDetector
}

func newFixture(t *testing.T, opts Options) *fixture {
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
	detector := &boxDetector{boxes: []image.Rectangle{centeredBox}}
	directory := mock.NewMockIdentityDirectory()

	svc := NewService(Deps{
		Locator:    facedetect.NewLocator(detector, facedetect.DefaultFrameFloor, facedetect.DefaultCropFloor),
		Generator:  embedding.NewHOG(),
		Store:      store,
		Thumbnails: thumbs,
		Directory:  directory,
	}, opts)
	return &fixture{svc: svc, directory: directory, store: store, detector: detector}
}

func TestEnrollThenIdentify(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.directory.AddIdentity(database.Identity{EmployeeID: "EMP007", Name: "Earlier"})

	data := encodePNG(t, texturedFrame(640, 480, 1))

	enrolled := f.svc.Enroll(ctx, "  Jane Doe ", data)
	if !enrolled.Success {
		t.Fatalf("enroll failed: %s", enrolled.Reason)
	}
	if enrolled.IdentityID != "EMP008" {
		t.Errorf("expected EMP008, got %s", enrolled.IdentityID)
	}
	if !enrolled.EmbeddingLinked {
		t.Error("expected embedding to be linked")
	}

	result := f.svc.IdentifyUpload(ctx, data)
	if !result.Success {
		t.Fatalf("identify failed: %s", result.Reason)
	}
	if result.IdentityID != "EMP008" || result.Name != "Jane Doe" {
		t.Errorf("unexpected identity %s/%s", result.IdentityID, result.Name)
	}
	if result.Distance == nil || *result.Distance > 1e-6 {
		t.Errorf("expected near-zero distance, got %v", result.Distance)
	}
	if result.Threshold != constants.DefaultTolerance {
		t.Errorf("expected default threshold, got %v", result.Threshold)
	}
}

func TestIdentify_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty gallery", func(t *testing.T) {
		f := newFixture(t, Options{})
		r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
		if r.Success || r.Reason != constants.ReasonUnknown {
			t.Errorf("expected unknown, got %+v", r)
		}
		if r.Distance != nil {
			t.Error("expected no distance without a comparison")
		}
	})

	t.Run("face in the corner", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.detector.boxes = []image.Rectangle{image.Rect(0, 0, 120, 120)}
		r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
		if r.Reason != constants.ReasonOutOfArea {
			t.Errorf("expected out_of_area, got %s", r.Reason)
		}
	})

	t.Run("black frame", func(t *testing.T) {
		f := newFixture(t, Options{})
		r := f.svc.IdentifyFrame(ctx, image.NewRGBA(image.Rect(0, 0, 640, 480)))
		if r.Reason != constants.ReasonNoFace {
			t.Errorf("expected no_face, got %s", r.Reason)
		}
	})

	t.Run("detector error", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.detector.err = errors.New("model failure")
		r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
		if r.Reason != constants.ReasonNoFace {
			t.Errorf("expected no_face, got %s", r.Reason)
		}
	})

	t.Run("directory failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.directory.ListError = errors.New("connection refused")
		r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
		if r.Reason != constants.ReasonInternalError {
			t.Errorf("expected internal_error, got %s", r.Reason)
		}
	})

	t.Run("undecodable upload", func(t *testing.T) {
		f := newFixture(t, Options{})
		r := f.svc.IdentifyUpload(ctx, []byte("not an image"))
		if r.Reason != constants.ReasonBadQuality {
			t.Errorf("expected bad_quality, got %s", r.Reason)
		}
	})

	t.Run("upload too small", func(t *testing.T) {
		f := newFixture(t, Options{})
		r := f.svc.IdentifyUpload(ctx, encodePNG(t, texturedFrame(100, 100, 1)))
		if r.Reason != constants.ReasonBadQuality {
			t.Errorf("expected bad_quality, got %s", r.Reason)
		}
	})
}

func TestIdentify_AboveTolerance(t *testing.T) {
	f := newFixture(t, Options{Tolerance: func(string) float64 { return 0.0001 }})
	ctx := context.Background()

	if r := f.svc.Enroll(ctx, "Jane", encodePNG(t, texturedFrame(640, 480, 1))); !r.Success {
		t.Fatalf("enroll failed: %s", r.Reason)
	}

	r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 5))
	if r.Success || r.Reason != constants.ReasonUnknown {
		t.Fatalf("expected unknown, got %+v", r)
	}
	if r.Distance == nil || *r.Distance <= 0.0001 {
		t.Errorf("expected min distance above tolerance, got %v", r.Distance)
	}
}

func TestIdentify_SkipsOtherGenerator(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	ref, err := f.store.Save(ctx, "EMP001", embedding.Embedding{Generator: "sface-128", Vector: make128()})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	f.directory.AddIdentity(database.Identity{EmployeeID: "EMP001", Name: "Old", EmbeddingRef: ref, Generator: "sface-128"})

	r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
	if r.Reason != constants.ReasonUnknown {
		t.Errorf("expected unknown for cross-generator gallery, got %s", r.Reason)
	}
}

func TestIdentify_CancelledScanIsInternalError(t *testing.T) {
	f := newFixture(t, Options{})
	if r := f.svc.Enroll(context.Background(), "Jane", encodePNG(t, texturedFrame(640, 480, 1))); !r.Success {
		t.Fatalf("enroll failed: %s", r.Reason)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := f.svc.IdentifyFrame(ctx, texturedFrame(640, 480, 1))
	if r.Success || r.Reason != constants.ReasonInternalError {
		t.Errorf("expected internal_error for cancelled scan, got %+v", r)
	}
}

func make128() []float32 {
	v := make([]float32, 128)
	v[0] = 1
	return v
}

func TestIdentify_PanicRecovered(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.deps.Locator = facedetect.NewLocator(panicDetector{}, facedetect.DefaultFrameFloor, facedetect.DefaultCropFloor)

	r := f.svc.IdentifyFrame(context.Background(), texturedFrame(640, 480, 1))
	if r.Success || r.Reason != constants.ReasonNoFace {
		t.Errorf("expected no_face after detector panic, got %+v", r)
	}

	f.svc.deps.Directory = nil
	f.svc.deps.Locator = facedetect.NewLocator(&boxDetector{boxes: []image.Rectangle{centeredBox}}, facedetect.DefaultFrameFloor, facedetect.DefaultCropFloor)
	r = f.svc.IdentifyFrame(context.Background(), texturedFrame(640, 480, 1))
	if r.Reason != constants.ReasonInternalError {
		t.Errorf("expected internal_error after panic, got %s", r.Reason)
	}
}

func TestIdentifyCamera(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, Options{})
	if r := f.svc.IdentifyCamera(ctx); r.Reason != constants.ReasonCameraUnavailable {
		t.Errorf("expected camera_unavailable without camera, got %s", r.Reason)
	}

	f.svc.deps.Camera = &fakeCamera{alive: false, frame: texturedFrame(640, 480, 1)}
	if r := f.svc.IdentifyCamera(ctx); r.Reason != constants.ReasonCameraUnavailable {
		t.Errorf("expected camera_unavailable for dead camera, got %s", r.Reason)
	}

	f.svc.deps.Camera = &fakeCamera{alive: true}
	if r := f.svc.IdentifyCamera(ctx); r.Reason != constants.ReasonCameraUnavailable {
		t.Errorf("expected camera_unavailable without frame, got %s", r.Reason)
	}

	f.svc.deps.Camera = &fakeCamera{alive: true, frame: texturedFrame(640, 480, 1)}
	if r := f.svc.IdentifyCamera(ctx); r.Reason != constants.ReasonUnknown {
		t.Errorf("expected pipeline to run on camera frame, got %s", r.Reason)
	}
}

func TestEnroll(t *testing.T) {
	ctx := context.Background()
	data := encodePNG(t, texturedFrame(640, 480, 1))

	t.Run("missing name", func(t *testing.T) {
		f := newFixture(t, Options{})
		if r := f.svc.Enroll(ctx, "   ", data); r.Reason != constants.ReasonMissingName {
			t.Errorf("expected missing_name, got %s", r.Reason)
		}
	})

	t.Run("bad image", func(t *testing.T) {
		f := newFixture(t, Options{})
		if r := f.svc.Enroll(ctx, "Jane", []byte{0xff, 0xd8}); r.Reason != constants.ReasonBadQuality {
			t.Errorf("expected bad_quality, got %s", r.Reason)
		}
	})

	t.Run("soft enrollment", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.detector.boxes = nil
		r := f.svc.Enroll(ctx, "Jane", data)
		if !r.Success || r.EmbeddingLinked {
			t.Fatalf("expected soft enrollment, got %+v", r)
		}
		if r.Message != softEnrolledMessage {
			t.Errorf("unexpected message %q", r.Message)
		}
		identity, _ := f.directory.GetIdentity(ctx, r.IdentityID)
		if identity == nil || identity.ThumbnailRef == "" || identity.HasEmbedding() {
			t.Errorf("unexpected stored identity %+v", identity)
		}
	})

	t.Run("id allocation failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.directory.NextIDError = errors.New("sequence unavailable")
		if r := f.svc.Enroll(ctx, "Jane", data); r.Reason != constants.ReasonInternalError {
			t.Errorf("expected internal_error, got %s", r.Reason)
		}
	})

	t.Run("create failure", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.directory.CreateError = errors.New("disk full")
		if r := f.svc.Enroll(ctx, "Jane", data); r.Reason != constants.ReasonInternalError {
			t.Errorf("expected internal_error, got %s", r.Reason)
		}
	})
}

func TestReenroll(t *testing.T) {
	ctx := context.Background()
	data := encodePNG(t, texturedFrame(640, 480, 3))

	t.Run("updates existing identity", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.directory.AddIdentity(database.Identity{EmployeeID: "EMP001", Name: "Jane"})

		r := f.svc.Reenroll(ctx, "EMP001", "", data)
		if !r.Success || r.Name != "Jane" {
			t.Fatalf("reenroll failed: %+v", r)
		}
		if len(f.directory.UpdateEnrollmentCalls) != 1 {
			t.Fatalf("expected one update, got %d", len(f.directory.UpdateEnrollmentCalls))
		}
		if got := f.svc.IdentifyUpload(ctx, data); got.IdentityID != "EMP001" {
			t.Errorf("expected EMP001 after reenroll, got %+v", got)
		}
	})

	t.Run("creates under given id", func(t *testing.T) {
		f := newFixture(t, Options{})
		r := f.svc.Reenroll(ctx, "EMP042", "New Person", data)
		if !r.Success {
			t.Fatalf("reenroll failed: %s", r.Reason)
		}
		if identity, _ := f.directory.GetIdentity(ctx, "EMP042"); identity == nil || !identity.HasEmbedding() {
			t.Errorf("expected EMP042 with embedding, got %+v", identity)
		}
	})

	t.Run("new identity needs a name", func(t *testing.T) {
		f := newFixture(t, Options{})
		if r := f.svc.Reenroll(ctx, "EMP042", " ", data); r.Reason != constants.ReasonMissingName {
			t.Errorf("expected missing_name, got %s", r.Reason)
		}
	})

	t.Run("requires a face", func(t *testing.T) {
		f := newFixture(t, Options{})
		f.detector.boxes = nil
		if r := f.svc.Reenroll(ctx, "EMP001", "Jane", data); r.Reason != constants.ReasonNoFace {
			t.Errorf("expected no_face, got %s", r.Reason)
		}
	})

	t.Run("requires an id", func(t *testing.T) {
		f := newFixture(t, Options{})
		if r := f.svc.Reenroll(ctx, "", "Jane", data); r.Reason != constants.ReasonInvalidRequest {
			t.Errorf("expected invalid_request, got %s", r.Reason)
		}
	})
}

func TestAssess(t *testing.T) {
	f := newFixture(t, Options{})
	frame := texturedFrame(640, 480, 1)

	guide, g := f.svc.Assess(frame)
	if guide.Center != image.Pt(320, 240) {
		t.Errorf("unexpected guide center %v", guide.Center)
	}
	if g.Status != "good" {
		t.Errorf("expected good guidance, got %s", g.Status)
	}

	f.svc.deps.Locator = facedetect.NewLocator(panicDetector{}, facedetect.DefaultFrameFloor, facedetect.DefaultCropFloor)
	if _, g := f.svc.Assess(frame); g.Status != "no_face" {
		t.Errorf("expected no_face after detector panic, got %s", g.Status)
	}
}
