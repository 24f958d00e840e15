//go:build integration

package opencv

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func TestAnnotator_Draw(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	guide := facematch.NewGuide(frame.Bounds(), facematch.DefaultGuideWidth, facematch.DefaultGuideHeight)
	g := facematch.Assess(frame.Bounds(), guide, []image.Rectangle{image.Rect(240, 140, 400, 340)}, facematch.DefaultSizeLimits)

	out, err := NewAnnotator().Draw(frame, guide, g)
	if err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	if out.Bounds() != frame.Bounds() {
		t.Errorf("unexpected bounds %v", out.Bounds())
	}
	if frame.RGBAAt(320+112, 240) != (color.RGBA{}) {
		t.Error("input frame must not be modified")
	}
	if out.RGBAAt(320+112, 240) == (color.RGBA{}) {
		t.Error("expected guide ellipse on the right axis")
	}
}

func TestSFaceEmbedder(t *testing.T) {
	path := os.Getenv("EMBEDDER_MODEL")
	if path == "" {
		t.Skip("EMBEDDER_MODEL not set")
	}
	e, err := NewSFaceEmbedder(path)
	if err != nil {
		t.Fatalf("failed to load model: %v", err)
	}
	defer e.Close()

	crop := image.NewRGBA(image.Rect(0, 0, 112, 112))
	for i := range crop.Pix {
		crop.Pix[i] = uint8(i * 7)
	}
	emb, err := e.Embed(crop)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if emb.Generator != SFaceID || emb.Dim() != 128 {
		t.Errorf("unexpected embedding %s/%d", emb.Generator, emb.Dim())
	}
}

func TestCascadeDetector_MinFace(t *testing.T) {
	path := os.Getenv("CASCADE_PATH")
	if path == "" {
		t.Skip("CASCADE_PATH not set")
	}
	d, err := NewCascadeDetector(path)
	if err != nil {
		t.Fatalf("failed to load cascade: %v", err)
	}
	defer d.Close()

	// 640x480 kiosk frames carry faces down to 30px
	if d.minSize != image.Pt(30, 30) {
		t.Errorf("expected 30x30 minimum face, got %v", d.minSize)
	}
	if _, err := d.Detect(image.NewRGBA(image.Rect(0, 0, 640, 480))); err != nil {
		t.Errorf("detect failed: %v", err)
	}
}

func TestConstructorsRejectMissingModels(t *testing.T) {
	if _, err := NewYuNetDetector("/nonexistent.onnx", 0.9); err == nil {
		t.Error("expected error for missing YuNet model")
	}
	if _, err := NewCascadeDetector("/nonexistent.xml"); err == nil {
		t.Error("expected error for missing cascade")
	}
	if _, err := NewSFaceEmbedder("/nonexistent.onnx"); err == nil {
		t.Error("expected error for missing SFace model")
	}
}
