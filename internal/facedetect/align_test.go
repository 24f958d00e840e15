package facedetect

import (
	"image"
	"image/color"
	"testing"
)

func TestAlignByEyes_MapsEyesToReference(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	// Two dark dots standing in for eyes, tilted.
	mark := func(x, y int) {
		for dy := -5; dy <= 5; dy++ {
			for dx := -5; dx <= 5; dx++ {
				src.SetRGBA(x+dx, y+dy, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	mark(150, 120)
	mark(230, 140)

	out := AlignByEyes(src, Eyes{Left: [2]float64{150, 120}, Right: [2]float64{230, 140}}, AlignedSize)
	if out == nil {
		t.Fatal("expected aligned crop")
	}
	if out.Bounds() != image.Rect(0, 0, AlignedSize, AlignedSize) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}

	for _, p := range []image.Point{{38, 52}, {74, 52}} {
		if c := out.RGBAAt(p.X, p.Y); c.R > 128 {
			t.Errorf("expected dark eye at %v, got %v", p, c)
		}
	}
	if c := out.RGBAAt(56, 90); c.R < 128 {
		t.Errorf("expected light background at mouth area, got %v", c)
	}
}

func TestAlignByEyes_Degenerate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if AlignByEyes(src, Eyes{Left: [2]float64{5, 5}, Right: [2]float64{5, 5}}, AlignedSize) != nil {
		t.Error("expected nil for coincident eyes")
	}
}
