package facematch

import (
	"image"
)

// Default admission ellipse size as fractions of the frame.
const (
	DefaultGuideWidth  = 0.35
	DefaultGuideHeight = 0.50
)

// Guide is the admission ellipse centered in a frame.
type Guide struct {
	Center image.Point
	Width  int // full ellipse width in pixels
	Height int // full ellipse height in pixels
}

// NewGuide builds the ellipse for a frame of the given size.
func NewGuide(frame image.Rectangle, widthFrac, heightFrac float64) Guide {
	w, h := frame.Dx(), frame.Dy()
	return Guide{
		Center: image.Pt(frame.Min.X+w/2, frame.Min.Y+h/2),
		Width:  int(float64(w) * widthFrac),
		Height: int(float64(h) * heightFrac),
	}
}

// Axes returns the semi-axes of the ellipse.
func (g Guide) Axes() image.Point {
	return image.Pt(g.Width/2, g.Height/2)
}

// NormalizedDistance returns the squared normalized distance of p from the
// ellipse center. Points with a value <= 1 are inside.
func (g Guide) NormalizedDistance(p image.Point) float64 {
	if g.Width <= 0 || g.Height <= 0 {
		return 2 // degenerate guides admit nothing
	}
	nx := float64(p.X-g.Center.X) / (float64(g.Width) / 2)
	ny := float64(p.Y-g.Center.Y) / (float64(g.Height) / 2)
	return nx*nx + ny*ny
}

// Contains reports whether p lies inside or on the ellipse.
func (g Guide) Contains(p image.Point) bool {
	return g.NormalizedDistance(p) <= 1
}

// Admits reports whether the center of box lies inside the ellipse.
func (g Guide) Admits(box image.Rectangle) bool {
	return g.Contains(BoxCenter(box))
}

// BoxCenter returns the integer center of box.
func BoxCenter(box image.Rectangle) image.Point {
	return image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2)
}

// FaceRatio returns the area of box relative to the frame area.
func FaceRatio(box, frame image.Rectangle) float64 {
	frameArea := frame.Dx() * frame.Dy()
	if frameArea <= 0 {
		return 0
	}
	b := box.Intersect(frame)
	return float64(b.Dx()*b.Dy()) / float64(frameArea)
}

// ComputeIoU calculates Intersection over Union between two boxes.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	i := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - i
	if union <= 0 {
		return 0
	}
	return i / union
}
