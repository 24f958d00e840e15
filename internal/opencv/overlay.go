package opencv

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageio"
	"gocv.io/x/gocv"
)

var (
	colorGood    = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorWarning = color.RGBA{R: 255, G: 170, B: 0, A: 255}
	colorFace    = color.RGBA{R: 0, G: 160, B: 255, A: 255}
)

// Annotator draws the admission guide, face boxes and the guidance hint.
type Annotator struct{}

// NewAnnotator returns an Annotator.
func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Draw returns a copy of frame with the overlay. The input is not modified.
func (a *Annotator) Draw(frame *image.RGBA, guide facematch.Guide, g facematch.Guidance) (*image.RGBA, error) {
	mat, err := gocv.ImageToMatRGBA(frame)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	guideColor := colorWarning
	if g.Status == facematch.GuidanceGood {
		guideColor = colorGood
	}

	origin := frame.Bounds().Min
	gocv.Ellipse(&mat, guide.Center.Sub(origin), guide.Axes(), 0, 0, 360, guideColor, 2)
	for _, box := range g.Faces {
		gocv.Rectangle(&mat, box.Sub(origin), colorFace, 2)
	}
	if g.Hint != "" {
		gocv.PutText(&mat, g.Hint, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, guideColor, 2)
	}

	out, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting overlay: %w", err)
	}
	return imageio.ToRGBA(out), nil
}
