package facedetect

import (
	"image"
	"math"

	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// Floor is a minimum grayscale brightness and contrast.
type Floor struct {
	Mean float64
	Std  float64
}

// Default quality floors for whole frames and face crops.
var (
	DefaultFrameFloor = Floor{Mean: 40, Std: 20}
	DefaultCropFloor  = Floor{Mean: 30, Std: 15}
)

// Stats returns the mean and population standard deviation of the grayscale
// version of img.
func Stats(img image.Image) (mean, std float64) {
	gray := imageio.Gray(img)
	n := len(gray.Pix)
	if n == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for _, p := range gray.Pix {
		v := float64(p)
		sum += v
		sumSq += v * v
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// Passes reports whether img is bright and contrasted enough.
func (f Floor) Passes(img image.Image) bool {
	mean, std := Stats(img)
	return mean >= f.Mean && std >= f.Std
}
