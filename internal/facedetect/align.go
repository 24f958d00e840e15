package facedetect

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// AlignedSize is the side of an aligned face crop.
const AlignedSize = 112

// Reference eye positions in a 112x112 aligned crop. The first is the eye
// that appears on the left of the image.
var (
	refLeftEye  = complex(38.2946, 51.6963)
	refRightEye = complex(73.5318, 51.5014)
)

// Eyes holds the eye centres of a detected face in source coordinates.
// Left and Right refer to image sides, not to the person.
type Eyes struct {
	Left, Right [2]float64
}

// AlignByEyes warps src with the similarity transform that maps the eyes onto
// their reference positions and returns a size x size crop. Coincident eyes
// yield nil.
func AlignByEyes(src image.Image, eyes Eyes, size int) *image.RGBA {
	s1 := complex(eyes.Left[0], eyes.Left[1])
	s2 := complex(eyes.Right[0], eyes.Right[1])
	if s1 == s2 || size <= 0 {
		return nil
	}

	scale := float64(size) / AlignedSize
	d1 := refLeftEye * complex(scale, 0)
	d2 := refRightEye * complex(scale, 0)

	// dst = a*src + b
	a := (d2 - d1) / (s2 - s1)
	b := d1 - a*s1
	s2d := f64.Aff3{
		real(a), -imag(a), real(b),
		imag(a), real(a), imag(b),
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return dst
}
