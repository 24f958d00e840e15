// Package imageio decodes, resizes, validates and encodes raster images.
// All images handed to the pipeline are *image.RGBA anchored at the origin.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrEmpty is returned when there are no bytes to decode.
	ErrEmpty = errors.New("empty image data")
	// ErrTooSmall is returned when an image is below the minimum accepted size.
	ErrTooSmall = errors.New("image is too small")
)

// supportedExtensions lists upload file extensions accepted by the service.
var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".webp": {},
}

// Decode decodes JPEG, PNG, GIF, BMP or WEBP bytes into an RGBA image.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns an RGBA copy of img with its bounds moved to the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Clone returns an independent copy of img.
func Clone(img *image.RGBA) *image.RGBA {
	dst := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(dst.Pix, img.Pix)
	return dst
}

// Crop copies the region r of img into a new image anchored at the origin.
// The region is clamped to the image bounds.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// ResizeTo scales img to exactly width x height.
func ResizeTo(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// fitWithin returns the largest size with the aspect ratio of (w, h) that fits
// inside (maxW, maxH). Sizes that already fit are returned unchanged.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return nw, nh
}

// Resize downscales img so it fits inside maxW x maxH, preserving the aspect
// ratio. Images that already fit are returned as is.
func Resize(img *image.RGBA, maxW, maxH int) *image.RGBA {
	b := img.Bounds()
	nw, nh := fitWithin(b.Dx(), b.Dy(), maxW, maxH)
	if nw == b.Dx() && nh == b.Dy() {
		return img
	}
	return ResizeTo(img, nw, nh)
}

// Thumbnail returns a copy of img that fits inside size x size.
func Thumbnail(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	nw, nh := fitWithin(b.Dx(), b.Dy(), size, size)
	if nw == b.Dx() && nh == b.Dy() {
		return Clone(img)
	}
	return ResizeTo(img, nw, nh)
}

// ValidateMinSize reports whether img is at least minW x minH.
func ValidateMinSize(img image.Image, minW, minH int) bool {
	b := img.Bounds()
	return b.Dx() >= minW && b.Dy() >= minH
}

// EncodeJPEG encodes img as JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateExtension reports whether filename has a supported image extension.
func ValidateExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := supportedExtensions[ext]
	return ok
}

// Gray converts img to 8-bit grayscale using BT.601 luma weights.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := img.(*image.RGBA); ok {
		for y := range b.Dy() {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			row := dst.Pix[y*dst.Stride:]
			for x := range b.Dx() {
				r, g, bl := src[x*4], src[x*4+1], src[x*4+2]
				row[x] = uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(bl) + 500) / 1000)
			}
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
