// Package facedetect locates a single face in a frame. It gates frames and
// crops on brightness and contrast and delegates detection to one Detector
// chosen at startup.
package facedetect

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// Detection is one face found by a Detector.
type Detection struct {
	Box   image.Rectangle // source pixel coordinates
	Score float64
	// Aligned is an optional crop already rotated so the eyes are level.
	Aligned image.Image
}

// Detector finds faces in a frame.
type Detector interface {
	Name() string
	Detect(img *image.RGBA) ([]Detection, error)
}

// Face is the located face of a frame.
type Face struct {
	Box      image.Rectangle
	Crop     *image.RGBA
	Score    float64
	Detector string
}

// Center returns the integer center of the face box.
func (f Face) Center() image.Point {
	return image.Pt((f.Box.Min.X+f.Box.Max.X)/2, (f.Box.Min.Y+f.Box.Max.Y)/2)
}

// Select returns the first available detector. Nil entries are skipped.
func Select(candidates ...Detector) Detector {
	for _, d := range candidates {
		if d != nil {
			slog.Info("face detector selected", "detector", d.Name())
			return d
		}
	}
	slog.Warn("no face detector available")
	return nil
}

// Locator runs the quality gates and the selected detector.
type Locator struct {
	detector   Detector
	frameFloor Floor
	cropFloor  Floor
}

// NewLocator creates a locator around detector. A nil detector locates nothing.
func NewLocator(detector Detector, frameFloor, cropFloor Floor) *Locator {
	return &Locator{
		detector:   detector,
		frameFloor: frameFloor,
		cropFloor:  cropFloor,
	}
}

// Detector returns the detector chosen for this locator.
func (l *Locator) Detector() Detector {
	return l.detector
}

// Locate returns the largest face in img. It reports false when the frame is
// too dark or flat, no face is found, or the face crop fails its own gate.
func (l *Locator) Locate(img *image.RGBA) (face Face, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("face locator panic", "panic", fmt.Sprint(r))
			face, ok = Face{}, false
		}
	}()

	if img == nil || l.detector == nil {
		return Face{}, false
	}

	if !l.frameFloor.Passes(img) {
		slog.Debug("frame rejected by quality gate")
		return Face{}, false
	}

	detections, err := l.detector.Detect(img)
	if err != nil {
		slog.Warn("face detection failed", "detector", l.detector.Name(), "error", err)
		return Face{}, false
	}

	best, found := Largest(detections)
	if !found {
		return Face{}, false
	}

	box := best.Box.Canon().Intersect(img.Bounds())
	if box.Empty() {
		return Face{}, false
	}

	var crop *image.RGBA
	if best.Aligned != nil {
		crop = imageio.ToRGBA(best.Aligned)
	} else {
		crop = imageio.Crop(img, box)
	}

	if !l.cropFloor.Passes(crop) {
		slog.Debug("face crop rejected by quality gate", "box", box)
		return Face{}, false
	}

	return Face{
		Box:      box,
		Crop:     crop,
		Score:    best.Score,
		Detector: l.detector.Name(),
	}, true
}

// Largest returns the detection with the biggest box area.
// Ties keep the earliest detection.
func Largest(detections []Detection) (Detection, bool) {
	var best Detection
	bestArea := -1
	for _, d := range detections {
		b := d.Box.Canon()
		area := b.Dx() * b.Dy()
		if area > bestArea {
			best = d
			bestArea = area
		}
	}
	return best, bestArea > 0
}
