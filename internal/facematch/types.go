// Package facematch provides face placement geometry shared between the
// identification pipeline, the live stream and the CLI.
package facematch

import (
	"image"
)

// GuidanceStatus tells the person in front of the camera what to do.
type GuidanceStatus string

const (
	GuidanceNoFace        GuidanceStatus = "no_face"        // No face inside the guide area
	GuidanceMultipleFaces GuidanceStatus = "multiple_faces" // More than one face inside the guide area
	GuidanceTooSmall      GuidanceStatus = "too_small"      // Face too far away
	GuidanceTooClose      GuidanceStatus = "too_close"      // Face too close
	GuidanceGood          GuidanceStatus = "good"           // Ready to identify
)

// Hint returns the on-screen text for the status.
func (s GuidanceStatus) Hint() string {
	switch s {
	case GuidanceNoFace:
		return "Move to center circle"
	case GuidanceMultipleFaces:
		return "Only one person allowed"
	case GuidanceTooSmall:
		return "Please move closer"
	case GuidanceTooClose:
		return "Please move back"
	case GuidanceGood:
		return "Look straight ahead"
	}
	return ""
}

// Guidance is the assessment of one frame.
type Guidance struct {
	Status    GuidanceStatus    `json:"status"`
	Hint      string            `json:"hint"`
	FaceRatio float64           `json:"face_ratio"`
	Faces     []image.Rectangle `json:"-"` // faces inside the guide
}

// SizeLimits bounds the acceptable face area relative to the frame.
type SizeLimits struct {
	MinRatio float64
	MaxRatio float64
}

// DefaultSizeLimits are the face size bounds used by the stream overlay.
var DefaultSizeLimits = SizeLimits{MinRatio: 0.05, MaxRatio: 0.40}

// duplicateIoU is the overlap above which two boxes count as the same face.
const duplicateIoU = 0.5

// Assess classifies the faces of a frame against the guide and size limits.
func Assess(frame image.Rectangle, guide Guide, boxes []image.Rectangle, limits SizeLimits) Guidance {
	var inside []image.Rectangle
	for _, b := range boxes {
		if !guide.Admits(b) {
			continue
		}
		dup := false
		for _, kept := range inside {
			if ComputeIoU(kept, b) > duplicateIoU {
				dup = true
				break
			}
		}
		if !dup {
			inside = append(inside, b)
		}
	}

	g := Guidance{Faces: inside}
	switch {
	case len(inside) == 0:
		g.Status = GuidanceNoFace
	case len(inside) > 1:
		g.Status = GuidanceMultipleFaces
	default:
		g.FaceRatio = FaceRatio(inside[0], frame)
		switch {
		case g.FaceRatio < limits.MinRatio:
			g.Status = GuidanceTooSmall
		case g.FaceRatio > limits.MaxRatio:
			g.Status = GuidanceTooClose
		default:
			g.Status = GuidanceGood
		}
	}
	g.Hint = g.Status.Hint()
	return g
}
