// Package recognition orchestrates identification and enrollment: it locates
// a face, gates it on the admission guide, embeds it and matches it against
// the gallery.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

var errNoGenerator = errors.New("no embedding generator available")

// FrameSource provides the newest camera frame.
type FrameSource interface {
	IsAlive() bool
	LatestFrame() (*image.RGBA, time.Time, bool)
}

// ThumbnailStore persists profile pictures.
type ThumbnailStore interface {
	Save(ctx context.Context, identityID string, img *image.RGBA) (string, error)
}

// Deps are the collaborators of a Service. Camera may be nil.
type Deps struct {
	Locator    *facedetect.Locator
	Generator  embedding.Generator
	Store      gallery.Store
	Thumbnails ThumbnailStore
	Directory  database.IdentityDirectory
	Camera     FrameSource
}

// Options tune the pipeline policy.
type Options struct {
	GuideWidth  float64 // admission ellipse width as a fraction of the frame
	GuideHeight float64
	SizeLimits  facematch.SizeLimits
	// Tolerance returns the accept threshold for a generator id.
	Tolerance func(generator string) float64
}

func (o *Options) setDefaults() {
	if o.GuideWidth <= 0 {
		o.GuideWidth = facematch.DefaultGuideWidth
	}
	if o.GuideHeight <= 0 {
		o.GuideHeight = facematch.DefaultGuideHeight
	}
	if o.SizeLimits == (facematch.SizeLimits{}) {
		o.SizeLimits = facematch.DefaultSizeLimits
	}
	if o.Tolerance == nil {
		o.Tolerance = func(string) float64 { return constants.DefaultTolerance }
	}
}

// Service runs the identification and enrollment pipelines.
type Service struct {
	deps    Deps
	opts    Options
	matcher *matcher.Matcher
}

// NewService wires a Service.
func NewService(deps Deps, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		deps:    deps,
		opts:    opts,
		matcher: matcher.New(deps.Store),
	}
}

// Camera returns the frame source, or nil when running without a camera.
func (s *Service) Camera() FrameSource {
	return s.deps.Camera
}

// Directory returns the identity directory.
func (s *Service) Directory() database.IdentityDirectory {
	return s.deps.Directory
}

// GeneratorID returns the id of the selected embedding generator.
func (s *Service) GeneratorID() string {
	if s.deps.Generator == nil {
		return ""
	}
	return s.deps.Generator.ID()
}

// DetectorName returns the name of the selected face detector.
func (s *Service) DetectorName() string {
	if s.deps.Locator == nil || s.deps.Locator.Detector() == nil {
		return ""
	}
	return s.deps.Locator.Detector().Name()
}

// Guide returns the admission ellipse for a frame.
func (s *Service) Guide(frame image.Rectangle) facematch.Guide {
	return facematch.NewGuide(frame, s.opts.GuideWidth, s.opts.GuideHeight)
}

// Assess runs the detector on a frame and classifies face placement for the
// live guidance overlay. Detector failures read as no face.
func (s *Service) Assess(frame *image.RGBA) (guide facematch.Guide, g facematch.Guidance) {
	guide = s.Guide(frame.Bounds())
	defer func() {
		if r := recover(); r != nil {
			slog.Error("guidance detector panic", "panic", fmt.Sprint(r))
			g = facematch.Assess(frame.Bounds(), guide, nil, s.opts.SizeLimits)
		}
	}()

	var boxes []image.Rectangle
	if s.deps.Locator != nil && s.deps.Locator.Detector() != nil {
		detections, err := s.deps.Locator.Detector().Detect(frame)
		if err != nil {
			slog.Debug("guidance detection failed", "error", err)
		}
		for _, d := range detections {
			boxes = append(boxes, d.Box)
		}
	}
	return guide, facematch.Assess(frame.Bounds(), guide, boxes, s.opts.SizeLimits)
}

// embed runs the selected generator on a located face.
func (s *Service) embed(face facedetect.Face) (embedding.Embedding, error) {
	if s.deps.Generator == nil {
		return embedding.Embedding{}, errNoGenerator
	}
	emb, err := s.deps.Generator.Embed(face.Crop)
	if err != nil {
		return embedding.Embedding{}, err
	}
	if !emb.Valid() {
		return embedding.Embedding{}, fmt.Errorf("generator %s produced an invalid embedding", s.deps.Generator.ID())
	}
	return emb, nil
}

// locate runs the face locator, or reports nothing when none is configured.
func (s *Service) locate(img *image.RGBA) (facedetect.Face, bool) {
	if s.deps.Locator == nil {
		return facedetect.Face{}, false
	}
	return s.deps.Locator.Locate(img)
}
