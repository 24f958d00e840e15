package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageio"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// IdentifyCamera identifies the newest camera frame.
func (s *Service) IdentifyCamera(ctx context.Context) IdentifyResult {
	cam := s.deps.Camera
	if cam == nil || !cam.IsAlive() {
		slog.Warn("identify: camera not running")
		return identifyFailure(constants.ReasonCameraUnavailable)
	}
	frame, _, ok := cam.LatestFrame()
	if !ok {
		slog.Warn("identify: no camera frame available")
		return identifyFailure(constants.ReasonCameraUnavailable)
	}
	return s.IdentifyFrame(ctx, frame)
}

// IdentifyUpload decodes an uploaded image and identifies it.
func (s *Service) IdentifyUpload(ctx context.Context, data []byte) IdentifyResult {
	img, ok := prepareUpload(data)
	if !ok {
		return identifyFailure(constants.ReasonBadQuality)
	}
	return s.IdentifyFrame(ctx, img)
}

// prepareUpload decodes, checks the minimum size and bounds the image size.
func prepareUpload(data []byte) (*image.RGBA, bool) {
	img, err := imageio.Decode(data)
	if err != nil {
		slog.Info("upload rejected", "error", err)
		return nil, false
	}
	if !imageio.ValidateMinSize(img, constants.MinImageWidth, constants.MinImageHeight) {
		slog.Info("upload rejected: image too small", "size", img.Bounds().Size())
		return nil, false
	}
	return imageio.Resize(img, constants.MaxImageWidth, constants.MaxImageHeight), true
}

// IdentifyFrame runs locate, admit, embed, match and decide on one frame.
// It always returns a complete result; faults map to internal_error.
func (s *Service) IdentifyFrame(ctx context.Context, img *image.RGBA) (result IdentifyResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("identify panic", "panic", fmt.Sprint(r))
			result = identifyFailure(constants.ReasonInternalError)
		}
	}()

	log := slog.With("op", "identify")
	log.Debug("state", "state", "start")

	face, ok := s.locate(img)
	if !ok {
		log.Info("identify failed", "reason", constants.ReasonNoFace)
		return identifyFailure(constants.ReasonNoFace)
	}
	log.Debug("state", "state", "located", "box", face.Box, "detector", face.Detector)

	guide := s.Guide(img.Bounds())
	if !guide.Admits(face.Box) {
		log.Info("identify failed", "reason", constants.ReasonOutOfArea,
			"center", face.Center(), "distance", guide.NormalizedDistance(face.Center()))
		return identifyFailure(constants.ReasonOutOfArea)
	}
	log.Debug("state", "state", "admitted")

	probe, err := s.embed(face)
	if err != nil {
		log.Warn("identify failed", "reason", constants.ReasonBadQuality, "error", err)
		return identifyFailure(constants.ReasonBadQuality)
	}
	log.Debug("state", "state", "embedded", "generator", probe.Generator)

	entries, err := s.deps.Directory.ListIdentitiesWithEmbedding(ctx)
	if err != nil {
		log.Error("listing gallery failed", "error", err)
		return identifyFailure(constants.ReasonInternalError)
	}

	match, found, err := s.matcher.Best(ctx, probe, entries)
	if err != nil {
		log.Warn("gallery scan interrupted", "reason", constants.ReasonInternalError, "error", err)
		return identifyFailure(constants.ReasonInternalError)
	}
	if !found {
		log.Info("identify failed", "reason", constants.ReasonUnknown, "gallery", len(entries))
		return identifyFailure(constants.ReasonUnknown)
	}
	log.Debug("state", "state", "matched", "employee_id", match.IdentityID, "distance", match.Distance)

	threshold := s.opts.Tolerance(probe.Generator)
	distance := match.Distance
	if !matcher.Decide(match, threshold) {
		log.Info("identify failed", "reason", constants.ReasonUnknown, "min_distance", distance, "threshold", threshold)
		result = identifyFailure(constants.ReasonUnknown)
		result.Distance = &distance
		result.Threshold = threshold
		return result
	}

	log.Info("identified", "employee_id", match.IdentityID, "distance", distance, "threshold", threshold)
	return IdentifyResult{
		Success:    true,
		IdentityID: match.IdentityID,
		Name:       match.Name,
		Distance:   &distance,
		Threshold:  threshold,
		Message:    "identified",
	}
}
