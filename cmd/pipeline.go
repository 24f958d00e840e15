package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/opencv"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// pipeline holds everything a command needs to identify and enroll.
type pipeline struct {
	cfg       *config.Config
	service   *recognition.Service
	store     gallery.Store
	directory database.IdentityDirectory
	recorder  database.AttendanceRecorder
	camera    *camera.Worker // nil unless requested
	closers   []io.Closer
}

// initDatabase connects to PostgreSQL and registers the repositories.
func initDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if database.IsInitialized() {
		return nil
	}

	slog.Info("connecting to PostgreSQL")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	pool := postgres.GetGlobalPool()
	identityRepo := postgres.NewIdentityRepository(pool)
	attendanceRepo := postgres.NewAttendanceRepository(pool)
	database.RegisterPostgresBackend(
		func() database.IdentityDirectory { return identityRepo },
		func() database.AttendanceRecorder { return attendanceRepo },
		pool,
	)
	return nil
}

// buildStore returns the embedding store for the configured backend. Saved
// references of either backend stay loadable.
func buildStore(cfg *config.Config) (gallery.Store, error) {
	files, err := gallery.NewFileStore(cfg.Storage.EncodingDir)
	if err != nil {
		return nil, err
	}
	vectors := postgres.NewEmbeddingStore(postgres.GetGlobalPool())

	var write gallery.Store
	switch cfg.Storage.Backend {
	case config.BackendFile, "":
		write = files
	case config.BackendPostgres:
		write = vectors
	default:
		return nil, fmt.Errorf("unknown GALLERY_BACKEND %q (use %s or %s)", cfg.Storage.Backend, config.BackendFile, config.BackendPostgres)
	}
	slog.Info("embedding store selected", "backend", cfg.Storage.Backend)
	return gallery.NewRouter(write, map[string]gallery.Store{postgres.RefPrefix: vectors}, files), nil
}

// buildDetector tries the detectors in order of preference.
func (p *pipeline) buildDetector() facedetect.Detector {
	var candidates []facedetect.Detector
	if path := p.cfg.Models.Detector; path != "" {
		if d, err := opencv.NewYuNetDetector(path, p.cfg.Models.DetectorScore); err != nil {
			slog.Warn("YuNet detector unavailable", "model", path, "error", err)
		} else {
			candidates = append(candidates, d)
			p.closers = append(p.closers, d)
		}
	}
	if path := p.cfg.Models.Cascade; path != "" {
		if d, err := opencv.NewCascadeDetector(path); err != nil {
			slog.Warn("cascade detector unavailable", "cascade", path, "error", err)
		} else {
			candidates = append(candidates, d)
			p.closers = append(p.closers, d)
		}
	}
	return facedetect.Select(candidates...)
}

// buildGenerator prefers the SFace network and falls back to HOG.
func (p *pipeline) buildGenerator() embedding.Generator {
	var candidates []embedding.Generator
	if path := p.cfg.Models.Embedder; path != "" {
		if e, err := opencv.NewSFaceEmbedder(path); err != nil {
			slog.Warn("SFace embedder unavailable, falling back", "model", path, "error", err)
		} else {
			candidates = append(candidates, e)
			p.closers = append(p.closers, e)
		}
	}
	candidates = append(candidates, embedding.NewHOG())
	return embedding.Select(candidates...)
}

// newPipeline builds the recognition service. With withCamera set the
// camera worker is created but not started.
func newPipeline(ctx context.Context, cfg *config.Config, withCamera bool) (*pipeline, error) {
	if err := initDatabase(cfg); err != nil {
		return nil, err
	}
	directory, err := database.GetIdentityDirectory(ctx)
	if err != nil {
		return nil, err
	}
	recorder, err := database.GetAttendanceRecorder(ctx)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	thumbnails, err := gallery.NewThumbnails(cfg.Storage.ImageDir)
	if err != nil {
		return nil, err
	}

	p := &pipeline{cfg: cfg, store: store, directory: directory, recorder: recorder}

	q := cfg.Recognition.Quality
	locator := facedetect.NewLocator(
		p.buildDetector(),
		facedetect.Floor{Mean: q.Frame.Mean, Std: q.Frame.Std},
		facedetect.Floor{Mean: q.Crop.Mean, Std: q.Crop.Std},
	)

	deps := recognition.Deps{
		Locator:    locator,
		Generator:  p.buildGenerator(),
		Store:      store,
		Thumbnails: thumbnails,
		Directory:  directory,
	}
	if withCamera {
		p.camera = camera.NewWorker(opencv.OpenCamera, camera.Options{
			DeviceIndex: cfg.Camera.DeviceIndex,
			FPS:         cfg.Camera.FPS,
			Width:       cfg.Camera.Width,
			Height:      cfg.Camera.Height,
		})
		deps.Camera = p.camera
	}

	rc := cfg.Recognition
	p.service = recognition.NewService(deps, recognition.Options{
		GuideWidth:  rc.Guide.Width,
		GuideHeight: rc.Guide.Height,
		SizeLimits: facematch.SizeLimits{
			MinRatio: rc.Guidance.MinFaceRatio,
			MaxRatio: rc.Guidance.MaxFaceRatio,
		},
		Tolerance: func(generator string) float64 {
			return rc.ToleranceFor(generator, constants.DefaultTolerance)
		},
	})
	return p, nil
}

// Close stops the camera and releases native resources.
func (p *pipeline) Close() {
	if p.camera != nil {
		p.camera.Stop()
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			slog.Warn("closing resource failed", "error", err)
		}
	}
	if pool := postgres.GetGlobalPool(); pool != nil {
		if err := pool.Close(); err != nil {
			slog.Warn("closing database failed", "error", err)
		}
	}
}
