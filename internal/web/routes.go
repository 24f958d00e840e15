package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	d := s.deps

	// Create handlers
	healthHandler := handlers.NewHealthHandler(d.Pinger, d.Camera)
	identifyHandler := handlers.NewIdentifyHandler(d.Service, d.Recorder)
	enrollHandler := handlers.NewEnrollHandler(d.Service)
	identitiesHandler := handlers.NewIdentitiesHandler(d.Directory)
	captureHandler := handlers.NewCaptureHandler(d.Camera)
	streamHandler := handlers.NewStreamHandler(d.Camera, d.Service, d.Overlay, d.StreamFPS)
	guideHandler := handlers.NewGuideHandler(d.Camera, d.Service, s.origins.CheckUpgrade)

	s.router.Get("/", handlers.InfoHandler(d.Info))

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams are not subject to the request timeout.
		r.Get("/stream.mjpeg", streamHandler.Stream)
		r.Get("/stream/guide", guideHandler.Guide)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/health", healthHandler.Health)
			r.Get("/capture", captureHandler.Capture)

			// Identification and enrollment
			r.Post("/identify", identifyHandler.Identify)
			r.Post("/enroll", enrollHandler.Enroll)
			r.Post("/enroll/{id}", enrollHandler.Reenroll)

			// Identity directory
			r.Get("/identities", identitiesHandler.List)
			r.Get("/identities/{id}", identitiesHandler.Get)

			// Attendance
			if d.Recorder != nil {
				attendanceHandler := handlers.NewAttendanceHandler(d.Recorder)
				r.Post("/attendance", attendanceHandler.Record)
				r.Get("/attendance/{id}", attendanceHandler.Recent)
			}
		})
	})
}
