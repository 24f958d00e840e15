package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/opencv"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The server captures frames from the camera, streams them with a placement
guide and exposes identification, enrollment and attendance endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8000)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("no-camera", false, "Run without a camera (upload mode only)")
}

// resolveServeHostPort lets flags override the configured address.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (string, int) {
	host, port := cfg.Web.Host, cfg.Web.Port
	if h := mustGetString(cmd, "host"); h != "" {
		host = h
	}
	if p := mustGetInt(cmd, "port"); p > 0 {
		port = p
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if mustGetBool(cmd, "no-camera") {
		cfg.Camera.Enabled = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := newPipeline(ctx, cfg, cfg.Camera.Enabled)
	if err != nil {
		return err
	}
	defer p.Close()

	deps := web.ServerDeps{
		Service:   p.service,
		Directory: p.directory,
		Recorder:  p.recorder,
		Pinger:    database.GetPinger(),
		StreamFPS: cfg.Camera.FPS,
		Info: handlers.ServiceInfo{
			Name:      "face-attendance",
			Version:   Version,
			Generator: p.service.GeneratorID(),
			Detector:  p.service.DetectorName(),
		},
	}
	deps.AllowedOrigins = cfg.Web.AllowedOrigins
	if p.camera != nil {
		// A camera that fails to open is reported as unavailable by /health.
		if err := p.camera.Start(ctx); err != nil {
			slog.Error("camera failed to start", "device", cfg.Camera.DeviceIndex, "error", err)
		}
		deps.Camera = p.camera
		deps.Overlay = opencv.NewAnnotator()
	} else {
		slog.Info("camera disabled, upload mode only")
	}

	host, port := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(deps, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		daemon.SdNotify(false, daemon.SdNotifyStopping)

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("sd_notify failed", "error", err)
	} else if sent {
		slog.Debug("notified systemd of readiness")
	}

	fmt.Printf("Starting Face Attendance on http://%s\n", server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
