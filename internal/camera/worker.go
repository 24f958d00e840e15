// Package camera runs a background capture loop that keeps the newest frame
// from a video device in a single-slot mailbox.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// Device is an open video capture handle.
// Read returns a freshly allocated frame that the caller owns.
type Device interface {
	Read() (*image.RGBA, error)
	Close() error
}

// Opener opens the capture device with the given index.
type Opener func(index, width, height int) (Device, error)

// ErrNoFrame is returned when no frame is available yet or the last read failed.
var ErrNoFrame = errors.New("no frame available")

// Options configures a Worker.
type Options struct {
	DeviceIndex int
	FPS         int
	Width       int
	Height      int
	ReadBackoff time.Duration // pause after a failed read
	JoinTimeout time.Duration // how long Stop waits for the loop to exit
}

func (o *Options) setDefaults() {
	if o.FPS <= 0 {
		o.FPS = 20
	}
	if o.ReadBackoff <= 0 {
		o.ReadBackoff = 100 * time.Millisecond
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 2 * time.Second
	}
}

// Worker owns one capture device and publishes its frames.
type Worker struct {
	open Opener
	opts Options

	// lifecycle, guarded by lifeMu
	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// mailbox, guarded by mu; published images are never mutated.
	// gen identifies the loop allowed to publish.
	mu         sync.Mutex
	gen        uint64
	latest     *image.RGBA
	capturedAt time.Time
	lastErr    error
}

// NewWorker creates a stopped worker.
func NewWorker(open Opener, opts Options) *Worker {
	opts.setDefaults()
	return &Worker{open: open, opts: opts}
}

// Start opens the device and launches the capture loop.
// Calling Start on a running worker does nothing.
func (w *Worker) Start(ctx context.Context) error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.running() {
		return nil
	}
	if w.cancel != nil {
		// loop ended with its parent context and released its device
		w.cancel()
		w.cancel = nil
	}

	dev, err := w.open(w.opts.DeviceIndex, w.opts.Width, w.opts.Height)
	if err != nil {
		err = fmt.Errorf("opening camera %d: %w", w.opts.DeviceIndex, err)
		w.setError(err)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.setError(nil)

	go w.loop(loopCtx, w.nextGeneration(), dev, done)

	slog.Info("camera worker started", "device", w.opts.DeviceIndex, "fps", w.opts.FPS)
	return nil
}

// Stop cancels the capture loop and waits for it with a bounded timeout.
// The loop releases the device on exit, so a loop stuck in a device read
// keeps its device until the read returns. It is safe to call more than once.
func (w *Worker) Stop() {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()

	select {
	case <-w.done:
	case <-time.After(w.opts.JoinTimeout):
		slog.Warn("camera loop did not exit in time, device is released when it does",
			"timeout", w.opts.JoinTimeout)
	}

	w.cancel = nil
	w.retire()
	slog.Info("camera worker stopped")
}

// IsAlive reports whether the capture loop is running.
func (w *Worker) IsAlive() bool {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	return w.running()
}

// running must be called with lifeMu held.
func (w *Worker) running() bool {
	if w.cancel == nil || w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// LatestFrame returns a copy of the newest frame and its capture time.
// The boolean is false when no frame is available.
func (w *Worker) LatestFrame() (*image.RGBA, time.Time, bool) {
	w.mu.Lock()
	frame, at := w.latest, w.capturedAt
	w.mu.Unlock()

	if frame == nil {
		return nil, time.Time{}, false
	}
	return imageio.Clone(frame), at, true
}

// LastError returns the most recent open or read error, if any.
func (w *Worker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// nextGeneration retires the current loop's right to publish.
func (w *Worker) nextGeneration() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	return w.gen
}

// retire stops the current loop from publishing and empties the mailbox.
func (w *Worker) retire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.latest = nil
	w.capturedAt = time.Time{}
}

// publish stores the outcome of one read unless gen has been retired.
func (w *Worker) publish(gen uint64, frame *image.RGBA, at time.Time, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return
	}
	w.latest = frame
	w.capturedAt = at
	w.lastErr = err
}

func (w *Worker) setError(err error) {
	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
}

// loop owns dev and closes it before signalling done.
func (w *Worker) loop(ctx context.Context, gen uint64, dev Device, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Warn("closing camera device", "error", err)
		}
	}()

	interval := time.Second / time.Duration(w.opts.FPS)

	for {
		if ctx.Err() != nil {
			return
		}

		started := time.Now()
		frame, err := dev.Read()
		if ctx.Err() != nil {
			// stopped while reading; a newer loop may own the mailbox
			return
		}
		if err != nil || frame == nil {
			if err == nil {
				err = ErrNoFrame
			}
			w.publish(gen, nil, time.Time{}, fmt.Errorf("reading frame: %w", err))
			if !sleep(ctx, w.opts.ReadBackoff) {
				return
			}
			continue
		}

		w.publish(gen, frame, time.Now(), nil)

		if !sleep(ctx, interval-time.Since(started)) {
			return
		}
	}
}

// sleep waits for d or until ctx is done. It reports false when ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
