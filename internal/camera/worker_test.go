package camera

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// markerDevice produces frames where every pixel carries the frame number.
type markerDevice struct {
	seq    atomic.Uint32
	closed atomic.Bool
	fail   atomic.Bool
}

func (d *markerDevice) Read() (*image.RGBA, error) {
	if d.closed.Load() {
		return nil, errors.New("device closed")
	}
	if d.fail.Load() {
		return nil, errors.New("read failed")
	}
	n := uint8(d.seq.Add(1))
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = n
	}
	return img, nil
}

func (d *markerDevice) Close() error {
	d.closed.Store(true)
	return nil
}

func testOpener(devices *[]*markerDevice, mu *sync.Mutex) Opener {
	return func(index, width, height int) (Device, error) {
		mu.Lock()
		defer mu.Unlock()
		d := &markerDevice{}
		*devices = append(*devices, d)
		return d, nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestWorker() (*Worker, *[]*markerDevice) {
	var devices []*markerDevice
	var mu sync.Mutex
	w := NewWorker(testOpener(&devices, &mu), Options{
		FPS:         200,
		ReadBackoff: 5 * time.Millisecond,
		JoinTimeout: time.Second,
	})
	return w, &devices
}

func TestWorker_StartPublishesFrames(t *testing.T) {
	w, _ := newTestWorker()

	if _, _, ok := w.LatestFrame(); ok {
		t.Fatal("expected no frame before start")
	}
	if w.IsAlive() {
		t.Fatal("expected worker not alive before start")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.Stop()

	if !w.IsAlive() {
		t.Error("expected worker alive after start")
	}
	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})
}

func TestWorker_ConcurrentReadsAreConsistent(t *testing.T) {
	w, _ := newTestWorker()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				frame, _, ok := w.LatestFrame()
				if !ok {
					continue
				}
				marker := frame.Pix[0]
				for _, p := range frame.Pix {
					if p != marker {
						errs <- "frame contains mixed markers"
						return
					}
				}
				// mutating the copy must not affect other readers
				frame.Pix[0] ^= 0xff
			}
		}()
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}

func TestWorker_StopIsIdempotentAndRestartable(t *testing.T) {
	w, devices := newTestWorker()

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	w.Stop()
	w.Stop()

	if w.IsAlive() {
		t.Error("expected worker not alive after stop")
	}
	if _, _, ok := w.LatestFrame(); ok {
		t.Error("expected no frame after stop")
	}
	if !(*devices)[0].closed.Load() {
		t.Error("expected device to be closed")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer w.Stop()

	if !w.IsAlive() {
		t.Error("expected worker alive after restart")
	}
	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})
	if len(*devices) != 2 {
		t.Errorf("expected device to be reopened, got %d opens", len(*devices))
	}
}

func TestWorker_ReadFailureInvalidatesFrame(t *testing.T) {
	w, devices := newTestWorker()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})

	(*devices)[0].fail.Store(true)
	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return !ok
	})
	if w.LastError() == nil {
		t.Error("expected last error after read failure")
	}
	if !w.IsAlive() {
		t.Error("read failure must not stop the loop")
	}

	(*devices)[0].fail.Store(false)
	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})
}

func TestWorker_OpenFailure(t *testing.T) {
	w := NewWorker(func(index, width, height int) (Device, error) {
		return nil, errors.New("no such device")
	}, Options{})

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail")
	}
	if w.IsAlive() {
		t.Error("expected worker not alive")
	}
	if w.LastError() == nil {
		t.Error("expected last error to be recorded")
	}
	w.Stop()
}

func TestWorker_ParentContextCancelStopsLoop(t *testing.T) {
	w, _ := newTestWorker()
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	waitFor(t, func() bool { return !w.IsAlive() })

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart after cancel failed: %v", err)
	}
	defer w.Stop()
	if !w.IsAlive() {
		t.Error("expected worker alive after restart")
	}
}

// stuckDevice blocks in Read until released and returns an 8x8 frame.
type stuckDevice struct {
	entered     chan struct{}
	release     chan struct{}
	closed      atomic.Bool
	closedInUse atomic.Bool
	reading     atomic.Bool
}

func newStuckDevice() *stuckDevice {
	return &stuckDevice{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (d *stuckDevice) Read() (*image.RGBA, error) {
	d.reading.Store(true)
	defer d.reading.Store(false)
	select {
	case d.entered <- struct{}{}:
	default:
	}
	<-d.release
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (d *stuckDevice) Close() error {
	if d.reading.Load() {
		d.closedInUse.Store(true)
	}
	d.closed.Store(true)
	return nil
}

func TestWorker_StopTimeoutLeavesDeviceToLoop(t *testing.T) {
	stuck := newStuckDevice()
	fresh := &markerDevice{}
	opens := 0
	w := NewWorker(func(index, width, height int) (Device, error) {
		opens++
		if opens == 1 {
			return stuck, nil
		}
		return fresh, nil
	}, Options{FPS: 200, ReadBackoff: 5 * time.Millisecond, JoinTimeout: 20 * time.Millisecond})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-stuck.entered

	w.Stop()
	if stuck.closed.Load() {
		t.Fatal("device closed while a read was in progress")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer w.Stop()
	waitFor(t, func() bool {
		_, _, ok := w.LatestFrame()
		return ok
	})

	close(stuck.release)
	waitFor(t, stuck.closed.Load)
	if stuck.closedInUse.Load() {
		t.Error("device closed during a read")
	}

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if frame, _, ok := w.LatestFrame(); ok && frame.Bounds().Dx() == 8 {
			t.Fatal("stopped loop published a stale frame")
		}
		time.Sleep(time.Millisecond)
	}
}
