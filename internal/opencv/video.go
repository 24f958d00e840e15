package opencv

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/imageio"
	"gocv.io/x/gocv"
)

// VideoDevice is a camera opened through gocv.VideoCapture.
type VideoDevice struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	closed  atomic.Bool
}

// OpenCamera opens the capture device with the given index. It matches camera.Opener.
func OpenCamera(index, width, height int) (camera.Device, error) {
	capture, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("opening camera %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("camera %d is not available", index)
	}
	if width > 0 && height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	return &VideoDevice{capture: capture, frame: gocv.NewMat()}, nil
}

// Read grabs one frame and converts it to RGBA.
func (d *VideoDevice) Read() (*image.RGBA, error) {
	if d.closed.Load() {
		return nil, camera.ErrNoFrame
	}
	if ok := d.capture.Read(&d.frame); !ok || d.frame.Empty() {
		return nil, camera.ErrNoFrame
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return imageio.ToRGBA(img), nil
}

// Close releases the capture device. Subsequent reads fail.
func (d *VideoDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	err := d.capture.Close()
	d.frame.Close()
	if err != nil {
		return fmt.Errorf("closing camera: %w", err)
	}
	return nil
}
