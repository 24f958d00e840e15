package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"gocv.io/x/gocv"
)

const (
	yunetNMSThreshold = 0.3
	yunetTopK         = 5000

	cascadeScale        = 1.1
	cascadeMinNeighbors = 5
	cascadeMinFace      = 30
)

// YuNetDetector detects faces with the YuNet ONNX model and produces crops
// aligned on the eye landmarks.
type YuNetDetector struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
	size     image.Point
}

// NewYuNetDetector loads the YuNet model at modelPath.
func NewYuNetDetector(modelPath string, scoreThreshold float64) (*YuNetDetector, error) {
	if modelPath == "" {
		return nil, errors.New("YuNet model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("YuNet model: %w", err)
	}

	initial := image.Pt(320, 320)
	detector := gocv.NewFaceDetectorYNWithParams(
		modelPath,
		"",
		initial,
		float32(scoreThreshold),
		yunetNMSThreshold,
		yunetTopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNetDetector{detector: detector, size: initial}, nil
}

// Name identifies the detector in logs.
func (d *YuNetDetector) Name() string {
	return "yunet"
}

// Detect returns every face with its eye-aligned crop.
func (d *YuNetDetector) Detect(img *image.RGBA) ([]facedetect.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("converting image: %w", err)
	}
	defer mat.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	d.mu.Lock()
	size := image.Pt(mat.Cols(), mat.Rows())
	if size != d.size {
		d.detector.SetInputSize(size)
		d.size = size
	}
	d.detector.Detect(mat, &faces)
	d.mu.Unlock()

	// Each row: x, y, w, h, five landmark pairs starting with the eyes, score.
	origin := img.Bounds().Min
	detections := make([]facedetect.Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		at := func(c int) float64 { return float64(faces.GetFloatAt(r, c)) }

		box := image.Rect(int(at(0)), int(at(1)), int(at(0)+at(2)), int(at(1)+at(3))).Add(origin)
		eyes := facedetect.Eyes{
			Left:  [2]float64{at(4) + float64(origin.X), at(5) + float64(origin.Y)},
			Right: [2]float64{at(6) + float64(origin.X), at(7) + float64(origin.Y)},
		}

		det := facedetect.Detection{Box: box, Score: at(14)}
		if aligned := facedetect.AlignByEyes(img, eyes, facedetect.AlignedSize); aligned != nil {
			det.Aligned = aligned
		}
		detections = append(detections, det)
	}
	return detections, nil
}

// Close releases the model.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

// CascadeDetector detects faces with a Haar cascade. It produces no aligned crop.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	if path == "" {
		return nil, errors.New("cascade path is empty")
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("loading cascade %s", path)
	}
	return &CascadeDetector{classifier: classifier, minSize: image.Pt(cascadeMinFace, cascadeMinFace)}, nil
}

// Name identifies the detector in logs.
func (d *CascadeDetector) Name() string {
	return "haar"
}

// Detect returns the face boxes found on the equalized grayscale frame.
func (d *CascadeDetector) Detect(img *image.RGBA) ([]facedetect.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("converting image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(
		gray,
		cascadeScale,
		cascadeMinNeighbors,
		0,
		d.minSize,
		image.Pt(0, 0),
	)
	d.mu.Unlock()

	origin := img.Bounds().Min
	detections := make([]facedetect.Detection, 0, len(rects))
	for _, r := range rects {
		detections = append(detections, facedetect.Detection{Box: r.Add(origin), Score: 1})
	}
	return detections, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.classifier.Close(); err != nil {
		return fmt.Errorf("closing cascade: %w", err)
	}
	return nil
}
