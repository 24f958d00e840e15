package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"gocv.io/x/gocv"
)

// SFaceID is the generator id of SFace embeddings.
const SFaceID = "sface-128"

const (
	sfaceInput = 112
	sfaceDim   = 128
)

// SFaceEmbedder computes face embeddings with the SFace ONNX model.
// Inputs are expected to be located, preferably aligned, face crops.
type SFaceEmbedder struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewSFaceEmbedder loads the model and runs one blank forward pass so the
// first real request does not pay the initialization cost.
func NewSFaceEmbedder(modelPath string) (*SFaceEmbedder, error) {
	if modelPath == "" {
		return nil, errors.New("SFace model path is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("SFace model: %w", err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("loading SFace model %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	e := &SFaceEmbedder{net: net}

	blank := gocv.NewMatWithSize(sfaceInput, sfaceInput, gocv.MatTypeCV8UC3)
	defer blank.Close()
	if _, err := e.forward(blank); err != nil {
		net.Close()
		return nil, fmt.Errorf("warming up SFace model: %w", err)
	}
	return e, nil
}

// ID returns the generator id.
func (e *SFaceEmbedder) ID() string {
	return SFaceID
}

// Dim returns the embedding length.
func (e *SFaceEmbedder) Dim() int {
	return sfaceDim
}

// Embed computes the L2-normalized embedding of a face crop.
func (e *SFaceEmbedder) Embed(face image.Image) (embedding.Embedding, error) {
	if face == nil || face.Bounds().Empty() {
		return embedding.Embedding{}, errors.New("empty face crop")
	}
	mat, err := gocv.ImageToMatRGB(face)
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("converting face crop: %w", err)
	}
	defer mat.Close()

	vec, err := e.forward(mat)
	if err != nil {
		return embedding.Embedding{}, err
	}
	embedding.Normalize(vec)

	emb := embedding.Embedding{Generator: SFaceID, Vector: vec}
	if !emb.Valid() {
		return embedding.Embedding{}, errors.New("SFace produced an invalid vector")
	}
	return emb, nil
}

// forward resizes to the model input, swaps BGR to RGB and returns a copy of the output.
func (e *SFaceEmbedder) forward(mat gocv.Mat) ([]float32, error) {
	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(sfaceInput, sfaceInput), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading SFace output: %w", err)
	}
	if len(data) != sfaceDim {
		return nil, fmt.Errorf("SFace output has %d values, expected %d", len(data), sfaceDim)
	}
	return append([]float32(nil), data...), nil
}

// Close releases the model.
func (e *SFaceEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.net.Close(); err != nil {
		return fmt.Errorf("closing SFace model: %w", err)
	}
	return nil
}
