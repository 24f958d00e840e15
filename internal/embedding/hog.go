package embedding

import (
	"errors"
	"image"
	"math"

	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// HOGID is the generator id of the histogram-of-oriented-gradients descriptor.
const HOGID = "hog-512"

// HOG descriptor geometry
const (
	hogWindow = 128
	hogBlock  = 16
	hogStride = 8
	hogCell   = 8
	hogBins   = 9
	hogDim    = 512

	hogClip = 0.2 // L2-Hys clipping
)

// HOG is a deterministic descriptor that needs no model files. It is the
// fallback when the learned embedder cannot be loaded.
type HOG struct{}

// NewHOG creates the HOG generator.
func NewHOG() *HOG {
	return &HOG{}
}

func (h *HOG) ID() string { return HOGID }

func (h *HOG) Dim() int { return hogDim }

// Embed resizes the crop to the canonical window, equalizes it and returns the
// L2-normalized descriptor fitted to 512 values.
func (h *HOG) Embed(face image.Image) (Embedding, error) {
	if face == nil || face.Bounds().Empty() {
		return Embedding{}, errors.New("empty face crop")
	}

	resized := imageio.ResizeTo(face, hogWindow, hogWindow)
	gray := imageio.Gray(resized)
	EqualizeHist(gray)

	desc := hogDescriptor(gray)
	Normalize(desc)

	return Embedding{Generator: HOGID, Vector: FitDim(desc, hogDim)}, nil
}

// EqualizeHist spreads the intensity histogram of g over the full range, in place.
func EqualizeHist(g *image.Gray) {
	var hist [256]int
	total := 0
	b := g.Bounds()
	for y := range b.Dy() {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, p := range row {
			hist[p]++
		}
		total += b.Dx()
	}

	var cdf [256]int
	sum := 0
	for i, c := range hist {
		sum += c
		cdf[i] = sum
	}

	cdfMin := 0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}
	if total == cdfMin {
		return // single intensity
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-cdfMin)
	for i := range lut {
		v := math.Round(float64(cdf[i]-cdfMin) * scale)
		lut[i] = uint8(max(0, min(255, v)))
	}

	for y := range b.Dy() {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for x, p := range row {
			row[x] = lut[p]
		}
	}
}

// hogDescriptor computes the descriptor of a hogWindow x hogWindow image.
func hogDescriptor(g *image.Gray) []float32 {
	size := hogWindow
	at := func(x, y int) float64 {
		x = max(0, min(size-1, x))
		y = max(0, min(size-1, y))
		return float64(g.Pix[y*g.Stride+x])
	}

	cells := size / hogCell
	hist := make([]float64, cells*cells*hogBins)
	binWidth := 180.0 / hogBins

	for y := range size {
		for x := range size {
			gx := at(x+1, y) - at(x-1, y)
			gy := at(x, y+1) - at(x, y-1)
			mag := math.Hypot(gx, gy)
			if mag == 0 {
				continue
			}
			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			if angle >= 180 {
				angle -= 180
			}

			pos := angle/binWidth - 0.5
			b0 := int(math.Floor(pos))
			frac := pos - float64(b0)
			b1 := b0 + 1
			b0 = (b0 + hogBins) % hogBins
			b1 %= hogBins

			base := ((y/hogCell)*cells + x/hogCell) * hogBins
			hist[base+b0] += mag * (1 - frac)
			hist[base+b1] += mag * frac
		}
	}

	cellsPerBlock := hogBlock / hogCell
	cellStride := hogStride / hogCell
	blocks := (size-hogBlock)/hogStride + 1
	blockLen := cellsPerBlock * cellsPerBlock * hogBins

	out := make([]float32, 0, blocks*blocks*blockLen)
	block := make([]float64, blockLen)
	for by := range blocks {
		for bx := range blocks {
			i := 0
			for cy := range cellsPerBlock {
				for cx := range cellsPerBlock {
					cell := ((by*cellStride+cy)*cells + bx*cellStride + cx) * hogBins
					copy(block[i:i+hogBins], hist[cell:cell+hogBins])
					i += hogBins
				}
			}
			l2Hys(block)
			for _, v := range block {
				out = append(out, float32(v))
			}
		}
	}
	return out
}

// l2Hys normalizes v, clips it and normalizes again.
func l2Hys(v []float64) {
	normalize := func() {
		var sum float64
		for _, x := range v {
			sum += x * x
		}
		n := math.Sqrt(sum) + 1e-3
		for i := range v {
			v[i] /= n
		}
	}
	normalize()
	for i := range v {
		v[i] = min(v[i], hogClip)
	}
	normalize()
}
