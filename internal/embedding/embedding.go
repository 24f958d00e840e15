// Package embedding turns face crops into fixed-length vectors and compares them.
//
// Every Embedding carries the id of the generator that produced it. Vectors
// from different generators live in different spaces and are never compared.
package embedding

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
)

// ErrIncompatible is returned when two embeddings come from different
// generators or have different dimensions.
var ErrIncompatible = errors.New("incompatible embeddings")

// Embedding is a generator-tagged face descriptor.
type Embedding struct {
	Generator string
	Vector    []float32
}

// Dim returns the vector length.
func (e Embedding) Dim() int {
	return len(e.Vector)
}

// Valid reports whether the embedding has a generator and a non-empty finite vector.
func (e Embedding) Valid() bool {
	if e.Generator == "" || len(e.Vector) == 0 {
		return false
	}
	for _, v := range e.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// Generator produces embeddings from face crops.
type Generator interface {
	// ID identifies the embedding space, e.g. "sface-128".
	ID() string
	Dim() int
	Embed(face image.Image) (Embedding, error)
}

// Compatible reports whether a and b can be compared.
func Compatible(a, b Embedding) bool {
	return a.Generator == b.Generator && len(a.Vector) == len(b.Vector) && len(a.Vector) > 0
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Embedding) (float64, error) {
	if !Compatible(a, b) {
		return 0, fmt.Errorf("%w: %s/%d vs %s/%d", ErrIncompatible,
			a.Generator, len(a.Vector), b.Generator, len(b.Vector))
	}
	var sum float64
	for i := range a.Vector {
		d := float64(a.Vector[i]) - float64(b.Vector[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Normalize scales v to unit L2 length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// FitDim pads v with zeros or truncates it to exactly dim values.
func FitDim(v []float32, dim int) []float32 {
	out := make([]float32, dim)
	copy(out, v)
	return out
}

// Select returns the first available generator. Nil entries are skipped.
func Select(candidates ...Generator) Generator {
	for _, g := range candidates {
		if g != nil {
			slog.Info("embedding generator selected", "generator", g.ID(), "dim", g.Dim())
			return g
		}
	}
	slog.Warn("no embedding generator available")
	return nil
}
