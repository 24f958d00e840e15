// Package matcher finds the nearest enrolled identity for a probe embedding.
package matcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/embedding"
)

// EmbeddingLoader resolves an embedding reference stored on an identity.
type EmbeddingLoader interface {
	Load(ctx context.Context, ref string) (embedding.Embedding, error)
}

// Match is the nearest identity found for a probe.
type Match struct {
	IdentityID string
	Name       string
	Distance   float64
	Generator  string
}

// Matcher scans the gallery linearly.
type Matcher struct {
	loader EmbeddingLoader
}

// New creates a matcher loading embeddings through loader.
func New(loader EmbeddingLoader) *Matcher {
	return &Matcher{loader: loader}
}

// Best returns the entry with the smallest distance to probe. Entries without
// an embedding, entries that fail to load and entries from another generator
// are skipped. On equal distances the earlier entry wins. The result is false
// when nothing could be compared. A scan interrupted by ctx returns ctx's
// error and no match, since a partial scan may miss the nearest entry.
func (m *Matcher) Best(ctx context.Context, probe embedding.Embedding, entries []database.Identity) (Match, bool, error) {
	var best Match
	found := false

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}
		if !entry.HasEmbedding() {
			continue
		}

		stored, err := m.loader.Load(ctx, entry.EmbeddingRef)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Match{}, false, ctxErr
		}
		if err != nil {
			slog.Warn("skipping gallery entry", "employee_id", entry.EmployeeID, "ref", entry.EmbeddingRef, "error", err)
			continue
		}

		d, err := embedding.Distance(probe, stored)
		if errors.Is(err, embedding.ErrIncompatible) {
			slog.Warn("skipping gallery entry from another generator",
				"employee_id", entry.EmployeeID,
				"stored", stored.Generator,
				"probe", probe.Generator)
			continue
		}
		if err != nil {
			slog.Warn("comparing gallery entry failed", "employee_id", entry.EmployeeID, "error", err)
			continue
		}

		if !found || d < best.Distance {
			best = Match{
				IdentityID: entry.EmployeeID,
				Name:       entry.Name,
				Distance:   d,
				Generator:  stored.Generator,
			}
			found = true
		}
	}

	return best, found, nil
}

// Decide accepts a match iff its distance does not exceed tolerance.
func Decide(m Match, tolerance float64) bool {
	return m.Distance <= tolerance
}
