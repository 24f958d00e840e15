package gallery

import (
	"context"
	"errors"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/embedding"
)

// Router saves through one store and loads from whichever store a reference
// belongs to, so references written by a previous backend stay readable.
type Router struct {
	write    Store
	prefixed map[string]Store
	fallback Store
}

// NewRouter returns a Router writing to write. References starting with a key
// of prefixed load from that store; everything else loads from fallback.
func NewRouter(write Store, prefixed map[string]Store, fallback Store) *Router {
	return &Router{write: write, prefixed: prefixed, fallback: fallback}
}

// Save writes through the configured write store.
func (r *Router) Save(ctx context.Context, identityID string, emb embedding.Embedding) (string, error) {
	return r.write.Save(ctx, identityID, emb)
}

// Load dispatches on the reference prefix.
func (r *Router) Load(ctx context.Context, ref string) (embedding.Embedding, error) {
	for prefix, s := range r.prefixed {
		if strings.HasPrefix(ref, prefix) {
			return s.Load(ctx, ref)
		}
	}
	if r.fallback == nil {
		return embedding.Embedding{}, errors.New("no store for embedding reference")
	}
	return r.fallback.Load(ctx, ref)
}
