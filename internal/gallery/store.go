// Package gallery persists enrolled face embeddings and profile thumbnails.
//
// Files are replaced atomically, so a concurrent reader observes either the
// previous or the new file, never a partially written one.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrCorrupt is returned when a stored embedding cannot be decoded or fails validation.
var ErrCorrupt = errors.New("corrupt embedding record")

// recordVersion is bumped on incompatible record layout changes.
const recordVersion = 1

// Store saves and loads embeddings by reference.
type Store interface {
	Save(ctx context.Context, identityID string, emb embedding.Embedding) (string, error)
	Load(ctx context.Context, ref string) (embedding.Embedding, error)
}

// record is the on-disk layout of one embedding file.
type record struct {
	Version    int       `msgpack:"version"`
	IdentityID string    `msgpack:"identity_id"`
	Generator  string    `msgpack:"generator"`
	Dim        int       `msgpack:"dim"`
	Vector     []float32 `msgpack:"vector"`
	CreatedAt  time.Time `msgpack:"created_at"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// safeName makes an identity id usable as a file name prefix.
func safeName(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}

// timestampedName returns "<id>_YYYYMMDD_HHMMSS_micro<ext>".
func timestampedName(id string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%06d%s", safeName(id), t.Format("20060102_150405"), t.Nanosecond()/1000, ext)
}

// FileStore keeps one msgpack file per saved embedding in a directory.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating encoding directory: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes emb to a new timestamped file and returns its path.
func (s *FileStore) Save(ctx context.Context, identityID string, emb embedding.Embedding) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if identityID == "" {
		return "", errors.New("identity id is required")
	}
	if !emb.Valid() {
		return "", fmt.Errorf("refusing to save invalid embedding for %s", identityID)
	}

	now := s.now()
	data, err := msgpack.Marshal(&record{
		Version:    recordVersion,
		IdentityID: identityID,
		Generator:  emb.Generator,
		Dim:        emb.Dim(),
		Vector:     emb.Vector,
		CreatedAt:  now.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding embedding: %w", err)
	}

	path := filepath.Join(s.dir, timestampedName(identityID, now, ".emb"))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing embedding file: %w", err)
	}
	return path, nil
}

// Load reads the embedding stored at ref.
func (s *FileStore) Load(ctx context.Context, ref string) (embedding.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return embedding.Embedding{}, err
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("reading embedding file: %w", err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (embedding.Embedding, error) {
	var rec record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return embedding.Embedding{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Version != recordVersion {
		return embedding.Embedding{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, rec.Version)
	}
	if rec.Dim != len(rec.Vector) {
		return embedding.Embedding{}, fmt.Errorf("%w: dim %d but %d values", ErrCorrupt, rec.Dim, len(rec.Vector))
	}
	emb := embedding.Embedding{Generator: rec.Generator, Vector: rec.Vector}
	if !emb.Valid() {
		return embedding.Embedding{}, fmt.Errorf("%w: invalid vector", ErrCorrupt)
	}
	return emb, nil
}
