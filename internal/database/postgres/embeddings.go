package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/pgvector/pgvector-go"
)

// RefPrefix marks embedding references that live in PostgreSQL.
const RefPrefix = "pg:"

// EmbeddingStore keeps generator-tagged embeddings in a pgvector column.
// It implements gallery.Store with references of the form "pg:<id>".
type EmbeddingStore struct {
	pool *Pool
}

// NewEmbeddingStore creates a new PostgreSQL embedding store
func NewEmbeddingStore(pool *Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// Save inserts a new embedding row and returns its reference
func (s *EmbeddingStore) Save(ctx context.Context, identityID string, emb embedding.Embedding) (string, error) {
	if identityID == "" {
		return "", errors.New("identity id is required")
	}
	if !emb.Valid() {
		return "", fmt.Errorf("refusing to save invalid embedding for %s", identityID)
	}

	query := `
		INSERT INTO identity_embeddings (employee_id, generator, dim, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query, identityID, emb.Generator, emb.Dim(), pgvector.NewVector(emb.Vector)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert embedding: %w", err)
	}
	return RefPrefix + strconv.FormatInt(id, 10), nil
}

// Load reads the embedding behind a "pg:<id>" reference
func (s *EmbeddingStore) Load(ctx context.Context, ref string) (embedding.Embedding, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return embedding.Embedding{}, err
	}

	var generator string
	var dim int
	var vec pgvector.Vector
	err = s.pool.QueryRow(ctx, "SELECT generator, dim, embedding FROM identity_embeddings WHERE id = $1", id).
		Scan(&generator, &dim, &vec)
	if errors.Is(err, sql.ErrNoRows) {
		return embedding.Embedding{}, fmt.Errorf("embedding %s: %w", ref, sql.ErrNoRows)
	}
	if err != nil {
		return embedding.Embedding{}, fmt.Errorf("query embedding: %w", err)
	}

	emb := embedding.Embedding{Generator: generator, Vector: vec.Slice()}
	if emb.Dim() != dim || !emb.Valid() {
		return embedding.Embedding{}, fmt.Errorf("%w: embedding %s has dim %d, expected %d", gallery.ErrCorrupt, ref, emb.Dim(), dim)
	}
	return emb, nil
}

// IsRef reports whether ref points into PostgreSQL.
func IsRef(ref string) bool {
	return strings.HasPrefix(ref, RefPrefix)
}

// ParseRef extracts the row id of a "pg:<id>" reference.
func ParseRef(ref string) (int64, error) {
	raw, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok {
		return 0, fmt.Errorf("not a database embedding reference: %q", ref)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid database embedding reference: %q", ref)
	}
	return id, nil
}

// Compile-time check
var _ gallery.Store = (*EmbeddingStore)(nil)
