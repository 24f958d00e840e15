package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
)

// maxAllocationAttempts bounds the skips over ids that were created explicitly.
const maxAllocationAttempts = 1000

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// IdentityRepository provides PostgreSQL-backed identity directory storage
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `employee_id, name, embedding_ref, thumbnail_ref, generator, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (database.Identity, error) {
	var identity database.Identity
	err := row.Scan(
		&identity.EmployeeID,
		&identity.Name,
		&identity.EmbeddingRef,
		&identity.ThumbnailRef,
		&identity.Generator,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	return identity, err
}

// GetIdentity retrieves an identity by id, returns nil if not found
func (r *IdentityRepository) GetIdentity(ctx context.Context, employeeID string) (*database.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE employee_id = $1`, employeeID)
	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

// ListIdentities returns all identities ordered by id
func (r *IdentityRepository) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	return r.list(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY employee_id`)
}

// ListIdentitiesWithEmbedding returns identities with a linked embedding ordered by id
func (r *IdentityRepository) ListIdentitiesWithEmbedding(ctx context.Context) ([]database.Identity, error) {
	return r.list(ctx, `SELECT `+identityColumns+` FROM identities WHERE embedding_ref <> '' ORDER BY employee_id`)
}

func (r *IdentityRepository) list(ctx context.Context, query string) ([]database.Identity, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var result []database.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		result = append(result, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return result, nil
}

// Count returns the total number of identities
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// NextIdentityID draws from identity_number_seq, skipping numbers already
// taken by identities that were created under an explicit id.
func (r *IdentityRepository) NextIdentityID(ctx context.Context) (string, error) {
	for i := 0; i < maxAllocationAttempts; i++ {
		var n int
		if err := r.pool.QueryRow(ctx, "SELECT nextval('identity_number_seq')").Scan(&n); err != nil {
			return "", fmt.Errorf("allocate identity number: %w", err)
		}
		id := database.FormatIdentityID(n)

		var exists bool
		err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM identities WHERE employee_id = $1)", id).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("check identity exists: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("identity number sequence exhausted")
}

// CreateIdentity stores a new identity
func (r *IdentityRepository) CreateIdentity(ctx context.Context, identity database.Identity) error {
	query := `
		INSERT INTO identities (employee_id, name, embedding_ref, thumbnail_ref, generator)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		identity.EmployeeID,
		identity.Name,
		identity.EmbeddingRef,
		identity.ThumbnailRef,
		identity.Generator,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create identity %s: %w", identity.EmployeeID, database.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// UpdateEnrollment replaces the embedding and thumbnail references of an identity
func (r *IdentityRepository) UpdateEnrollment(ctx context.Context, employeeID, embeddingRef, thumbnailRef, generator string) error {
	query := `
		UPDATE identities
		SET embedding_ref = $2, thumbnail_ref = $3, generator = $4, updated_at = NOW()
		WHERE employee_id = $1
	`
	result, err := r.pool.Exec(ctx, query, employeeID, embeddingRef, thumbnailRef, generator)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update enrollment %s: %w", employeeID, database.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// Compile-time check
var _ database.IdentityDirectory = (*IdentityRepository)(nil)
