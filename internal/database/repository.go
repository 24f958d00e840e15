package database

import (
	"context"
	"time"
)

// IdentityReader provides read-only access to the identity directory
type IdentityReader interface {
	// GetIdentity retrieves an identity by id, returns nil if not found
	GetIdentity(ctx context.Context, employeeID string) (*Identity, error)
	// ListIdentities returns all identities ordered by id
	ListIdentities(ctx context.Context) ([]Identity, error)
	// ListIdentitiesWithEmbedding returns identities that have a linked embedding,
	// ordered by id so that matching is deterministic
	ListIdentitiesWithEmbedding(ctx context.Context) ([]Identity, error)
	// Count returns the total number of identities
	Count(ctx context.Context) (int, error)
}

// IdentityDirectory is the gallery index: who is enrolled and where their embedding lives
type IdentityDirectory interface {
	IdentityReader

	// NextIdentityID allocates a new sequential identity id. Allocation is atomic:
	// concurrent callers never receive the same id.
	NextIdentityID(ctx context.Context) (string, error)

	// CreateIdentity stores a new identity. Returns ErrDuplicate if the id exists.
	CreateIdentity(ctx context.Context, identity Identity) error

	// UpdateEnrollment replaces the embedding and thumbnail references of an identity.
	// Returns ErrNotFound if the identity does not exist.
	UpdateEnrollment(ctx context.Context, employeeID, embeddingRef, thumbnailRef, generator string) error
}

// AttendanceRecorder persists identification outcomes
type AttendanceRecorder interface {
	// RecordAttendance stores a record, filling in ID and ServerTime when empty
	RecordAttendance(ctx context.Context, rec *AttendanceRecord) error
	// HasAttendanceOn checks whether a record of the given type exists on the day of `day`
	HasAttendanceOn(ctx context.Context, employeeID, recordType string, day time.Time) (bool, error)
	// RecentAttendance returns the newest records for an identity, newest first
	RecentAttendance(ctx context.Context, employeeID string, limit int) ([]AttendanceRecord, error)
}

// Pinger checks backend connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}
