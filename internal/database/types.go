package database

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested identity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an identity id is already taken.
	ErrDuplicate = errors.New("duplicate identity id")
)

// Identity is an enrolled person in the gallery.
type Identity struct {
	EmployeeID   string
	Name         string
	EmbeddingRef string // empty for soft-enrolled identities
	ThumbnailRef string
	Generator    string // generator id of the linked embedding
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasEmbedding reports whether the identity can be matched.
func (i Identity) HasEmbedding() bool {
	return i.EmbeddingRef != ""
}

// AttendanceRecord is one check-in or check-out event.
type AttendanceRecord struct {
	ID         string
	EmployeeID string
	Type       string // IN or OUT
	DeviceID   string
	Distance   *float64
	ServerTime time.Time
	ClientTime *time.Time
	ImageRef   string
}
