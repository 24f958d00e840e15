// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockIdentityDirectory is an in-memory implementation of database.IdentityDirectory
type MockIdentityDirectory struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity
	reserved   map[string]struct{}

	// Track calls
	UpdateEnrollmentCalls []UpdateEnrollmentCall

	// Error injection
	GetError              error
	ListError             error
	CountError            error
	NextIDError           error
	CreateError           error
	UpdateEnrollmentError error
}

// UpdateEnrollmentCall records the arguments of one UpdateEnrollment call
type UpdateEnrollmentCall struct {
	EmployeeID   string
	EmbeddingRef string
	ThumbnailRef string
	Generator    string
}

// NewMockIdentityDirectory creates a new empty mock directory
func NewMockIdentityDirectory() *MockIdentityDirectory {
	return &MockIdentityDirectory{
		identities: make(map[string]*database.Identity),
		reserved:   make(map[string]struct{}),
	}
}

// AddIdentity adds an identity to the mock store
func (m *MockIdentityDirectory) AddIdentity(identity database.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.EmployeeID] = &identity
}

// GetIdentity retrieves an identity by id
func (m *MockIdentityDirectory) GetIdentity(ctx context.Context, employeeID string) (*database.Identity, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if identity, ok := m.identities[employeeID]; ok {
		copied := *identity
		return &copied, nil
	}
	return nil, nil
}

// ListIdentities returns all identities ordered by id
func (m *MockIdentityDirectory) ListIdentities(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.list(false), nil
}

// ListIdentitiesWithEmbedding returns identities with a linked embedding ordered by id
func (m *MockIdentityDirectory) ListIdentitiesWithEmbedding(ctx context.Context) ([]database.Identity, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.list(true), nil
}

func (m *MockIdentityDirectory) list(withEmbedding bool) []database.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		if withEmbedding && !identity.HasEmbedding() {
			continue
		}
		result = append(result, *identity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result
}

// Count returns the number of identities
func (m *MockIdentityDirectory) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// NextIdentityID allocates max+1 over existing and previously allocated ids
func (m *MockIdentityDirectory) NextIdentityID(ctx context.Context) (string, error) {
	if m.NextIDError != nil {
		return "", m.NextIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.identities)+len(m.reserved))
	for id := range m.identities {
		ids = append(ids, id)
	}
	for id := range m.reserved {
		ids = append(ids, id)
	}
	id := database.FormatIdentityID(database.NextIdentityNumber(ids))
	m.reserved[id] = struct{}{}
	return id, nil
}

// CreateIdentity stores a new identity
func (m *MockIdentityDirectory) CreateIdentity(ctx context.Context, identity database.Identity) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identity.EmployeeID]; ok {
		return database.ErrDuplicate
	}
	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	m.identities[identity.EmployeeID] = &identity
	return nil
}

// UpdateEnrollment replaces the embedding and thumbnail references of an identity
func (m *MockIdentityDirectory) UpdateEnrollment(ctx context.Context, employeeID, embeddingRef, thumbnailRef, generator string) error {
	if m.UpdateEnrollmentError != nil {
		return m.UpdateEnrollmentError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateEnrollmentCalls = append(m.UpdateEnrollmentCalls, UpdateEnrollmentCall{
		EmployeeID:   employeeID,
		EmbeddingRef: embeddingRef,
		ThumbnailRef: thumbnailRef,
		Generator:    generator,
	})
	identity, ok := m.identities[employeeID]
	if !ok {
		return database.ErrNotFound
	}
	identity.EmbeddingRef = embeddingRef
	identity.ThumbnailRef = thumbnailRef
	identity.Generator = generator
	identity.UpdatedAt = time.Now()
	return nil
}

// MockAttendanceRecorder is an in-memory implementation of database.AttendanceRecorder
type MockAttendanceRecorder struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord

	// Error injection
	RecordError error
	HasError    error
	RecentError error
}

// NewMockAttendanceRecorder creates a new empty mock recorder
func NewMockAttendanceRecorder() *MockAttendanceRecorder {
	return &MockAttendanceRecorder{}
}

// RecordAttendance appends a record, filling in ID and ServerTime when empty
func (m *MockAttendanceRecorder) RecordAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	if m.RecordError != nil {
		return m.RecordError
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ServerTime.IsZero() {
		rec.ServerTime = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

// HasAttendanceOn checks for a record of the given type on the calendar day of `day`
func (m *MockAttendanceRecorder) HasAttendanceOn(ctx context.Context, employeeID, recordType string, day time.Time) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}
	y, mo, d := day.Date()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.EmployeeID != employeeID || rec.Type != recordType {
			continue
		}
		ry, rmo, rd := rec.ServerTime.In(day.Location()).Date()
		if ry == y && rmo == mo && rd == d {
			return true, nil
		}
	}
	return false, nil
}

// RecentAttendance returns the newest records for an identity, newest first
func (m *MockAttendanceRecorder) RecentAttendance(ctx context.Context, employeeID string, limit int) ([]database.AttendanceRecord, error) {
	if m.RecentError != nil {
		return nil, m.RecentError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.AttendanceRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].EmployeeID == employeeID {
			result = append(result, m.records[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ServerTime.After(result[j].ServerTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Records returns a copy of every stored record in insertion order
func (m *MockAttendanceRecorder) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.AttendanceRecord(nil), m.records...)
}

// MockPinger is a mock implementation of database.Pinger
type MockPinger struct {
	Err error
}

// Ping returns the injected error
func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Err
}
