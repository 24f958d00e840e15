package database

import (
	"context"
	"fmt"
)

var (
	postgresIdentityDirectory  func() IdentityDirectory
	postgresAttendanceRecorder func() AttendanceRecorder
	postgresPinger             Pinger
	postgresInitialized        bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the serve and CLI commands to avoid import cycles.
func RegisterPostgresBackend(
	identityDirectory func() IdentityDirectory,
	recorder func() AttendanceRecorder,
	pinger Pinger,
) {
	postgresIdentityDirectory = identityDirectory
	postgresAttendanceRecorder = recorder
	postgresPinger = pinger
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetIdentityReader returns an IdentityReader from the PostgreSQL backend
func GetIdentityReader(ctx context.Context) (IdentityReader, error) {
	return GetIdentityDirectory(ctx)
}

// GetIdentityDirectory returns an IdentityDirectory from the PostgreSQL backend
func GetIdentityDirectory(ctx context.Context) (IdentityDirectory, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresIdentityDirectory == nil {
		return nil, fmt.Errorf("PostgreSQL identity directory not registered")
	}
	return postgresIdentityDirectory(), nil
}

// GetAttendanceRecorder returns an AttendanceRecorder from the PostgreSQL backend
func GetAttendanceRecorder(ctx context.Context) (AttendanceRecorder, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresAttendanceRecorder == nil {
		return nil, fmt.Errorf("PostgreSQL attendance recorder not registered")
	}
	return postgresAttendanceRecorder(), nil
}

// GetPinger returns the registered connectivity checker, or nil if not registered.
func GetPinger() Pinger {
	return postgresPinger
}
