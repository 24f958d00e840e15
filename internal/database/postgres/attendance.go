package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// RecordAttendance stores a record, filling in ID and ServerTime when empty
func (r *AttendanceRepository) RecordAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ServerTime.IsZero() {
		rec.ServerTime = time.Now()
	}

	query := `
		INSERT INTO attendance (id, employee_id, type, device_id, distance, server_time, client_time, image_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.EmployeeID,
		rec.Type,
		rec.DeviceID,
		rec.Distance,
		rec.ServerTime,
		rec.ClientTime,
		rec.ImageRef,
	)
	if err != nil {
		return fmt.Errorf("record attendance: %w", err)
	}
	return nil
}

// HasAttendanceOn checks for a record of the given type on the calendar day of `day`
// in day's location.
func (r *AttendanceRepository) HasAttendanceOn(ctx context.Context, employeeID, recordType string, day time.Time) (bool, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	query := `
		SELECT EXISTS(
			SELECT 1 FROM attendance
			WHERE employee_id = $1 AND type = $2 AND server_time >= $3 AND server_time < $4
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, employeeID, recordType, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// RecentAttendance returns the newest records for an identity, newest first
func (r *AttendanceRepository) RecentAttendance(ctx context.Context, employeeID string, limit int) ([]database.AttendanceRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultRecentLimit
	}

	query := `
		SELECT id, employee_id, type, device_id, distance, server_time, client_time, image_ref
		FROM attendance
		WHERE employee_id = $1
		ORDER BY server_time DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var result []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var distance sql.NullFloat64
		var clientTime sql.NullTime
		if err := rows.Scan(
			&rec.ID,
			&rec.EmployeeID,
			&rec.Type,
			&rec.DeviceID,
			&distance,
			&rec.ServerTime,
			&clientTime,
			&rec.ImageRef,
		); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		if distance.Valid {
			rec.Distance = &distance.Float64
		}
		if clientTime.Valid {
			rec.ClientTime = &clientTime.Time
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}

// Compile-time check
var _ database.AttendanceRecorder = (*AttendanceRepository)(nil)
