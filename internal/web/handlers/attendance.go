package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// maxRecentLimit caps the limit query parameter.
const maxRecentLimit = 100

// AttendanceHandler records and lists attendance directly.
type AttendanceHandler struct {
	recorder database.AttendanceRecorder
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(recorder database.AttendanceRecorder) *AttendanceHandler {
	return &AttendanceHandler{recorder: recorder}
}

type attendanceRequest struct {
	EmployeeID string   `json:"employee_id"`
	Type       string   `json:"type"`
	DeviceID   string   `json:"device_id"`
	Distance   *float64 `json:"distance"`
	ImageRef   string   `json:"image_ref"`
	TSClient   string   `json:"ts_client"`
}

type attendanceResponse struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employee_id"`
	Type       string     `json:"type"`
	DeviceID   string     `json:"device_id,omitempty"`
	Distance   *float64   `json:"distance,omitempty"`
	ServerTime time.Time  `json:"ts_server"`
	ClientTime *time.Time `json:"ts_client,omitempty"`
	ImageRef   string     `json:"image_ref,omitempty"`
}

// Record handles POST /api/v1/attendance.
func (h *AttendanceHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	if req.EmployeeID == "" {
		respondError(w, http.StatusBadRequest, "employee_id is required")
		return
	}
	attendanceType, ok := normalizeAttendanceType(req.Type)
	if !ok {
		respondError(w, http.StatusBadRequest, "type must be IN or OUT")
		return
	}

	rec := &database.AttendanceRecord{
		EmployeeID: req.EmployeeID,
		Type:       attendanceType,
		DeviceID:   req.DeviceID,
		Distance:   req.Distance,
		ClientTime: parseClientTime(req.TSClient),
		ImageRef:   req.ImageRef,
	}
	if err := h.recorder.RecordAttendance(r.Context(), rec); err != nil {
		respondFailure(w, http.StatusOK, constants.ReasonInternalError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "attendance recorded",
		"id":      rec.ID,
	})
}

// Recent handles GET /api/v1/attendance/{id}?limit=.
func (h *AttendanceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing identity id")
		return
	}

	limit := constants.DefaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records, err := h.recorder.RecentAttendance(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	result := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, attendanceResponse{
			ID:         rec.ID,
			EmployeeID: rec.EmployeeID,
			Type:       rec.Type,
			DeviceID:   rec.DeviceID,
			Distance:   rec.Distance,
			ServerTime: rec.ServerTime,
			ClientTime: rec.ClientTime,
			ImageRef:   rec.ImageRef,
		})
	}
	respondJSON(w, http.StatusOK, result)
}
