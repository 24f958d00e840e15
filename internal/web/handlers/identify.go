package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// IdentifyHandler identifies a face and records attendance.
type IdentifyHandler struct {
	service  *recognition.Service
	recorder database.AttendanceRecorder
	now      func() time.Time
}

// NewIdentifyHandler creates a new identify handler. recorder may be nil, in
// which case results are not recorded.
func NewIdentifyHandler(service *recognition.Service, recorder database.AttendanceRecorder) *IdentifyHandler {
	return &IdentifyHandler{service: service, recorder: recorder, now: time.Now}
}

type identifyRequest struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	TSClient string `json:"ts_client"`
}

type identifyResponse struct {
	Success            bool    `json:"success"`
	Message            string  `json:"message"`
	EmployeeID         string  `json:"employee_id"`
	Name               string  `json:"name"`
	User               string  `json:"user"`
	Distance           float64 `json:"distance"`
	DecidedThreshold   float64 `json:"decided_threshold"`
	AttendanceType     string  `json:"type"`
	AttendanceRecorded bool    `json:"recorded"`
}

// Identify handles POST /api/v1/identify. A JSON body identifies the current
// camera frame; a multipart form identifies the uploaded image.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	var result recognition.IdentifyResult

	if isMultipart(r) {
		if !parseMultipart(w, r) {
			return
		}
		req = identifyRequest{
			Type:     r.FormValue("type"),
			DeviceID: r.FormValue("device_id"),
			TSClient: r.FormValue("ts_client"),
		}
		if req.Type == "" {
			respondError(w, http.StatusBadRequest, constants.ReasonInvalidRequest.Message())
			return
		}
		_, data, err := readUpload(r, "image")
		if err != nil {
			respondError(w, http.StatusBadRequest, constants.ReasonInvalidRequest.Message())
			return
		}
		attendanceType, ok := normalizeAttendanceType(req.Type)
		if !ok {
			respondError(w, http.StatusBadRequest, "type must be IN or OUT")
			return
		}
		req.Type = attendanceType
		slog.Info("identify request", "mode", "upload", "type", req.Type)
		result = h.service.IdentifyUpload(r.Context(), data)
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, constants.ReasonInvalidRequest.Message())
			return
		}
		attendanceType, ok := normalizeAttendanceType(req.Type)
		if !ok {
			respondError(w, http.StatusBadRequest, "type must be IN or OUT")
			return
		}
		req.Type = attendanceType
		slog.Info("identify request", "mode", "camera", "type", req.Type)
		result = h.service.IdentifyCamera(r.Context())
	}

	if !result.Success {
		respondJSON(w, http.StatusOK, failureResponse{
			Message:     result.Message,
			Reason:      result.Reason,
			MinDistance: result.Distance,
		})
		return
	}

	if reason, dup := h.alreadyRecorded(r.Context(), result.IdentityID, req.Type); dup {
		respondJSON(w, http.StatusOK, failureResponse{
			Message:    reason.Message(),
			Reason:     reason,
			EmployeeID: result.IdentityID,
			Name:       result.Name,
		})
		return
	}

	recorded := h.record(r.Context(), result, req)

	respondJSON(w, http.StatusOK, identifyResponse{
		Success:            true,
		Message:            result.Message,
		EmployeeID:         result.IdentityID,
		Name:               result.Name,
		User:               result.Name,
		Distance:           *result.Distance,
		DecidedThreshold:   result.Threshold,
		AttendanceType:     req.Type,
		AttendanceRecorded: recorded,
	})
}

// alreadyRecorded applies the once-per-day guard for the attendance type.
// Lookup failures do not block the request.
func (h *IdentifyHandler) alreadyRecorded(ctx context.Context, employeeID, attendanceType string) (constants.Reason, bool) {
	if h.recorder == nil {
		return "", false
	}
	has, err := h.recorder.HasAttendanceOn(ctx, employeeID, attendanceType, h.now())
	if err != nil {
		slog.Error("checking attendance failed", "employee_id", employeeID, "error", err)
		return "", false
	}
	if !has {
		return "", false
	}
	if attendanceType == constants.AttendanceIn {
		return constants.ReasonAlreadyCheckedIn, true
	}
	return constants.ReasonAlreadyCheckedOut, true
}

func (h *IdentifyHandler) record(ctx context.Context, result recognition.IdentifyResult, req identifyRequest) bool {
	if h.recorder == nil {
		return false
	}
	rec := &database.AttendanceRecord{
		EmployeeID: result.IdentityID,
		Type:       req.Type,
		DeviceID:   req.DeviceID,
		Distance:   result.Distance,
		ServerTime: h.now(),
		ClientTime: parseClientTime(req.TSClient),
	}
	if err := h.recorder.RecordAttendance(ctx, rec); err != nil {
		slog.Error("recording attendance failed", "employee_id", result.IdentityID, "error", err)
		return false
	}
	slog.Info("attendance recorded", "employee_id", rec.EmployeeID, "type", rec.Type, "device_id", sanitizeForLog(rec.DeviceID))
	return true
}
