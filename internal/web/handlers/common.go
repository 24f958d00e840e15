package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Debug("writing JSON response failed", "error", err)
		}
	}
}

// respondError sends an error response for malformed requests.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// failureResponse is the body of a domain failure, sent with status 200.
type failureResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Reason      constants.Reason `json:"reason"`
	EmployeeID  string           `json:"employee_id,omitempty"`
	Name        string           `json:"name,omitempty"`
	MinDistance *float64         `json:"min_distance,omitempty"`
}

// respondFailure sends a domain failure with the default message of reason.
func respondFailure(w http.ResponseWriter, status int, reason constants.Reason) {
	respondJSON(w, status, failureResponse{Reason: reason, Message: reason.Message()})
}

// readUpload reads the named multipart file. It returns the file name and contents.
func readUpload(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, constants.MaxUploadSize))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseMultipart parses the multipart body with the upload size limit.
func parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return false
	}
	return true
}

// parseClientTime parses an optional RFC 3339 client timestamp.
func parseClientTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		slog.Warn("ignoring unparsable client timestamp", "ts_client", sanitizeForLog(s), "error", err)
		return nil
	}
	return &t
}

// normalizeAttendanceType upper-cases and validates an attendance type.
func normalizeAttendanceType(s string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(s))
	return t, t == constants.AttendanceIn || t == constants.AttendanceOut
}
