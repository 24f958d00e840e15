package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageio"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// EnrollHandler handles enrollment uploads.
type EnrollHandler struct {
	service *recognition.Service
}

// NewEnrollHandler creates a new enroll handler.
func NewEnrollHandler(service *recognition.Service) *EnrollHandler {
	return &EnrollHandler{service: service}
}

type enrollResponse struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	EmployeeID      string           `json:"employee_id,omitempty"`
	Name            string           `json:"name,omitempty"`
	EmbeddingLinked bool             `json:"embedding_linked"`
	Reason          constants.Reason `json:"reason,omitempty"`
}

func toEnrollResponse(result recognition.EnrollResult) enrollResponse {
	return enrollResponse{
		Success:         result.Success,
		Message:         result.Message,
		EmployeeID:      result.IdentityID,
		Name:            result.Name,
		EmbeddingLinked: result.EmbeddingLinked,
		Reason:          result.Reason,
	}
}

// readImageField validates and reads the "image" upload. On failure it writes
// the response and returns false.
func readImageField(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	filename, data, err := readUpload(r, "image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return nil, false
	}
	if !imageio.ValidateExtension(filename) {
		respondFailure(w, http.StatusOK, constants.ReasonInvalidFormat)
		return nil, false
	}
	if len(data) == 0 {
		respondFailure(w, http.StatusOK, constants.ReasonEmptyFile)
		return nil, false
	}
	return data, true
}

// Enroll handles POST /api/v1/enroll with multipart fields name and image.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r) {
		return
	}
	data, ok := readImageField(w, r)
	if !ok {
		return
	}

	name := r.FormValue("name")
	slog.Info("enroll request", "name", sanitizeForLog(name), "bytes", len(data))
	respondJSON(w, http.StatusOK, toEnrollResponse(h.service.Enroll(r.Context(), name, data)))
}

// Reenroll handles POST /api/v1/enroll/{id}. The name is only required when
// the identity does not exist yet.
func (h *EnrollHandler) Reenroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing identity id")
		return
	}
	if !parseMultipart(w, r) {
		return
	}
	data, ok := readImageField(w, r)
	if !ok {
		return
	}

	slog.Info("reenroll request", "employee_id", sanitizeForLog(id), "bytes", len(data))
	respondJSON(w, http.StatusOK, toEnrollResponse(h.service.Reenroll(r.Context(), id, r.FormValue("name"), data)))
}
