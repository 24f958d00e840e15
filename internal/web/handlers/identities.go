package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// IdentitiesHandler exposes the identity directory.
type IdentitiesHandler struct {
	directory database.IdentityReader
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(directory database.IdentityReader) *IdentitiesHandler {
	return &IdentitiesHandler{directory: directory}
}

type identityResponse struct {
	EmployeeID   string    `json:"employee_id"`
	Name         string    `json:"name"`
	HasEmbedding bool      `json:"has_embedding"`
	Generator    string    `json:"generator,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toIdentityResponse(i database.Identity) identityResponse {
	return identityResponse{
		EmployeeID:   i.EmployeeID,
		Name:         i.Name,
		HasEmbedding: i.HasEmbedding(),
		Generator:    i.Generator,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// List handles GET /api/v1/identities. The optional search parameter matches
// names ignoring case and diacritics.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.directory.ListIdentities(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list identities")
		return
	}

	search := r.URL.Query().Get("search")
	result := make([]identityResponse, 0, len(identities))
	for _, i := range identities {
		if search != "" && !facematch.MatchesName(i.Name, search) {
			continue
		}
		result = append(result, toIdentityResponse(i))
	}
	respondJSON(w, http.StatusOK, result)
}

// Get handles GET /api/v1/identities/{id}.
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing identity id")
		return
	}

	identity, err := h.directory.GetIdentity(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get identity")
		return
	}
	if identity == nil {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	respondJSON(w, http.StatusOK, toIdentityResponse(*identity))
}
