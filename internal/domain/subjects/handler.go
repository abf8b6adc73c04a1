package subjects

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pet-care-tracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/subjects", func(sr chi.Router) {
		sr.Post("/", createSubjectHandler(svc))
		sr.Get("/", listSubjectsHandler(svc))
		sr.Get("/{subjectID}", getSubjectHandler(svc))
	})
}

type createSubjectRequest struct {
	Name    string `json:"name"`
	Species string `json:"species"`
	Notes   string `json:"notes"`
}

type subjectResponse struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Name        string    `json:"name"`
	Species     Species   `json:"species"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func createSubjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.CreatorID(r.Context())
		if ownerID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createSubjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		s, err := svc.Create(r.Context(), ownerID, CreateInput{
			Name:    req.Name,
			Species: req.Species,
			Notes:   req.Notes,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toSubjectResponse(s))
	}
}

func listSubjectsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := middleware.CreatorID(r.Context())
		if ownerID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), ownerID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]subjectResponse, 0, len(items))
		for _, s := range items {
			out = append(out, toSubjectResponse(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getSubjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.GetByID(r.Context(), chi.URLParam(r, "subjectID"))
		if err != nil {
			http.Error(w, "subject not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toSubjectResponse(s))
	}
}

func toSubjectResponse(s Subject) subjectResponse {
	return subjectResponse{
		ID:          s.ID,
		OwnerUserID: s.OwnerUserID,
		Name:        s.Name,
		Species:     s.Species,
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// writeJSON duplicado a propósito (ver careevents).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
