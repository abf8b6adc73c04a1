package careevents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-care-tracker/internal/domain/subjects"
	"pet-care-tracker/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, subjectsSvc *subjects.Service) {
	r.Route("/subjects/{subjectID}/events", func(er chi.Router) {
		er.Post("/", createEventHandler(svc, subjectsSvc))
		er.Get("/", listEventsHandler(svc, subjectsSvc))
		er.Delete("/{eventID}", deleteEventHandler(svc))
	})

	// Vista diaria (todas las mascotas): la misma consulta que usa el cache.
	r.Get("/events", listByDateHandler(svc))
}

// createEventRequest es el cuerpo para registrar un cuidado.
type createEventRequest struct {
	Category   string `json:"category" enums:"medication,feeding,pottybreak,observation"`
	Label      string `json:"label"`
	OccurredAt string `json:"occurred_at"` // RFC3339
	Notes      string `json:"notes"`
}

type eventResponse struct {
	ID         string    `json:"id"`
	SubjectID  string    `json:"subject_id"`
	Category   Category  `json:"category"`
	Label      string    `json:"label"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
	Notes      string    `json:"notes"`
	CreatorID  string    `json:"creator_id"`
}

// createEventHandler godoc
// @Summary Registrar un cuidado
// @Description Crea un CareEvent para la mascota. Requiere usuario (X-Debug-User-ID en dev), que queda como creator_id.
// @Tags events
// @Accept json
// @Produce json
// @Param subjectID path string true "ID de la mascota"
// @Param payload body createEventRequest true "occurred_at en RFC3339"
// @Success 201 {object} eventResponse
// @Failure 400 {string} string "invalid json / occurred_at inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "subject not found"
// @Router /subjects/{subjectID}/events [post]
func createEventHandler(svc *Service, subjectsSvc *subjects.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID := middleware.CreatorID(r.Context())
		if creatorID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		if _, err := subjectsSvc.GetByID(r.Context(), subjectID); err != nil {
			http.Error(w, "subject not found", http.StatusNotFound)
			return
		}

		var req createEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		cat, ok := ParseCategory(req.Category)
		if !ok {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}

		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
			return
		}

		e, err := svc.Create(r.Context(), CreateInput{
			SubjectID:  subjectID,
			Category:   cat,
			Label:      req.Label,
			OccurredAt: t,
			Notes:      req.Notes,
			CreatorID:  creatorID,
		})
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toEventResponse(e))
	}
}

// listEventsHandler godoc
// @Summary Listar cuidados de una mascota
// @Description Filtros: categories (CSV), label, from/to (RFC3339), limit (1-200, default 50).
// @Tags events
// @Produce json
// @Param subjectID path string true "ID de la mascota"
// @Success 200 {array} eventResponse
// @Router /subjects/{subjectID}/events [get]
func listEventsHandler(svc *Service, subjectsSvc *subjects.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID := chi.URLParam(r, "subjectID")
		if _, err := subjectsSvc.GetByID(r.Context(), subjectID); err != nil {
			http.Error(w, "subject not found", http.StatusNotFound)
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListBySubject(r.Context(), subjectID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, toEventResponses(items))
	}
}

// deleteEventHandler godoc
// @Summary Borrar un cuidado
// @Tags events
// @Param subjectID path string true "ID de la mascota"
// @Param eventID path string true "ID del evento"
// @Success 204
// @Failure 404 {string} string "event not found"
// @Router /subjects/{subjectID}/events/{eventID} [delete]
func deleteEventHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.CreatorID(r.Context()) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		subjectID := chi.URLParam(r, "subjectID")
		eventID := chi.URLParam(r, "eventID")

		// Evento existe y pertenece a la mascota
		ev, err := svc.GetByID(r.Context(), eventID)
		if err != nil || ev.SubjectID != subjectID {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}

		deleted, err := svc.Delete(r.Context(), eventID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !deleted {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// listByDateHandler: GET /events?date=YYYY-MM-DD&category=feeding
func listByDateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := time.Now()
		if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
			t, err := time.ParseInLocation("2006-01-02", v, time.Local)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = t
		}

		var cat Category
		if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
			c, ok := ParseCategory(v)
			if !ok {
				http.Error(w, "unknown category", http.StatusBadRequest)
				return
			}
			cat = c
		}

		items, err := svc.ListByDate(r.Context(), date, cat)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponses(items))
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit}

	// categories=feeding,medication
	if v := strings.TrimSpace(r.URL.Query().Get("categories")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			c, ok := ParseCategory(p)
			if !ok {
				return ListFilter{}, errors.New("unknown category: " + strings.TrimSpace(p))
			}
			filter.Categories = append(filter.Categories, c)
		}
	}

	filter.Label = strings.TrimSpace(r.URL.Query().Get("label"))

	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	return filter, nil
}

func toEventResponses(items []CareEvent) []eventResponse {
	out := make([]eventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEventResponse(e))
	}
	return out
}

func toEventResponse(e CareEvent) eventResponse {
	return eventResponse{
		ID:         e.ID,
		SubjectID:  e.SubjectID,
		Category:   e.Category,
		Label:      e.Label,
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
		Notes:      e.Notes,
		CreatorID:  e.CreatorID,
	}
}

// writeJSON está duplicado a propósito en cada módulo (subjects/careevents/...)
// para no crear un paquete de helpers compartidos todavía.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
