package coordinator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-care-tracker/internal/domain/careevents"
	"pet-care-tracker/internal/middleware"
	"pet-care-tracker/internal/tracker/opqueue"
	"pet-care-tracker/internal/tracker/slotcache"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, c *Coordinator) {
	r.Route("/tracker", func(tr chi.Router) {
		tr.Post("/toggle", toggleHandler(c))
		tr.Get("/today", todayHandler(c))
		tr.Post("/refresh", refreshHandler(c))
		tr.Post("/category", switchCategoryHandler(c))
	})
}

type toggleRequest struct {
	SubjectID string `json:"subject_id"`
	Slot      string `json:"slot"`
	Category  string `json:"category"`
	Label     string `json:"label"`
	Notes     string `json:"notes"`
}

type toggleResponse struct {
	Accepted bool   `json:"accepted"`
	Deferred bool   `json:"deferred,omitempty"`
	Op       string `json:"op,omitempty"`
	Logged   bool   `json:"logged"`
	OpID     string `json:"op_id,omitempty"`
}

type entryResponse struct {
	SubjectID string    `json:"subject_id"`
	Category  string    `json:"category"`
	Slot      string    `json:"slot"`
	RecordID  string    `json:"record_id,omitempty"`
	Pending   bool      `json:"pending"`
	FetchedAt time.Time `json:"fetched_at"`
}

type todayResponse struct {
	Date      string          `json:"date"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
	Entries   []entryResponse `json:"entries"`
}

// toggleHandler godoc
// @Summary Marca o desmarca un casillero del día
// @Tags tracker
// @Accept json
// @Produce json
// @Success 202 {object} toggleResponse
// @Failure 400 {string} string "datos inválidos"
// @Failure 429 {object} toggleResponse
// @Router /tracker/toggle [post]
func toggleHandler(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		cat, ok := careevents.ParseCategory(req.Category)
		if !ok {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}

		res, err := c.Toggle(r.Context(), Trigger{
			SubjectID: req.SubjectID,
			Slot:      req.Slot,
			Category:  cat,
			Label:     req.Label,
			Notes:     req.Notes,
			CreatorID: middleware.CreatorID(r.Context()),
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidInput):
				http.Error(w, "subject_id and a valid slot are required", http.StatusBadRequest)
			case errors.Is(err, opqueue.ErrClosed):
				http.Error(w, "tracker is shutting down", http.StatusServiceUnavailable)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		out := toggleResponse{
			Accepted: res.Accepted,
			Deferred: res.Deferred,
			Op:       res.Op,
			Logged:   res.Logged,
			OpID:     res.OpID,
		}
		if !res.Accepted {
			writeJSON(w, http.StatusTooManyRequests, out)
			return
		}
		writeJSON(w, http.StatusAccepted, out)
	}
}

func todayHandler(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter careevents.Category
		if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
			cat, ok := careevents.ParseCategory(v)
			if !ok {
				http.Error(w, "unknown category", http.StatusBadRequest)
				return
			}
			filter = cat
		}

		writeJSON(w, http.StatusOK, toTodayResponse(c.Today(), filter))
	}
}

// refreshHandler godoc
// @Summary Recarga los registros del día
// @Tags tracker
// @Param force query bool false "Ignora el TTL y cancela la recarga en curso"
// @Router /tracker/refresh [post]
func refreshHandler(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		force := false
		if v := r.URL.Query().Get("force"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "force must be a boolean", http.StatusBadRequest)
				return
			}
			force = b
		}

		snap, err := c.Refresh(r.Context(), force)
		if err != nil {
			http.Error(w, "could not load records", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, toTodayResponse(snap, ""))
	}
}

func switchCategoryHandler(c *Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Category string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		cat, ok := careevents.ParseCategory(req.Category)
		if !ok {
			http.Error(w, "unknown category", http.StatusBadRequest)
			return
		}

		c.SwitchCategory(cat)
		w.WriteHeader(http.StatusNoContent)
	}
}

func toTodayResponse(s slotcache.Snapshot, filter careevents.Category) todayResponse {
	out := todayResponse{Date: s.Date(), Entries: []entryResponse{}}
	if at := s.FetchedAt(); !at.IsZero() {
		out.FetchedAt = &at
	}
	for _, e := range s.Entries() {
		if filter != "" && e.Key.Category != filter {
			continue
		}
		out.Entries = append(out.Entries, entryResponse{
			SubjectID: e.Key.SubjectID,
			Category:  string(e.Key.Category),
			Slot:      e.Key.Slot,
			RecordID:  e.RecordID,
			Pending:   e.Pending,
			FetchedAt: e.FetchedAt,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
