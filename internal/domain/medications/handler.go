package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *StatusService) {
	r.Get("/subjects/{subjectID}/medications/status", statusHandler(svc))
}

type statusResponse struct {
	SubjectID        string     `json:"subject_id"`
	Label            string     `json:"label"`
	Frequency        Frequency  `json:"frequency"`
	SlotsPerDay      int        `json:"slots_per_day"`
	LastAdministered *time.Time `json:"last_administered,omitempty"`
	State            State      `json:"state"`
	NextDue          *time.Time `json:"next_due,omitempty"`
	DaysUntilDue     *int       `json:"days_until_due,omitempty"`
	DaysOverdue      *int       `json:"days_overdue,omitempty"`
}

// statusHandler godoc
// @Summary Estado de una medicación
// @Description Recalcula el estado (incomplete/current/due_soon/overdue) desde el último registro con ese label.
// @Tags medications
// @Produce json
// @Param subjectID path string true "ID de la mascota"
// @Param label query string true "Nombre de la medicación"
// @Param frequency query string true "daily, twice_daily, weekly, biweekly, monthly, quarterly, annual, as_needed"
// @Param lookahead query int false "Días de anticipación para due_soon"
// @Success 200 {object} statusResponse
// @Failure 400 {string} string "parámetros inválidos"
// @Router /subjects/{subjectID}/medications/status [get]
func statusHandler(svc *StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		f, ok := ParseFrequency(q.Get("frequency"))
		if !ok {
			http.Error(w, "unknown frequency", http.StatusBadRequest)
			return
		}

		lookahead := svc.Lookahead()
		if v := strings.TrimSpace(q.Get("lookahead")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "lookahead must be a non-negative integer", http.StatusBadRequest)
				return
			}
			lookahead = n
		}

		st, err := svc.StatusWithLookahead(r.Context(), chi.URLParam(r, "subjectID"), q.Get("label"), f, lookahead)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, "label required", http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			SubjectID:        st.SubjectID,
			Label:            st.Label,
			Frequency:        st.Frequency,
			SlotsPerDay:      SlotsPerDay(st.Frequency),
			LastAdministered: st.LastAdministered,
			State:            st.State,
			NextDue:          st.NextDue,
			DaysUntilDue:     st.DaysUntilDue,
			DaysOverdue:      st.DaysOverdue,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
