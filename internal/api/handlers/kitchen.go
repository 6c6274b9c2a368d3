// kitchen.go - сводка заказов для кухни.
package handlers

import (
	"net/http"

	"github.com/ngriffiths19/lunch-planner/internal/domain/kitchen"
)

type kitchenResponse struct {
	ByDate []kitchenDayDTO `json:"byDate"`
}

// KitchenWeek - GET /api/kitchen-week: сводка со списками людей.
func (h *APIHandler) KitchenWeek(w http.ResponseWriter, r *http.Request) {
	h.kitchenSummary(w, r, true, "KitchenWeek")
}

// KitchenSummary - GET /api/kitchen: только количества.
func (h *APIHandler) KitchenSummary(w http.ResponseWriter, r *http.Request) {
	h.kitchenSummary(w, r, false, "KitchenSummary")
}

func (h *APIHandler) kitchenSummary(w http.ResponseWriter, r *http.Request, withDetails bool, op string) {
	q := r.URL.Query()
	opts := kitchen.Options{
		WithDetails:          withDetails,
		IncludeEmptySessions: queryFlag(r, "emptySessions"),
	}
	days, err := h.kitchen.Summarize(r.Context(), q.Get("locationId"), q.Get("from"), q.Get("to"), opts)
	if err != nil {
		h.writeServiceError(w, r, err, op)
		return
	}
	writeJSON(w, http.StatusOK, kitchenResponse{ByDate: mapKitchenDays(days)})
}
