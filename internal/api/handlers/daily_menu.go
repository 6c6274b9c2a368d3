// daily_menu.go - назначение блюд на даты: /api/daily-menu.
package handlers

import (
	"net/http"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

type dailyMenuRequest struct {
	LocationID string           `json:"locationId" validate:"required"`
	From       string           `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string           `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Days       []dailyMenuEntry `json:"days" validate:"required,dive"`
}

type dailyMenuEntry struct {
	Date    string   `json:"date" validate:"required,datetime=2006-01-02"`
	ItemIDs []string `json:"itemIds"`
}

type dailyMenuResponse struct {
	Days []dayOptionsDTO `json:"days"`
}

// GetDailyMenu - GET /api/daily-menu?from&to&locationId.
func (h *APIHandler) GetDailyMenu(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.dailyMenu.GetRange(r.Context(), q.Get("locationId"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err, "GetDailyMenu")
		return
	}

	out := make([]dayOptionsDTO, len(days))
	for i, d := range days {
		ids := d.ItemIDs
		if ids == nil {
			ids = []string{}
		}
		out[i] = dayOptionsDTO{Date: d.Date, ItemIDs: ids}
	}
	writeJSON(w, http.StatusOK, dailyMenuResponse{Days: out})
}

// SetDailyMenu - POST /api/daily-menu. Переданные даты заменяются
// целиком, остальные не меняются.
func (h *APIHandler) SetDailyMenu(w http.ResponseWriter, r *http.Request) {
	var req dailyMenuRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	days := make([]model.DayOptions, len(req.Days))
	for i, d := range req.Days {
		days[i] = model.DayOptions{Date: d.Date, ItemIDs: d.ItemIDs}
	}
	if err := h.dailyMenu.SetRange(r.Context(), req.LocationID, days, req.From, req.To); err != nil {
		h.writeServiceError(w, r, err, "SetDailyMenu")
		return
	}
	writeOK(w)
}
