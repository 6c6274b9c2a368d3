// plan.go - заказы пользователя: /api/plan.
// Пользователь всегда берётся из результата авторизации, не из тела запроса.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/domain/meal"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// planRequest - тело POST /api/plan. Допустимы три формы:
// горячее блюдо {date, hotItemId}, холодный набор {date, cold} и
// пакетная форма {month?, lines}. Смешение форм - ошибка.
type planRequest struct {
	// UserID принимается для совместимости и должен совпадать с вызывающим
	UserID     string            `json:"userId"`
	LocationID string            `json:"locationId" validate:"required"`
	Date       string            `json:"date"`
	HotItemID  string            `json:"hotItemId"`
	Cold       *coldBundleBody   `json:"cold"`
	Month      string            `json:"month"`
	Lines      []json.RawMessage `json:"lines"`
}

type coldBundleBody struct {
	MainID  string `json:"mainId"`
	SideID  string `json:"sideId"`
	ExtraID string `json:"extraId"`
}

type planLineBody struct {
	Date   string `json:"date"`
	ItemID string `json:"itemId"`
}

type planResponse struct {
	Days []planDayDTO `json:"days"`
}

type planBatchResponse struct {
	OK    bool `json:"ok"`
	Saved int  `json:"saved"`
}

// GetPlan - GET /api/plan?from&to&locationId. Только заказы вызывающего.
func (h *APIHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := middleware.UserIDFromContext(r.Context())

	days, err := h.plans.GetMine(r.Context(), userID, q.Get("locationId"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeServiceError(w, r, err, "GetPlan")
		return
	}

	out := make([]planDayDTO, len(days))
	for i, d := range days {
		out[i] = planDayDTO{Date: d.Date, Items: mapMenuItems(d.Items)}
	}
	writeJSON(w, http.StatusOK, planResponse{Days: out})
}

// SavePlan - POST /api/plan.
func (h *APIHandler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if req.UserID != "" && req.UserID != userID {
		apierrors.Forbidden(w)
		return
	}

	if req.Lines != nil {
		h.savePlanBatch(w, r, userID, req)
		return
	}

	if req.Month != "" {
		apierrors.ValidationError(w, "month допустим только вместе с lines")
		return
	}
	if req.Date == "" {
		apierrors.ValidationError(w, "date обязателен")
		return
	}

	sel := meal.Selection{HotItemID: req.HotItemID}
	if req.Cold != nil {
		sel.Cold = &meal.ColdBundle{MainID: req.Cold.MainID, SideID: req.Cold.SideID, ExtraID: req.Cold.ExtraID}
	}
	if err := h.plans.SaveDay(r.Context(), userID, req.LocationID, req.Date, sel); err != nil {
		h.writeServiceError(w, r, err, "SavePlan")
		return
	}
	writeOK(w)
}

func (h *APIHandler) savePlanBatch(w http.ResponseWriter, r *http.Request, userID string, req planRequest) {
	if req.Date != "" || req.HotItemID != "" || req.Cold != nil {
		apierrors.ValidationError(w, "lines нельзя сочетать с date, hotItemId или cold")
		return
	}

	// Некорректные строки отбрасываются, а не отклоняют весь пакет.
	lines := make([]model.PlanLine, 0, len(req.Lines))
	for _, raw := range req.Lines {
		var l planLineBody
		if err := json.Unmarshal(raw, &l); err != nil {
			continue
		}
		lines = append(lines, model.PlanLine{Date: l.Date, ItemID: l.ItemID})
	}

	saved, err := h.plans.SaveMonth(r.Context(), userID, req.LocationID, req.Month, lines)
	if err != nil {
		h.writeServiceError(w, r, err, "SavePlan")
		return
	}
	writeJSON(w, http.StatusOK, planBatchResponse{OK: true, Saved: saved})
}
