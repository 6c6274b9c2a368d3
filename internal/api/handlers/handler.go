// Пакет handlers - HTTP-обработчики JSON API Lunch Planner.
// handler.go - основной обработчик API: сервисы, ответы и маппинг ошибок.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/service"
)

// APIHandler - основной обработчик API Lunch Planner.
// Делегирует запросы в сервисный слой; авторизация выполняется
// middleware RoleGuard до вызова обработчика.
type APIHandler struct {
	menu       *service.MenuService
	dailyMenu  *service.DailyMenuService
	plans      *service.PlanService
	kitchen    *service.KitchenService
	profiles   *service.ProfileService
	adminUsers *service.AdminUserService
	logger     *slog.Logger
}

// Services - набор сервисов для APIHandler.
// AdminUsers может быть nil, если учётные данные Keycloak Admin API не заданы.
type Services struct {
	Menu       *service.MenuService
	DailyMenu  *service.DailyMenuService
	Plans      *service.PlanService
	Kitchen    *service.KitchenService
	Profiles   *service.ProfileService
	AdminUsers *service.AdminUserService
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		menu:       svc.Menu,
		dailyMenu:  svc.DailyMenu,
		plans:      svc.Plans,
		kitchen:    svc.Kitchen,
		profiles:   svc.Profiles,
		adminUsers: svc.AdminUsers,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// okResponse - стандартный ответ успешной мутации.
type okResponse struct {
	OK bool `json:"ok"`
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeOK записывает {"ok": true}.
func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Неожиданные ошибки логируются и возвращаются как 500 без деталей.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, service.Reason(err))
	case errors.Is(err, service.ErrInvalidRole):
		apierrors.ValidationError(w, service.ErrInvalidRole.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Не найдено")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Блюдо используется в заказах или меню дня, удаление невозможно")
	case errors.Is(err, service.ErrIDPUnavailable):
		apierrors.IDPUnavailable(w, "Ошибка получения пользователей из Keycloak")
	default:
		h.logger.ErrorContext(r.Context(), "Ошибка обработки запроса",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w)
	}
}

// queryFlag разбирает булев query-параметр: "1" или "true".
func queryFlag(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true"
}
