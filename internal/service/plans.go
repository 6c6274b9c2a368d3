// plans.go - личные заказы: выбор на день и пакетное сохранение месяца.
// Идентификатор пользователя всегда берётся из аутентификации, не из тела запроса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ngriffiths19/lunch-planner/internal/domain/meal"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// PlanService - сервис личных заказов.
type PlanService struct {
	plans  repository.PlanRepository
	items  repository.MenuItemRepository
	logger *slog.Logger
}

// NewPlanService создаёт сервис заказов.
func NewPlanService(plans repository.PlanRepository, items repository.MenuItemRepository, logger *slog.Logger) *PlanService {
	return &PlanService{
		plans:  plans,
		items:  items,
		logger: logger.With(slog.String("component", "plan_service")),
	}
}

// GetMine возвращает заказы пользователя по датам (по возрастанию).
func (s *PlanService) GetMine(ctx context.Context, userID, locationID, from, to string) ([]model.PlanDay, error) {
	if locationID == "" {
		return nil, validationf("locationId обязателен")
	}
	dr, err := model.NewDateRange(from, to)
	if err != nil {
		return nil, validationf("%v", err)
	}

	planned, err := s.plans.ListMine(ctx, userID, locationID, dr)
	if err != nil {
		return nil, fmt.Errorf("получение заказов: %w", err)
	}

	days := []model.PlanDay{}
	for _, p := range planned {
		if n := len(days); n > 0 && days[n-1].Date == p.Date {
			days[n-1].Items = append(days[n-1].Items, p.Item)
			continue
		}
		days = append(days, model.PlanDay{Date: p.Date, Items: []model.MenuItem{p.Item}})
	}
	return days, nil
}

// SaveDay заменяет выбор пользователя на дату: одно горячее блюдо
// или полный холодный набор. Проверка выполняется до записи.
func (s *PlanService) SaveDay(ctx context.Context, userID, locationID, date string, sel meal.Selection) error {
	if locationID == "" {
		return validationf("locationId обязателен")
	}
	if !model.IsValidDate(date) {
		return validationf("некорректная дата %q", date)
	}

	picks, err := sel.Picks()
	if err != nil {
		return validationf("%v", err)
	}
	ids := meal.ItemIDs(picks)
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return validationf("некорректный id блюда %q", id)
		}
	}

	items, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("получение блюд: %w", err)
	}
	if err := meal.Check(picks, items); err != nil {
		return validationf("%v", err)
	}

	if err := s.plans.ReplaceDay(ctx, userID, locationID, date, ids); err != nil {
		if errors.Is(err, repository.ErrDanglingReference) {
			return validationf("неизвестный id блюда")
		}
		return fmt.Errorf("сохранение заказа: %w", err)
	}

	s.logger.Debug("Заказ на день сохранён",
		slog.String("user_id", userID),
		slog.String("date", date),
		slog.Int("items", len(ids)),
	)
	return nil
}

// SaveMonth сохраняет пакет строк. Строки без даты или id, с
// некорректной датой или вне месяца отбрасываются; повторы по
// (date, itemId) схлопываются. С month весь месяц пользователя
// очищается перед записью; без month заменяются только переданные даты.
// Возвращает количество принятых строк.
func (s *PlanService) SaveMonth(ctx context.Context, userID, locationID, month string, lines []model.PlanLine) (int, error) {
	if locationID == "" {
		return 0, validationf("locationId обязателен")
	}

	var clear *model.DateRange
	if month != "" {
		from, to, err := model.MonthRange(month)
		if err != nil {
			return 0, validationf("%v", err)
		}
		clear = &model.DateRange{From: from, To: to}
	}

	type key struct{ date, item string }
	seen := make(map[key]struct{}, len(lines))
	accepted := make([]model.PlanLine, 0, len(lines))
	for _, l := range lines {
		if l.Date == "" || l.ItemID == "" || !model.IsValidDate(l.Date) {
			continue
		}
		if _, err := uuid.Parse(l.ItemID); err != nil {
			continue
		}
		if clear != nil && !clear.Contains(l.Date) {
			continue
		}
		k := key{l.Date, l.ItemID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		accepted = append(accepted, l)
	}

	if clear == nil && len(accepted) == 0 {
		return 0, nil
	}

	err := s.plans.ReplaceLines(ctx, userID, locationID, clear, accepted)
	if errors.Is(err, repository.ErrDanglingReference) {
		return 0, validationf("неизвестный id блюда")
	}
	if err != nil {
		return 0, fmt.Errorf("сохранение заказов месяца: %w", err)
	}

	s.logger.Info("Заказы сохранены пакетом",
		slog.String("user_id", userID),
		slog.String("month", month),
		slog.Int("lines", len(accepted)),
		slog.Int("dropped", len(lines)-len(accepted)),
	)
	return len(accepted), nil
}
