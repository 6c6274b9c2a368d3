// daily_menu.go - назначение блюд на даты для площадки.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// DailyMenuService - сервис назначений блюд по дням.
type DailyMenuService struct {
	days   repository.DailyMenuRepository
	logger *slog.Logger
}

// NewDailyMenuService создаёт сервис назначений.
func NewDailyMenuService(days repository.DailyMenuRepository, logger *slog.Logger) *DailyMenuService {
	return &DailyMenuService{
		days:   days,
		logger: logger.With(slog.String("component", "daily_menu_service")),
	}
}

// GetRange возвращает назначения в интервале, по возрастанию даты.
func (s *DailyMenuService) GetRange(ctx context.Context, locationID, from, to string) ([]model.DayOptions, error) {
	if locationID == "" {
		return nil, validationf("locationId обязателен")
	}
	dr, err := model.NewDateRange(from, to)
	if err != nil {
		return nil, validationf("%v", err)
	}

	days, err := s.days.ListRange(ctx, locationID, dr)
	if err != nil {
		return nil, fmt.Errorf("получение назначений: %w", err)
	}
	if days == nil {
		days = []model.DayOptions{}
	}
	return days, nil
}

// SetRange заменяет назначения для каждой переданной даты.
// Даты, которых нет в days, не меняются. Если заданы from и to,
// каждая дата должна лежать в интервале. Пустые и повторные id
// отбрасываются; неизвестные id - ошибка валидации.
func (s *DailyMenuService) SetRange(ctx context.Context, locationID string, days []model.DayOptions, from, to string) error {
	if locationID == "" {
		return validationf("locationId обязателен")
	}

	var bounds *model.DateRange
	if from != "" || to != "" {
		dr, err := model.NewDateRange(from, to)
		if err != nil {
			return validationf("%v", err)
		}
		bounds = &dr
	}

	byDate := make(map[string][]string, len(days))
	for _, d := range days {
		if !model.IsValidDate(d.Date) {
			return validationf("некорректная дата %q", d.Date)
		}
		if bounds != nil && !bounds.Contains(d.Date) {
			return validationf("дата %s вне интервала %s..%s", d.Date, bounds.From, bounds.To)
		}
		ids, err := normalizeIDs(append(byDate[d.Date], d.ItemIDs...))
		if err != nil {
			return err
		}
		byDate[d.Date] = ids
	}
	if len(byDate) == 0 {
		return nil
	}

	normalized := make([]model.DayOptions, 0, len(byDate))
	for date, ids := range byDate {
		normalized = append(normalized, model.DayOptions{Date: date, ItemIDs: ids})
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Date < normalized[j].Date })

	err := s.days.ReplaceDays(ctx, locationID, normalized)
	if errors.Is(err, repository.ErrDanglingReference) {
		return validationf("неизвестный id блюда")
	}
	if err != nil {
		return fmt.Errorf("сохранение назначений: %w", err)
	}

	s.logger.Info("Назначения блюд обновлены",
		slog.String("location_id", locationID),
		slog.Int("days", len(normalized)),
	)
	return nil
}

// normalizeIDs убирает пустые и повторные id, сохраняя порядок.
// Id не в формате UUID - ошибка валидации.
func normalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, validationf("некорректный id блюда %q", id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
