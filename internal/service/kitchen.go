// kitchen.go - кухонная сводка заказов по площадке.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ngriffiths19/lunch-planner/internal/domain/kitchen"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// KitchenService - сервис кухонной сводки.
type KitchenService struct {
	rows   repository.KitchenRepository
	logger *slog.Logger
}

// NewKitchenService создаёт сервис кухонной сводки.
func NewKitchenService(rows repository.KitchenRepository, logger *slog.Logger) *KitchenService {
	return &KitchenService{
		rows:   rows,
		logger: logger.With(slog.String("component", "kitchen_service")),
	}
}

// Summarize возвращает сводку по датам, сессиям и блюдам за интервал.
func (s *KitchenService) Summarize(ctx context.Context, locationID, from, to string, opts kitchen.Options) ([]kitchen.Day, error) {
	if locationID == "" {
		return nil, validationf("locationId обязателен")
	}
	dr, err := model.NewDateRange(from, to)
	if err != nil {
		return nil, validationf("%v", err)
	}

	rows, err := s.rows.Rows(ctx, locationID, dr)
	if err != nil {
		return nil, fmt.Errorf("выборка заказов для кухни: %w", err)
	}

	days := kitchen.Summarize(rows, opts)
	s.logger.Debug("Кухонная сводка построена",
		slog.String("location_id", locationID),
		slog.Int("rows", len(rows)),
		slog.Int("days", len(days)),
	)
	return days, nil
}
