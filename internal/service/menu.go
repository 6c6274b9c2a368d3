// menu.go - каталог блюд: создание с восстановлением из архива,
// частичное изменение, архивирование и удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// MenuService - сервис каталога блюд.
type MenuService struct {
	items  repository.MenuItemRepository
	logger *slog.Logger
}

// NewMenuService создаёт сервис каталога.
func NewMenuService(items repository.MenuItemRepository, logger *slog.Logger) *MenuService {
	return &MenuService{
		items:  items,
		logger: logger.With(slog.String("component", "menu_service")),
	}
}

// List возвращает позиции каталога, отсортированные по (category, name).
func (s *MenuService) List(ctx context.Context, includeInactive bool) ([]model.MenuItem, error) {
	items, err := s.items.List(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("получение каталога: %w", err)
	}
	if items == nil {
		items = []model.MenuItem{}
	}
	return items, nil
}

// Create добавляет блюдо и возвращает его id.
// Если блюдо с таким именем (без учёта регистра) уже есть, оно
// восстанавливается из архива с новым написанием имени; категория
// меняется, только если передана.
func (s *MenuService) Create(ctx context.Context, name, category string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("name обязателен")
	}
	if category != "" && !model.IsValidCategory(category) {
		return "", validationf("неизвестная категория %q", category)
	}

	id, found, err := s.reactivate(ctx, name, category)
	if err != nil || found {
		return id, err
	}

	if category == "" {
		return "", validationf("category обязательна для нового блюда")
	}

	item := &model.MenuItem{
		ID:       uuid.NewString(),
		Name:     name,
		Category: category,
		Active:   true,
	}
	err = s.items.Insert(ctx, item)
	if errors.Is(err, repository.ErrConflict) {
		// Параллельное создание того же имени: берём существующую запись.
		id, found, err = s.reactivate(ctx, name, category)
		if err == nil && !found {
			err = validationf("активное блюдо с таким названием уже есть")
		}
		return id, err
	}
	if err != nil {
		return "", fmt.Errorf("создание блюда: %w", err)
	}

	s.logger.Info("Блюдо добавлено",
		slog.String("id", item.ID),
		slog.String("name", item.Name),
		slog.String("category", item.Category),
	)
	return item.ID, nil
}

// reactivate ищет блюдо по имени и делает его активным.
func (s *MenuService) reactivate(ctx context.Context, name, category string) (string, bool, error) {
	existing, err := s.items.FindByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("поиск блюда по имени: %w", err)
	}

	var cat *string
	if category != "" {
		cat = &category
	}
	if err := s.items.Reactivate(ctx, existing.ID, name, cat); err != nil {
		return "", false, fmt.Errorf("восстановление блюда %s: %w", existing.ID, err)
	}

	if !existing.Active {
		s.logger.Info("Блюдо восстановлено из архива",
			slog.String("id", existing.ID),
			slog.String("name", name),
		)
	}
	return existing.ID, true, nil
}

// Update применяет частичное изменение. Пустой патч - успех без записи.
// Вернуть блюдо из архива через Update нельзя: нужно создать его заново.
func (s *MenuService) Update(ctx context.Context, id string, patch model.MenuItemPatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationf("некорректный id %q", id)
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return validationf("name не может быть пустым")
		}
		patch.Name = &trimmed
	}
	if patch.Category != nil && !model.IsValidCategory(*patch.Category) {
		return validationf("неизвестная категория %q", *patch.Category)
	}
	if patch.IsEmpty() {
		return nil
	}

	current, err := s.items.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("блюдо %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("получение блюда: %w", err)
	}
	if patch.Active != nil && *patch.Active && !current.Active {
		return validationf("восстановление из архива запрещено, создайте блюдо заново")
	}

	err = s.items.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("блюдо %s: %w", id, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return validationf("активное блюдо с таким названием уже есть")
	case err != nil:
		return fmt.Errorf("изменение блюда: %w", err)
	}
	return nil
}

// Archive помечает блюдо неактивным. Заказы и назначения не меняются.
func (s *MenuService) Archive(ctx context.Context, id string) error {
	active := false
	if _, err := uuid.Parse(id); err != nil {
		return validationf("некорректный id %q", id)
	}
	err := s.items.Update(ctx, id, model.MenuItemPatch{Active: &active})
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("блюдо %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("архивирование блюда: %w", err)
	}
	s.logger.Info("Блюдо перемещено в архив", slog.String("id", id))
	return nil
}

// HardDelete физически удаляет блюдо. ErrConflict, если на него
// ссылаются заказы или назначения.
func (s *MenuService) HardDelete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationf("некорректный id %q", id)
	}
	err := s.items.Delete(ctx, id)
	switch {
	case errors.Is(err, repository.ErrReferenced):
		return fmt.Errorf("блюдо %s: %w", id, ErrConflict)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("блюдо %s: %w", id, ErrNotFound)
	case err != nil:
		return fmt.Errorf("удаление блюда: %w", err)
	}
	s.logger.Info("Блюдо удалено", slog.String("id", id))
	return nil
}
