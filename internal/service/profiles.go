// profiles.go - профиль пользователя: самостоятельное изменение
// (без роли) и назначение роли администратором.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// ProfileService - сервис профилей.
type ProfileService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(profiles repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "profile_service")),
	}
}

// Get возвращает профиль пользователя или nil, если он ещё не создан.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("получение профиля: %w", err)
	}
	return p, nil
}

// UpsertSelf создаёт профиль при отсутствии и применяет только
// переданные поля; явный null очищает поле. noChange = true, если
// патч пуст (профиль при этом всё равно создаётся).
func (s *ProfileService) UpsertSelf(ctx context.Context, userID string, patch model.ProfilePatch) (noChange bool, err error) {
	if ls := patch.LunchSession; ls.Set && ls.Value != nil && !model.IsValidSession(*ls.Value) {
		return false, validationf("lunchSession: допустимы %s, %s или null", model.Session1230, model.Session1300)
	}

	if patch.IsEmpty() {
		if err := s.profiles.Ensure(ctx, userID); err != nil {
			return false, fmt.Errorf("создание профиля: %w", err)
		}
		return true, nil
	}

	if err := s.profiles.ApplyPatch(ctx, userID, patch); err != nil {
		return false, fmt.Errorf("изменение профиля: %w", err)
	}
	s.logger.Debug("Профиль обновлён", slog.String("user_id", userID))
	return false, nil
}

// SetRole назначает роль пользователю (создаёт профиль при отсутствии).
// actorID - администратор, выполняющий изменение (для журнала).
func (s *ProfileService) SetRole(ctx context.Context, actorID, userID, role string) error {
	if userID == "" {
		return validationf("id обязателен")
	}
	if !rbac.IsValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if err := s.profiles.SetRole(ctx, userID, role); err != nil {
		return fmt.Errorf("назначение роли: %w", err)
	}

	s.logger.Info("Роль пользователя изменена",
		slog.String("user_id", userID),
		slog.String("role", role),
		slog.String("changed_by", actorID),
	)
	return nil
}
