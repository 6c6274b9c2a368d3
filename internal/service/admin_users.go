// admin_users.go - список пользователей IdP с данными профилей и
// управление ролями (только admin).
package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// directoryPageSize - сколько пользователей IdP показывается в списке.
const directoryPageSize = 200

// AdminUserService - сервис управления пользователями.
// Keycloak - источник учётных записей, profiles - источник ролей.
type AdminUserService struct {
	directory UserDirectory
	profiles  repository.ProfileRepository
	roles     *ProfileService
	logger    *slog.Logger
}

// NewAdminUserService создаёт сервис управления пользователями.
func NewAdminUserService(
	directory UserDirectory,
	profiles repository.ProfileRepository,
	roles *ProfileService,
	logger *slog.Logger,
) *AdminUserService {
	return &AdminUserService{
		directory: directory,
		profiles:  profiles,
		roles:     roles,
		logger:    logger.With(slog.String("component", "admin_users_service")),
	}
}

// ListUsers возвращает первые 200 пользователей IdP, дополненные
// данными профиля (роль staff, если профиля нет), по email.
func (s *AdminUserService) ListUsers(ctx context.Context) ([]model.DirectoryUser, error) {
	kcUsers, err := s.directory.ListUsers(ctx, "", 0, directoryPageSize)
	if err != nil {
		s.logger.Error("Ошибка получения пользователей из Keycloak",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrIDPUnavailable, err)
	}

	ids := make([]string, len(kcUsers))
	for i, u := range kcUsers {
		ids[i] = u.ID
	}
	profiles, err := s.profiles.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("получение профилей: %w", err)
	}
	byID := make(map[string]*model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	users := make([]model.DirectoryUser, 0, len(kcUsers))
	for _, u := range kcUsers {
		du := model.DirectoryUser{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Enabled:   u.Enabled,
			Role:      rbac.DefaultRole,
		}
		if p, ok := byID[u.ID]; ok {
			du.Name = p.Name
			du.Role = rbac.EffectiveRole(&p.Role)
			du.LocationID = p.LocationID
			du.LunchSession = p.LunchSession
		}
		users = append(users, du)
	}

	slices.SortStableFunc(users, func(a, b model.DirectoryUser) int {
		return cmp.Or(cmp.Compare(a.Email, b.Email), cmp.Compare(a.ID, b.ID))
	})
	return users, nil
}

// SetRole назначает роль пользователю.
func (s *AdminUserService) SetRole(ctx context.Context, actorID, userID, role string) error {
	return s.roles.SetRole(ctx, actorID, userID, role)
}
