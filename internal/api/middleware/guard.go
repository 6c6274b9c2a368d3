// guard.go - проверка роли для каждого запроса.
// Решение не кешируется: роль читается из profiles при каждом вызове.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

// RoleStore - источник ролей. Реализуется repository.ProfileRepository.
type RoleStore interface {
	// Get возвращает профиль; repository.ErrNotFound, если его нет.
	Get(ctx context.Context, id string) (*model.Profile, error)
	// SetRole создаёт или обновляет роль пользователя.
	SetRole(ctx context.Context, id, role string) error
}

// Decision - результат успешной авторизации.
type Decision struct {
	// UserID - sub аутентифицированного пользователя.
	UserID string
	// Email - email из токена.
	Email string
	// Role - роль, с которой запрос допущен.
	Role string
	// MasterAdmin - допуск получен через список master-администраторов.
	MasterAdmin bool
}

// RoleGuard принимает решение 401/403/допуск по Principal и набору ролей.
type RoleGuard struct {
	roles  RoleStore
	master *rbac.MasterAdmins
	logger *slog.Logger
}

// NewRoleGuard создаёт guard. master - неизменяемый список master-администраторов.
func NewRoleGuard(roles RoleStore, master *rbac.MasterAdmins, logger *slog.Logger) *RoleGuard {
	return &RoleGuard{
		roles:  roles,
		master: master,
		logger: logger.With(slog.String("component", "role_guard")),
	}
}

// Authorize возвращает Decision или HTTP-статус отказа (401, 403, 500).
// Пустой allowed допускает любого аутентифицированного пользователя.
//
// Для master-администратора роль в profiles выставляется в admin
// (идемпотентно), после чего запрос допускается независимо от allowed.
func (g *RoleGuard) Authorize(ctx context.Context, p *model.Principal, allowed ...string) (*Decision, int) {
	if p == nil || p.ID == "" {
		return nil, http.StatusUnauthorized
	}

	if g.master.Contains(p.Email) {
		if err := g.roles.SetRole(ctx, p.ID, rbac.RoleAdmin); err != nil {
			g.logger.Error("Ошибка назначения роли master-администратору",
				slog.String("user_id", p.ID),
				slog.String("error", err.Error()),
			)
			return nil, http.StatusInternalServerError
		}
		return &Decision{UserID: p.ID, Email: p.Email, Role: rbac.RoleAdmin, MasterAdmin: true}, http.StatusOK
	}

	var stored *string
	profile, err := g.roles.Get(ctx, p.ID)
	switch {
	case err == nil:
		stored = &profile.Role
	case errors.Is(err, repository.ErrNotFound):
	default:
		g.logger.Error("Ошибка получения роли",
			slog.String("user_id", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, http.StatusInternalServerError
	}

	role := rbac.EffectiveRole(stored)
	if !rbac.Allowed(role, allowed) {
		g.logger.Debug("Доступ запрещён",
			slog.String("user_id", p.ID),
			slog.String("role", role),
		)
		return nil, http.StatusForbidden
	}
	return &Decision{UserID: p.ID, Email: p.Email, Role: role}, http.StatusOK
}

// Require возвращает middleware, требующий одну из ролей.
// Без ролей - только аутентификация. Должен использоваться ПОСЛЕ
// IdentityResolver.Middleware().
func (g *RoleGuard) Require(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, status := g.Authorize(r.Context(), PrincipalFromContext(r.Context()), roles...)
			authDecisionsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
			switch status {
			case http.StatusOK:
				next.ServeHTTP(w, r.WithContext(WithDecision(r.Context(), decision)))
			case http.StatusUnauthorized:
				apierrors.Unauthorized(w)
			case http.StatusForbidden:
				apierrors.Forbidden(w)
			default:
				apierrors.InternalError(w)
			}
		})
	}
}

// WithDecision возвращает контекст с результатом авторизации.
func WithDecision(ctx context.Context, d *Decision) context.Context {
	return context.WithValue(ctx, ContextKeyDecision, d)
}

// DecisionFromContext извлекает Decision из контекста.
// Возвращает nil, если запрос не проходил через RoleGuard.
func DecisionFromContext(ctx context.Context) *Decision {
	d, _ := ctx.Value(ContextKeyDecision).(*Decision)
	return d
}

// UserIDFromContext возвращает id пользователя, допущенного RoleGuard.
// Пустая строка, если Decision в контексте нет.
func UserIDFromContext(ctx context.Context) string {
	if d := DecisionFromContext(ctx); d != nil {
		return d.UserID
	}
	return ""
}
