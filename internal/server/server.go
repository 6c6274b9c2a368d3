// Пакет server - HTTP-сервер Lunch Planner с graceful shutdown.
// Без TLS - TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ngriffiths19/lunch-planner/internal/api/handlers"
	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/config"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
)

// Server - HTTP-сервер Lunch Planner.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Routes - обработчики и middleware для маршрутизатора.
// Auth может быть nil: тогда /auth/* не регистрируются.
type Routes struct {
	API      *handlers.APIHandler
	Auth     *handlers.AuthHandler
	Health   *handlers.HealthHandler
	Identity *middleware.IdentityResolver
	Guard    *middleware.RoleGuard
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, routes Routes) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, routes),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-маршрутизатор.
// Identity резолвится для всех запросов; роли проверяет Guard на группах маршрутов.
func NewRouter(logger *slog.Logger, routes Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.RequestLogger(logger))

	if routes.Health != nil {
		r.Get("/health/live", routes.Health.HealthLive)
		r.Get("/health/ready", routes.Health.HealthReady)
		r.Get("/metrics", routes.Health.GetMetrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(routes.Identity.Middleware())

		if routes.Auth != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Get("/login", routes.Auth.HandleLogin)
				r.Get("/callback", routes.Auth.HandleCallback)
				r.Post("/logout", routes.Auth.HandleLogout)
				r.Post("/refresh", routes.Auth.HandleRefresh)
			})
		}

		r.Route("/api", func(r chi.Router) {
			api, guard := routes.API, routes.Guard

			r.Get("/menu", api.ListMenu)
			r.Get("/whoami", api.Whoami)

			// Любой аутентифицированный пользователь, только свои данные.
			r.Group(func(r chi.Router) {
				r.Use(guard.Require())
				r.Get("/plan", api.GetPlan)
				r.Post("/plan", api.SavePlan)
				r.Get("/profile", api.GetProfile)
				r.Post("/profile", api.UpdateProfile)
			})

			r.Group(func(r chi.Router) {
				r.Use(guard.Require(rbac.RoleCatering, rbac.RoleAdmin))
				r.Post("/menu", api.UpsertMenu)
				r.Patch("/menu", api.PatchMenu)
				r.Delete("/menu", api.DeleteMenu)
				r.Get("/daily-menu", api.GetDailyMenu)
				r.Post("/daily-menu", api.SetDailyMenu)
				r.Get("/kitchen-week", api.KitchenWeek)
				r.Get("/kitchen", api.KitchenSummary)
			})

			r.Group(func(r chi.Router) {
				r.Use(guard.Require(rbac.RoleAdmin))
				r.Patch("/profile", api.SetProfileRole)
				r.Get("/admin/users", api.ListAdminUsers)
				r.Patch("/admin/users", api.SetAdminUserRole)
			})
		})
	})

	return r
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
