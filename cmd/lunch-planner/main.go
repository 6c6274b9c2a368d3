// Точка входа Lunch Planner - сервиса заказа обедов.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт репозитории, сервисы и HTTP-обработчики, запускает
// topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ngriffiths19/lunch-planner/internal/api/handlers"
	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/auth"
	"github.com/ngriffiths19/lunch-planner/internal/config"
	"github.com/ngriffiths19/lunch-planner/internal/database"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/keycloak"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
	"github.com/ngriffiths19/lunch-planner/internal/server"
	"github.com/ngriffiths19/lunch-planner/internal/service"
)

func main() {
	// 1. Конфигурация
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("Lunch Planner запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	masterAdmins := rbac.NewMasterAdmins(cfg.MasterAdminEmails)
	if masterAdmins.Len() == 0 {
		logger.Warn("LP_MASTER_ADMIN_EMAILS не задана, назначить первого администратора можно только через БД")
	}

	// 3. Миграции
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. PostgreSQL
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// Проверка здоровья PostgreSQL в topologymetrics идёт через тот же пул.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. HTTP-клиент для Keycloak (с CA, если задан)
	kcHTTPClient, err := middleware.HTTPClientWithCA(cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка загрузки CA-сертификата",
			slog.String("path", cfg.CACertPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// 6. Репозитории
	menuRepo := repository.NewMenuItemRepository(pool)
	dailyMenuRepo := repository.NewDailyMenuRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	kitchenRepo := repository.NewKitchenRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)

	// 7. Сервисы
	profilesSvc := service.NewProfileService(profileRepo, logger)
	var kcClient *keycloak.Client
	svc := handlers.Services{
		Menu:      service.NewMenuService(menuRepo, logger),
		DailyMenu: service.NewDailyMenuService(dailyMenuRepo, logger),
		Plans:     service.NewPlanService(planRepo, menuRepo, logger),
		Kitchen:   service.NewKitchenService(kitchenRepo, logger),
		Profiles:  profilesSvc,
	}

	if cfg.AdminAPIEnabled() {
		kcClient = keycloak.New(
			cfg.KeycloakURL,
			cfg.KeycloakRealm,
			cfg.KeycloakClientID,
			cfg.KeycloakClientSecret,
			kcHTTPClient,
			logger,
		)
		directory := service.NewCachedDirectory(kcClient, cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL, logger)
		svc.AdminUsers = service.NewAdminUserService(directory, profileRepo, profilesSvc, logger)
		logger.Info("Keycloak Admin API клиент создан",
			slog.String("url", cfg.KeycloakURL),
			slog.String("realm", cfg.KeycloakRealm),
		)
	} else {
		logger.Warn("LP_KEYCLOAK_CLIENT_ID не задан, /api/admin/users недоступен")
	}

	apiHandler := handlers.NewAPIHandler(svc, logger)

	// 8. Сессии и вход через браузер
	secureCookie := strings.HasPrefix(cfg.PublicURL, "https")
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, secureCookie)
	if err != nil {
		logger.Error("Ошибка создания Session Manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("LP_SESSION_SECRET не задан, сессии не сохраняются между рестартами")
	}

	// 9. Identity resolver и RoleGuard
	identity, err := middleware.NewIdentityResolver(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		sessions,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания identity resolver", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Identity resolver инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)
	guard := middleware.NewRoleGuard(profileRepo, masterAdmins, logger)

	oidcClient := auth.NewOIDCClient(auth.OIDCConfig{
		KeycloakURL: cfg.KeycloakURL,
		Realm:       cfg.KeycloakRealm,
		ClientID:    cfg.OIDCClientID,
		HTTPClient:  kcHTTPClient,
	})
	authHandler := handlers.NewAuthHandler(oidcClient, sessions, identity, cfg.PublicURL, secureCookie, logger)

	// 10. Readiness
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)
	if kcClient != nil {
		healthHandler.WithAdminAPI(kcClient)
	}

	// 11. topologymetrics
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:       "lunch-planner",
		Group:           cfg.DephealthGroup,
		DB:              pgDB,
		PGConnURL:       cfg.DatabaseURL(),
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		CheckInterval:   cfg.DephealthCheckInterval,
		TLSSkipVerify:   cfg.DephealthTLSSkipVerify,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, server.Routes{
		API:      apiHandler,
		Auth:     authHandler,
		Health:   healthHandler,
		Identity: identity,
		Guard:    guard,
	})
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("Lunch Planner остановлен")
}
