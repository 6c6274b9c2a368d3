// Пакет dbtest - запуск PostgreSQL в Docker (testcontainers) для
// интеграционных тестов. Тесты пропускаются без TEST_INTEGRATION.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ngriffiths19/lunch-planner/internal/config"
)

// Config запускает контейнер PostgreSQL и возвращает конфигурацию,
// указывающую на него. Контейнер останавливается в t.Cleanup.
func Config(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("lunch_test"),
		postgres.WithUsername("lunch"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("LP_DB_HOST", host)
	t.Setenv("LP_DB_PORT", port.Port())
	t.Setenv("LP_DB_NAME", "lunch_test")
	t.Setenv("LP_DB_USER", "lunch")
	t.Setenv("LP_DB_PASSWORD", "test-password")
	t.Setenv("LP_DB_SSL_MODE", "disable")
	t.Setenv("LP_KEYCLOAK_URL", "http://localhost:8080")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// Pool запускает PostgreSQL, применяет миграции через migrate и
// возвращает пул подключений.
func Pool(t *testing.T, migrate func(*config.Config, *slog.Logger) error, connect func(context.Context, *config.Config, *slog.Logger) (*pgxpool.Pool, error)) *pgxpool.Pool {
	t.Helper()

	cfg := Config(t)
	logger := Logger()

	if err := migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// Logger возвращает логгер, отбрасывающий вывод.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
