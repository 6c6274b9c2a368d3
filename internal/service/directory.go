// directory.go - каталог пользователей IdP с кешем страниц.
// Страницы Keycloak Admin API кешируются в expirable LRU на короткий TTL,
// чтобы повторные открытия списка пользователей не нагружали Keycloak.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ngriffiths19/lunch-planner/internal/keycloak"
)

var (
	directoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lp_directory_cache_hits_total",
		Help: "Попадания в кеш каталога пользователей IdP",
	})
	directoryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lp_directory_cache_misses_total",
		Help: "Промахи кеша каталога пользователей IdP",
	})
)

// UserDirectory - источник пользователей IdP. Реализуется keycloak.Client.
type UserDirectory interface {
	ListUsers(ctx context.Context, query string, first, max int) ([]keycloak.User, error)
}

// CachedDirectory - UserDirectory с кешем страниц.
type CachedDirectory struct {
	next   UserDirectory
	cache  *expirable.LRU[string, []keycloak.User]
	logger *slog.Logger
}

// NewCachedDirectory создаёт кеширующую обёртку.
// size - число страниц в кеше, ttl - время жизни записи.
func NewCachedDirectory(next UserDirectory, size int, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		cache:  expirable.NewLRU[string, []keycloak.User](size, nil, ttl),
		logger: logger.With(slog.String("component", "directory_cache")),
	}
}

// ListUsers возвращает страницу пользователей из кеша или из IdP.
// Ошибки IdP не кешируются.
func (d *CachedDirectory) ListUsers(ctx context.Context, query string, first, max int) ([]keycloak.User, error) {
	key := fmt.Sprintf("%s|%d|%d", query, first, max)
	if users, ok := d.cache.Get(key); ok {
		directoryCacheHits.Inc()
		return users, nil
	}
	directoryCacheMisses.Inc()

	users, err := d.next.ListUsers(ctx, query, first, max)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, users)
	d.logger.Debug("Страница пользователей IdP закеширована",
		slog.String("key", key),
		slog.Int("users", len(users)),
	)
	return users, nil
}
