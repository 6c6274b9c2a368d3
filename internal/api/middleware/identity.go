// identity.go - определение вызывающего пользователя по запросу.
// Источники в порядке приоритета: заголовок Authorization: Bearer <jwt>,
// затем зашифрованный cookie сессии с access token Keycloak.
// Подпись проверяется через JWKS Keycloak (RS256, issuer, exp с leeway).
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ngriffiths19/lunch-planner/internal/auth"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

// contextKey - тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal - аутентифицированный пользователь в контексте запроса.
	ContextKeyPrincipal contextKey = "principal"
	// ContextKeyDecision - результат авторизации в контексте запроса.
	ContextKeyDecision contextKey = "decision"
)

// keycloakClaims - raw claims из Keycloak JWT.
type keycloakClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// IdentityResolver определяет Principal по Bearer token или cookie сессии.
type IdentityResolver struct {
	jwks      keyfunc.Keyfunc
	sessions  *auth.SessionManager
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// NewIdentityResolver создаёт resolver с JWKS из Keycloak.
// jwksURL - URL к JWKS endpoint Keycloak.
// caCertPath - опциональный путь к CA-сертификату для TLS.
// issuer - ожидаемый issuer JWT (https://keycloak/realms/<realm>).
// sessions - менеджер cookie сессии (может быть nil, тогда только Bearer).
func NewIdentityResolver(
	jwksURL string,
	caCertPath string,
	issuer string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) (*IdentityResolver, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq - стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &IdentityResolver{
		jwks:      k,
		sessions:  sessions,
		logger:    logger.With(slog.String("component", "identity")),
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
	}, nil
}

// NewIdentityResolverWithKeyfunc создаёт resolver с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewIdentityResolverWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *IdentityResolver {
	return &IdentityResolver{
		jwks:     kf,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "identity")),
		issuer:   issuer,
	}
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// HTTPClientWithCA - HTTP-клиент для обращений к Keycloak: с CA из
// caCertPath или стандартный, если путь пуст.
func HTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	if caCertPath == "" {
		return &http.Client{Timeout: timeout}, nil
	}
	return httpClientWithCA(caCertPath, timeout)
}

// Resolve возвращает Principal или nil. Валидный Bearer-токен
// приоритетнее cookie; невалидный или не-Bearer заголовок не мешает
// проверке cookie. Любая ошибка (невалидная подпись, просроченный
// токен, битый cookie) даёт nil.
func (ir *IdentityResolver) Resolve(r *http.Request) *model.Principal {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			if p := ir.principalFromToken(r.Context(), parts[1], "", r.RemoteAddr); p != nil {
				return p
			}
		}
	}

	if ir.sessions == nil {
		return nil
	}
	session, err := ir.sessions.SessionFromRequest(r)
	if err != nil {
		ir.logger.Debug("Cookie сессии не расшифрован",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil
	}
	if session == nil || session.AccessToken == "" {
		return nil
	}
	return ir.principalFromToken(r.Context(), session.AccessToken, session.Email, r.RemoteAddr)
}

// ValidateToken валидирует access token и возвращает Principal или nil.
func (ir *IdentityResolver) ValidateToken(ctx context.Context, token string) *model.Principal {
	return ir.principalFromToken(ctx, token, "", "")
}

// principalFromToken валидирует JWT и строит Principal.
// fallbackEmail используется, если в токене нет claim email.
func (ir *IdentityResolver) principalFromToken(ctx context.Context, tokenString, fallbackEmail, remoteAddr string) *model.Principal {
	rawClaims := &keycloakClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(ir.jwtLeeway),
	}
	if ir.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(ir.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, rawClaims, ir.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil || !token.Valid {
		if err != nil {
			ir.logger.Debug("JWT валидация не пройдена",
				slog.String("error", err.Error()),
				slog.String("remote_addr", remoteAddr),
			)
		}
		return nil
	}

	subject, err := rawClaims.GetSubject()
	if err != nil || subject == "" {
		return nil
	}

	p := &model.Principal{
		ID:    subject,
		Email: rawClaims.Email,
		Name:  rawClaims.Name,
	}
	if p.Email == "" {
		p.Email = fallbackEmail
	}
	if p.Name == "" {
		p.Name = rawClaims.PreferredUsername
	}
	return p
}

// Middleware помещает Principal (или ничего) в контекст запроса.
// Запрос не отклоняется: решение о 401 принимает RoleGuard.
func (ir *IdentityResolver) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p := ir.Resolve(r); p != nil {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// WithPrincipal возвращает контекст с Principal.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil для анонимного запроса.
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*model.Principal)
	return p
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker - проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
func NewKeycloakReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*KeycloakReadinessChecker, error) {
	client, err := HTTPClientWithCA(caCertPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
	}
	return &KeycloakReadinessChecker{jwksURL: jwksURL, client: client}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), k.client.Timeout+time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
