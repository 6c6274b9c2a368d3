package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ngriffiths19/lunch-planner/internal/auth"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

const (
	testKeyID  = "test-key-lp"
	testIssuer = "https://keycloak.test/realms/lunch"
)

// fakeRoleStore - in-memory RoleStore.
type fakeRoleStore struct {
	mu       sync.Mutex
	roles    map[string]string
	getErr   error
	setCalls int
}

func newFakeRoleStore(roles map[string]string) *fakeRoleStore {
	if roles == nil {
		roles = map[string]string{}
	}
	return &fakeRoleStore{roles: roles}
}

func (f *fakeRoleStore) Get(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	role, ok := f.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Profile{ID: id, Role: role}, nil
}

func (f *fakeRoleStore) SetRole(_ context.Context, id, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.roles[id] = role
	return nil
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver(t *testing.T, key *rsa.PrivateKey, sessions *auth.SessionManager) *IdentityResolver {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}
	return NewIdentityResolverWithKeyfunc(kf, testIssuer, sessions, testLogger())
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func userClaims(sub, email string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                sub,
		"email":              email,
		"preferred_username": "user-" + sub,
		"iss":                testIssuer,
		"exp":                jwt.NewNumericDate(exp),
		"iat":                jwt.NewNumericDate(time.Now()),
	}
}

func TestResolve_Bearer(t *testing.T) {
	key := generateTestKey(t)
	ir := newTestResolver(t, key, nil)

	token := signToken(t, key, userClaims("u1", "u1@example.com", time.Now().Add(time.Hour)))
	req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	p := ir.Resolve(req)
	if p == nil {
		t.Fatal("Resolve() = nil для валидного токена")
	}
	if p.ID != "u1" || p.Email != "u1@example.com" || p.Name != "user-u1" {
		t.Errorf("Principal = %+v", p)
	}
}

func TestResolve_InvalidInputsGiveNil(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	ir := newTestResolver(t, key, nil)

	wrongIssuer := userClaims("u1", "u1@example.com", time.Now().Add(time.Hour))
	wrongIssuer["iss"] = "https://evil.test/realms/lunch"
	noSub := userClaims("", "u1@example.com", time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		header string
	}{
		{"нет заголовка", ""},
		{"не Bearer", "Basic dXNlcjpwYXNz"},
		{"пустой токен", "Bearer "},
		{"мусор", "Bearer not-a-jwt"},
		{"просрочен", "Bearer " + signToken(t, key, userClaims("u1", "e", time.Now().Add(-time.Hour)))},
		{"чужой ключ", "Bearer " + signToken(t, otherKey, userClaims("u1", "e", time.Now().Add(time.Hour)))},
		{"чужой issuer", "Bearer " + signToken(t, key, wrongIssuer)},
		{"без sub", "Bearer " + signToken(t, key, noSub)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if p := ir.Resolve(req); p != nil {
				t.Errorf("Resolve() = %+v, ожидался nil", p)
			}
		})
	}
}

func TestResolve_SessionCookie(t *testing.T) {
	key := generateTestKey(t)
	sm, err := auth.NewSessionManager("test-secret", false)
	if err != nil {
		t.Fatal(err)
	}
	ir := newTestResolver(t, key, sm)

	claims := userClaims("u2", "", time.Now().Add(time.Hour))
	delete(claims, "email")
	session := &auth.SessionData{
		AccessToken: signToken(t, key, claims),
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		Email:       "u2@example.com",
	}

	rec := httptest.NewRecorder()
	if err := sm.SetSessionCookie(rec, session); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	p := ir.Resolve(req)
	if p == nil {
		t.Fatal("Resolve() = nil для валидного cookie")
	}
	if p.ID != "u2" || p.Email != "u2@example.com" {
		t.Errorf("Principal = %+v, ожидался u2 с email из сессии", p)
	}

	t.Run("битый cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "garbage"})
		if p := ir.Resolve(req); p != nil {
			t.Errorf("Resolve() = %+v, ожидался nil", p)
		}
	})

	t.Run("Bearer приоритетнее cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		req.Header.Set("Authorization", "Bearer "+signToken(t, key, userClaims("u3", "u3@example.com", time.Now().Add(time.Hour))))
		p := ir.Resolve(req)
		if p == nil || p.ID != "u3" {
			t.Errorf("Resolve() = %+v, ожидался u3", p)
		}
	})

	headers := map[string]string{
		"невалидный Bearer":   "Bearer not-a-jwt",
		"просроченный Bearer": "Bearer " + signToken(t, key, userClaims("u3", "u3@example.com", time.Now().Add(-time.Hour))),
		"пустой Bearer":       "Bearer ",
		"Basic":               "Basic dXNlcjpwYXNz",
	}
	for name, header := range headers {
		t.Run(name+" и валидный cookie", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for _, c := range rec.Result().Cookies() {
				req.AddCookie(c)
			}
			req.Header.Set("Authorization", header)
			p := ir.Resolve(req)
			if p == nil || p.ID != "u2" {
				t.Errorf("Resolve() = %+v, ожидался u2 из cookie", p)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	master := rbac.NewMasterAdmins([]string{"Boss@Example.com"})

	tests := []struct {
		name      string
		principal *model.Principal
		stored    map[string]string
		allowed   []string
		status    int
		role      string
	}{
		{"аноним", nil, nil, nil, http.StatusUnauthorized, ""},
		{"staff без профиля, только аутентификация", &model.Principal{ID: "u1"}, nil, nil, http.StatusOK, rbac.RoleStaff},
		{"staff на catering-маршруте", &model.Principal{ID: "u1"}, map[string]string{"u1": "staff"}, []string{rbac.RoleCatering, rbac.RoleAdmin}, http.StatusForbidden, ""},
		{"профиль отсутствует = staff", &model.Principal{ID: "u1"}, nil, []string{rbac.RoleAdmin}, http.StatusForbidden, ""},
		{"catering на catering-маршруте", &model.Principal{ID: "u2"}, map[string]string{"u2": "catering"}, []string{rbac.RoleCatering, rbac.RoleAdmin}, http.StatusOK, rbac.RoleCatering},
		{"admin", &model.Principal{ID: "u3"}, map[string]string{"u3": "admin"}, []string{rbac.RoleAdmin}, http.StatusOK, rbac.RoleAdmin},
		{"master admin со staff", &model.Principal{ID: "m1", Email: "boss@example.COM"}, map[string]string{"m1": "staff"}, []string{rbac.RoleAdmin}, http.StatusOK, rbac.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeRoleStore(tt.stored)
			g := NewRoleGuard(store, master, testLogger())

			d, status := g.Authorize(ctx, tt.principal, tt.allowed...)
			if status != tt.status {
				t.Fatalf("status = %d, ожидали %d", status, tt.status)
			}
			if tt.status != http.StatusOK {
				if d != nil {
					t.Errorf("Decision = %+v при отказе", d)
				}
				return
			}
			if d.Role != tt.role || d.UserID != tt.principal.ID {
				t.Errorf("Decision = %+v, ожидали роль %s", d, tt.role)
			}
		})
	}
}

func TestAuthorize_MasterAdminProvisionsRole(t *testing.T) {
	store := newFakeRoleStore(map[string]string{"m1": "staff"})
	g := NewRoleGuard(store, rbac.NewMasterAdmins([]string{"boss@example.com"}), testLogger())
	p := &model.Principal{ID: "m1", Email: "boss@example.com"}

	for range 2 {
		if _, status := g.Authorize(context.Background(), p, rbac.RoleAdmin); status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
	}
	if store.roles["m1"] != rbac.RoleAdmin {
		t.Errorf("роль после bypass = %q, ожидали admin", store.roles["m1"])
	}

	// Новый master-администратор без профиля тоже получает admin.
	p2 := &model.Principal{ID: "m2", Email: "BOSS@example.com"}
	if _, status := g.Authorize(context.Background(), p2, rbac.RoleAdmin); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if store.roles["m2"] != rbac.RoleAdmin {
		t.Errorf("роль m2 = %q, ожидали admin", store.roles["m2"])
	}
}

func TestAuthorize_StoreError(t *testing.T) {
	store := newFakeRoleStore(nil)
	store.getErr = errors.New("db down")
	g := NewRoleGuard(store, nil, testLogger())

	_, status := g.Authorize(context.Background(), &model.Principal{ID: "u1"}, rbac.RoleAdmin)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, ожидали 500", status)
	}
}

func TestRequire_Middleware(t *testing.T) {
	key := generateTestKey(t)
	ir := newTestResolver(t, key, nil)
	store := newFakeRoleStore(map[string]string{"staff1": "staff", "cat1": "catering"})
	g := NewRoleGuard(store, nil, testLogger())

	r := chi.NewRouter()
	r.Use(ir.Middleware())
	r.With(g.Require(rbac.RoleCatering, rbac.RoleAdmin)).Get("/catering", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})
	r.With(g.Require()).Get("/self", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	})

	bearer := func(sub string) string {
		return "Bearer " + signToken(t, key, userClaims(sub, sub+"@example.com", time.Now().Add(time.Hour)))
	}

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
		body   string
	}{
		{"аноним → 401", "/catering", "", http.StatusUnauthorized, ""},
		{"staff → 403", "/catering", bearer("staff1"), http.StatusForbidden, ""},
		{"catering → 200", "/catering", bearer("cat1"), http.StatusOK, "cat1"},
		{"staff на self → 200", "/self", bearer("staff1"), http.StatusOK, "staff1"},
		{"аноним на self → 401", "/self", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, ожидали %d", rec.Code, tt.status)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("body = %q, ожидали %q", rec.Body.String(), tt.body)
			}
			if tt.status == http.StatusForbidden {
				var body map[string]string
				_ = json.Unmarshal(rec.Body.Bytes(), &body)
				if body["error"] != "Forbidden" {
					t.Errorf("тело 403 = %v, ожидали {error: Forbidden}", body)
				}
			}
		})
	}
}

func TestKeycloakReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	jwks := buildJWKSetJSON(&key.PublicKey, testKeyID)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  string
	}{
		{"ok", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(jwks) }, "ok"},
		{"нет ключей", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"keys":[]}`)) }, "degraded"},
		{"500", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			checker, err := NewKeycloakReadinessChecker(srv.URL, "", 2*time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if status, msg := checker.CheckReady(); status != tt.status {
				t.Errorf("CheckReady() = %s (%s), ожидали %s", status, msg, tt.status)
			}
		})
	}
}

func TestMetricsAndLogging(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestLogger(testLogger()), MetricsMiddleware())
	r.Get("/api/menu", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("x"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu?all=1", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, ожидали 418", rec.Code)
	}
}
