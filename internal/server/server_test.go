package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ngriffiths19/lunch-planner/internal/api/handlers"
	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/domain/rbac"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
	"github.com/ngriffiths19/lunch-planner/internal/service"
)

const (
	testKeyID  = "server-test-key"
	testIssuer = "https://keycloak.test/realms/lunch"
)

// menuStub - каталог из одной позиции; остальные методы не вызываются.
type menuStub struct {
	repository.MenuItemRepository
}

func (menuStub) List(_ context.Context, _ bool) ([]model.MenuItem, error) {
	return []model.MenuItem{{ID: "m1", Name: "Борщ", Category: model.CategoryHot, Active: true}}, nil
}

// planStub - пустая история заказов.
type planStub struct {
	repository.PlanRepository
	mu      sync.Mutex
	askedBy []string
}

func (p *planStub) ListMine(_ context.Context, userID, _ string, _ model.DateRange) ([]model.PlannedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.askedBy = append(p.askedBy, userID)
	return nil, nil
}

// profileStub - роли в памяти.
type profileStub struct {
	repository.ProfileRepository
	mu    sync.Mutex
	roles map[string]string
}

func (p *profileStub) Get(_ context.Context, id string) (*model.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	role, ok := p.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Profile{ID: id, Role: role}, nil
}

func (p *profileStub) SetRole(_ context.Context, id, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[id] = role
	return nil
}

type testRouter struct {
	handler  http.Handler
	key      *rsa.PrivateKey
	plans    *planStub
	profiles *profileStub
}

func newTestRouter(t *testing.T) *testRouter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	jwks, _ := json.Marshal(map[string]any{"keys": []map[string]any{{
		"kty": "RSA", "kid": testKeyID, "use": "sig", "alg": "RS256",
		"n": base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
		"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	}}})
	kf, err := keyfunc.NewJWKSetJSON(jwks)
	if err != nil {
		t.Fatal(err)
	}

	plans := &planStub{}
	profiles := &profileStub{roles: map[string]string{"staff1": rbac.RoleStaff, "cat1": rbac.RoleCatering}}

	api := handlers.NewAPIHandler(handlers.Services{
		Menu:      service.NewMenuService(menuStub{}, logger),
		DailyMenu: service.NewDailyMenuService(nil, logger),
		Plans:     service.NewPlanService(plans, menuStub{}, logger),
		Kitchen:   service.NewKitchenService(nil, logger),
		Profiles:  service.NewProfileService(profiles, logger),
	}, logger)

	routes := Routes{
		API:      api,
		Health:   handlers.NewHealthHandler(nil, nil),
		Identity: middleware.NewIdentityResolverWithKeyfunc(kf, testIssuer, nil, logger),
		Guard:    middleware.NewRoleGuard(profiles, rbac.NewMasterAdmins([]string{"boss@example.com"}), logger),
	}
	return &testRouter{handler: NewRouter(logger, routes), key: key, plans: plans, profiles: profiles}
}

func (tr *testRouter) bearer(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"iss":   testIssuer,
		"exp":   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":   jwt.NewNumericDate(time.Now()),
	})
	token.Header["kid"] = testKeyID
	s, err := token.SignedString(tr.key)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

func (tr *testRouter) do(method, path, body, authz string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterAuthorization(t *testing.T) {
	tr := newTestRouter(t)
	staff := tr.bearer(t, "staff1", "staff1@example.com")
	catering := tr.bearer(t, "cat1", "cat1@example.com")

	cateringOnly := []struct{ method, path string }{
		{http.MethodPost, "/api/menu"},
		{http.MethodPatch, "/api/menu"},
		{http.MethodDelete, "/api/menu?id=x"},
		{http.MethodGet, "/api/daily-menu"},
		{http.MethodPost, "/api/daily-menu"},
		{http.MethodGet, "/api/kitchen-week"},
		{http.MethodGet, "/api/kitchen"},
	}
	adminOnly := []struct{ method, path string }{
		{http.MethodPatch, "/api/profile"},
		{http.MethodGet, "/api/admin/users"},
		{http.MethodPatch, "/api/admin/users"},
	}

	for _, rt := range cateringOnly {
		if rec := tr.do(rt.method, rt.path, "{}", staff); rec.Code != http.StatusForbidden {
			t.Errorf("staff %s %s: status = %d, ожидали 403", rt.method, rt.path, rec.Code)
		}
		if rec := tr.do(rt.method, rt.path, "{}", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("аноним %s %s: status = %d, ожидали 401", rt.method, rt.path, rec.Code)
		}
	}
	for _, rt := range adminOnly {
		if rec := tr.do(rt.method, rt.path, "{}", catering); rec.Code != http.StatusForbidden {
			t.Errorf("catering %s %s: status = %d, ожидали 403", rt.method, rt.path, rec.Code)
		}
	}

	// Ответ 403 не раскрывает роль.
	rec := tr.do(http.MethodGet, "/api/kitchen", "", staff)
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Forbidden"}` {
		t.Errorf("тело 403 = %s", rec.Body.String())
	}
}

func TestRouterSelfAndPublic(t *testing.T) {
	tr := newTestRouter(t)
	staff := tr.bearer(t, "staff1", "staff1@example.com")

	if rec := tr.do(http.MethodGet, "/api/menu", "", ""); rec.Code != http.StatusOK {
		t.Errorf("GET /api/menu анонимно: status = %d", rec.Code)
	}
	if rec := tr.do(http.MethodGet, "/api/whoami", "", ""); strings.TrimSpace(rec.Body.String()) != `{"user":null}` {
		t.Errorf("whoami анонимно = %s", rec.Body.String())
	}
	if rec := tr.do(http.MethodGet, "/api/plan?locationId=site-1&from=2024-06-01&to=2024-06-30", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/plan анонимно: status = %d, ожидали 401", rec.Code)
	}

	rec := tr.do(http.MethodGet, "/api/plan?locationId=site-1&from=2024-06-01&to=2024-06-30&userId=cat1", "", staff)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/plan staff: status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(tr.plans.askedBy) != 1 || tr.plans.askedBy[0] != "staff1" {
		t.Errorf("заказы запрошены для %v, ожидали [staff1]", tr.plans.askedBy)
	}

	if rec := tr.do(http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/health/live: status = %d", rec.Code)
	}
	if rec := tr.do(http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/metrics: status = %d", rec.Code)
	}
}

func TestRouterMasterAdmin(t *testing.T) {
	tr := newTestRouter(t)
	boss := tr.bearer(t, "boss1", "Boss@Example.com")

	// Admin API не настроен - 502, но guard пропустил запрос.
	rec := tr.do(http.MethodGet, "/api/admin/users", "", boss)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, ожидали 502", rec.Code)
	}
	if tr.profiles.roles["boss1"] != rbac.RoleAdmin {
		t.Errorf("роль master-администратора = %q, ожидали admin", tr.profiles.roles["boss1"])
	}
}
