package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/keycloak"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
	"github.com/ngriffiths19/lunch-planner/internal/service"
)

const (
	hotID   = "11111111-1111-4111-8111-111111111111"
	mainID  = "22222222-2222-4222-8222-222222222222"
	sideID  = "33333333-3333-4333-8333-333333333333"
	fruitID = "44444444-4444-4444-8444-444444444444"
	oldID   = "55555555-5555-4555-8555-555555555555"
	usedID  = "66666666-6666-4666-8666-666666666666"
	loc     = "site-1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memMenu - in-memory MenuItemRepository.
type memMenu struct {
	mu    sync.Mutex
	items map[string]*model.MenuItem
	// used - id, на которые ссылаются заказы (Delete → ErrReferenced)
	used map[string]bool
}

func newMemMenu() *memMenu {
	m := &memMenu{items: map[string]*model.MenuItem{}, used: map[string]bool{usedID: true}}
	for _, it := range []model.MenuItem{
		{ID: hotID, Name: "Борщ", Category: model.CategoryHot, Active: true},
		{ID: mainID, Name: "Сэндвич", Category: model.CategoryColdMain, Active: true},
		{ID: sideID, Name: "Салат", Category: model.CategoryColdSide, Active: true},
		{ID: fruitID, Name: "Яблоко", Category: model.CategorySnackFruit, Active: true},
		{ID: oldID, Name: "Солянка", Category: model.CategoryHot, Active: false},
		{ID: usedID, Name: "Плов", Category: model.CategoryHot, Active: true},
	} {
		it := it
		m.items[it.ID] = &it
	}
	return m
}

func (m *memMenu) List(_ context.Context, includeInactive bool) ([]model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MenuItem{}
	for _, it := range m.items {
		if includeInactive || it.Active {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *memMenu) GetByID(_ context.Context, id string) (*model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (m *memMenu) GetByIDs(_ context.Context, ids []string) (map[string]model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]model.MenuItem{}
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = *it
		}
	}
	return out, nil
}

func (m *memMenu) FindByName(_ context.Context, name string) (*model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if strings.EqualFold(it.Name, name) {
			c := *it
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memMenu) Insert(_ context.Context, item *model.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[item.ID] = &c
	return nil
}

func (m *memMenu) Update(_ context.Context, id string, patch model.MenuItemPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Name != nil {
		it.Name = *patch.Name
	}
	if patch.Category != nil {
		it.Category = *patch.Category
	}
	if patch.Active != nil {
		it.Active = *patch.Active
	}
	return nil
}

func (m *memMenu) Reactivate(_ context.Context, id, name string, category *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.Name, it.Active = name, true
	if category != nil {
		it.Category = *category
	}
	return nil
}

func (m *memMenu) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	if m.used[id] {
		return repository.ErrReferenced
	}
	delete(m.items, id)
	return nil
}

// memDaily - in-memory DailyMenuRepository.
type memDaily struct {
	mu   sync.Mutex
	days map[string][]string
}

func (d *memDaily) ListRange(_ context.Context, _ string, dr model.DateRange) ([]model.DayOptions, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.DayOptions{}
	for date, ids := range d.days {
		if dr.Contains(date) {
			out = append(out, model.DayOptions{Date: date, ItemIDs: ids})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (d *memDaily) ReplaceDays(_ context.Context, _ string, days []model.DayOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, day := range days {
		d.days[day.Date] = day.ItemIDs
	}
	return nil
}

// memPlans - in-memory PlanRepository; ключ - user|date.
type memPlans struct {
	mu    sync.Mutex
	menu  *memMenu
	lines map[string][]string
}

func (p *memPlans) ListMine(_ context.Context, userID, _ string, dr model.DateRange) ([]model.PlannedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.PlannedItem
	for k, ids := range p.lines {
		user, date, _ := strings.Cut(k, "|")
		if user != userID || !dr.Contains(date) {
			continue
		}
		for _, id := range ids {
			out = append(out, model.PlannedItem{Date: date, Item: *p.menu.items[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (p *memPlans) ReplaceDay(_ context.Context, userID, _, date string, itemIDs []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines[userID+"|"+date] = itemIDs
	return nil
}

func (p *memPlans) ReplaceLines(_ context.Context, userID, _ string, clear *model.DateRange, lines []model.PlanLine) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if clear != nil {
		for k := range p.lines {
			user, date, _ := strings.Cut(k, "|")
			if user == userID && clear.Contains(date) {
				delete(p.lines, k)
			}
		}
	}
	for _, l := range lines {
		k := userID + "|" + l.Date
		p.lines[k] = append(p.lines[k], l.ItemID)
	}
	return nil
}

// memKitchen - in-memory KitchenRepository.
type memKitchen struct {
	rows []model.KitchenRow
}

func (k *memKitchen) Rows(_ context.Context, _ string, dr model.DateRange) ([]model.KitchenRow, error) {
	var out []model.KitchenRow
	for _, r := range k.rows {
		if dr.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// memProfiles - in-memory ProfileRepository.
type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func (m *memProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *memProfiles) ListByIDs(_ context.Context, ids []string) ([]*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Profile
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memProfiles) ensure(id string) *model.Profile {
	p, ok := m.profiles[id]
	if !ok {
		p = &model.Profile{ID: id, Role: "staff"}
		m.profiles[id] = p
	}
	return p
}

func (m *memProfiles) Ensure(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(id)
	return nil
}

func (m *memProfiles) ApplyPatch(_ context.Context, id string, patch model.ProfilePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.ensure(id)
	if patch.Name.Set {
		p.Name = patch.Name.Value
	}
	if patch.LocationID.Set {
		p.LocationID = patch.LocationID.Value
	}
	if patch.LunchSession.Set {
		p.LunchSession = patch.LunchSession.Value
	}
	return nil
}

func (m *memProfiles) SetRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(id).Role = role
	return nil
}

// memDirectory - каталог пользователей IdP.
type memDirectory struct {
	users []keycloak.User
	err   error
}

func (d *memDirectory) ListUsers(_ context.Context, _ string, _, _ int) ([]keycloak.User, error) {
	return d.users, d.err
}

// testEnv - APIHandler поверх in-memory репозиториев.
type testEnv struct {
	h        *APIHandler
	menu     *memMenu
	daily    *memDaily
	plans    *memPlans
	kitchen  *memKitchen
	profiles *memProfiles
	dir      *memDirectory
}

func newTestEnv() *testEnv {
	logger := testLogger()
	menu := newMemMenu()
	env := &testEnv{
		menu:     menu,
		daily:    &memDaily{days: map[string][]string{}},
		plans:    &memPlans{menu: menu, lines: map[string][]string{}},
		kitchen:  &memKitchen{},
		profiles: &memProfiles{profiles: map[string]*model.Profile{}},
		dir:      &memDirectory{},
	}
	profilesSvc := service.NewProfileService(env.profiles, logger)
	env.h = NewAPIHandler(Services{
		Menu:       service.NewMenuService(menu, logger),
		DailyMenu:  service.NewDailyMenuService(env.daily, logger),
		Plans:      service.NewPlanService(env.plans, menu, logger),
		Kitchen:    service.NewKitchenService(env.kitchen, logger),
		Profiles:   profilesSvc,
		AdminUsers: service.NewAdminUserService(env.dir, env.profiles, profilesSvc, logger),
	}, logger)
	return env
}

// asUser добавляет в контекст запроса Principal и результат авторизации.
func asUser(r *http.Request, id, role string) *http.Request {
	p := &model.Principal{ID: id, Email: id + "@example.com", Name: "User " + id}
	ctx := middleware.WithPrincipal(r.Context(), p)
	ctx = middleware.WithDecision(ctx, &middleware.Decision{UserID: id, Email: p.Email, Role: role})
	return r.WithContext(ctx)
}

func strPtr(s string) *string { return &s }
