package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
	"github.com/ngriffiths19/lunch-planner/internal/keycloak"
	"github.com/ngriffiths19/lunch-planner/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- menu_items ---

type fakeMenuItems struct {
	mu    sync.Mutex
	items map[string]*model.MenuItem
	// referenced - id, на которые ссылаются заказы или назначения
	referenced map[string]bool
	// insertConflictOnce - Insert вернёт ErrConflict один раз
	insertConflictOnce bool
}

func newFakeMenuItems(items ...model.MenuItem) *fakeMenuItems {
	f := &fakeMenuItems{items: map[string]*model.MenuItem{}, referenced: map[string]bool{}}
	for i := range items {
		it := items[i]
		f.items[it.ID] = &it
	}
	return f
}

func (f *fakeMenuItems) List(_ context.Context, includeInactive bool) ([]model.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.MenuItem
	for _, it := range f.items {
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

func (f *fakeMenuItems) GetByID(_ context.Context, id string) (*model.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (f *fakeMenuItems) GetByIDs(_ context.Context, ids []string) (map[string]model.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]model.MenuItem{}
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out[id] = *it
		}
	}
	return out, nil
}

func (f *fakeMenuItems) FindByName(_ context.Context, name string) (*model.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *model.MenuItem
	for _, it := range f.items {
		if !strings.EqualFold(it.Name, name) {
			continue
		}
		if found == nil || (it.Active && !found.Active) {
			found = it
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	c := *found
	return &c, nil
}

func (f *fakeMenuItems) activeNameTaken(name, exceptID string) bool {
	for id, it := range f.items {
		if id != exceptID && it.Active && strings.EqualFold(it.Name, name) {
			return true
		}
	}
	return false
}

func (f *fakeMenuItems) Insert(_ context.Context, item *model.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertConflictOnce {
		f.insertConflictOnce = false
		return repository.ErrConflict
	}
	if f.activeNameTaken(item.Name, "") {
		return repository.ErrConflict
	}
	c := *item
	f.items[item.ID] = &c
	return nil
}

func (f *fakeMenuItems) Update(_ context.Context, id string, patch model.MenuItemPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Name != nil && it.Active && f.activeNameTaken(*patch.Name, id) {
		return repository.ErrConflict
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

func (f *fakeMenuItems) Reactivate(_ context.Context, id, name string, category *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.Name = name
	it.Active = true
	if category != nil {
		it.Category = *category
	}
	return nil
}

func (f *fakeMenuItems) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	if f.referenced[id] {
		return repository.ErrReferenced
	}
	delete(f.items, id)
	return nil
}

func (f *fakeMenuItems) activeCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if it.Active && strings.EqualFold(it.Name, name) {
			n++
		}
	}
	return n
}

// --- daily_menu ---

type fakeDailyMenu struct {
	mu    sync.Mutex
	known map[string]bool
	// days[location][date] = item ids
	days  map[string]map[string][]string
	calls int
}

func newFakeDailyMenu(knownIDs ...string) *fakeDailyMenu {
	f := &fakeDailyMenu{known: map[string]bool{}, days: map[string]map[string][]string{}}
	for _, id := range knownIDs {
		f.known[id] = true
	}
	return f
}

func (f *fakeDailyMenu) ListRange(_ context.Context, locationID string, dr model.DateRange) ([]model.DayOptions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.DayOptions
	for date, ids := range f.days[locationID] {
		if dr.Contains(date) && len(ids) > 0 {
			out = append(out, model.DayOptions{Date: date, ItemIDs: append([]string(nil), ids...)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeDailyMenu) ReplaceDays(_ context.Context, locationID string, days []model.DayOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, d := range days {
		for _, id := range d.ItemIDs {
			if !f.known[id] {
				return repository.ErrDanglingReference
			}
		}
	}
	if f.days[locationID] == nil {
		f.days[locationID] = map[string][]string{}
	}
	for _, d := range days {
		f.days[locationID][d.Date] = append([]string(nil), d.ItemIDs...)
	}
	return nil
}

// --- plans ---

type planKey struct{ user, location, date string }

type fakePlans struct {
	mu    sync.Mutex
	items *fakeMenuItems
	lines map[planKey][]string
	calls int
}

func newFakePlans(items *fakeMenuItems) *fakePlans {
	return &fakePlans{items: items, lines: map[planKey][]string{}}
}

func (f *fakePlans) ListMine(_ context.Context, userID, locationID string, dr model.DateRange) ([]model.PlannedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PlannedItem
	for k, ids := range f.lines {
		if k.user != userID || k.location != locationID || !dr.Contains(k.date) {
			continue
		}
		for _, id := range ids {
			out = append(out, model.PlannedItem{Date: k.date, Item: *f.items.items[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Item.Category < out[j].Item.Category
	})
	return out, nil
}

func (f *fakePlans) ReplaceDay(ctx context.Context, userID, locationID, date string, itemIDs []string) error {
	lines := make([]model.PlanLine, len(itemIDs))
	for i, id := range itemIDs {
		lines[i] = model.PlanLine{Date: date, ItemID: id}
	}
	return f.ReplaceLines(ctx, userID, locationID, nil, lines)
}

func (f *fakePlans) ReplaceLines(_ context.Context, userID, locationID string, clear *model.DateRange, lines []model.PlanLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, l := range lines {
		if _, ok := f.items.items[l.ItemID]; !ok {
			return repository.ErrDanglingReference
		}
	}
	if clear != nil {
		for k := range f.lines {
			if k.user == userID && k.location == locationID && clear.Contains(k.date) {
				delete(f.lines, k)
			}
		}
	}
	replaced := map[planKey]bool{}
	for _, l := range lines {
		k := planKey{userID, locationID, l.Date}
		if !replaced[k] {
			f.lines[k] = nil
			replaced[k] = true
		}
		f.lines[k] = append(f.lines[k], l.ItemID)
	}
	return nil
}

// --- profiles ---

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func newFakeProfiles(ps ...model.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]*model.Profile{}}
	for i := range ps {
		p := ps[i]
		f.profiles[p.ID] = &p
	}
	return f
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeProfiles) ListByIDs(_ context.Context, ids []string) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Profile
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeProfiles) ensure(id string) *model.Profile {
	p, ok := f.profiles[id]
	if !ok {
		p = &model.Profile{ID: id, Role: "staff"}
		f.profiles[id] = p
	}
	return p
}

func (f *fakeProfiles) Ensure(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(id)
	return nil
}

func (f *fakeProfiles) ApplyPatch(_ context.Context, id string, patch model.ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.ensure(id)
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

func (f *fakeProfiles) SetRole(_ context.Context, id, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(id).Role = role
	return nil
}

// --- kitchen ---

type fakeKitchenRows struct {
	rows []model.KitchenRow
	got  model.DateRange
}

func (f *fakeKitchenRows) Rows(_ context.Context, _ string, dr model.DateRange) ([]model.KitchenRow, error) {
	f.got = dr
	var out []model.KitchenRow
	for _, r := range f.rows {
		if dr.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- directory ---

type fakeDirectory struct {
	users []keycloak.User
	err   error
	calls int
}

func (f *fakeDirectory) ListUsers(_ context.Context, _ string, first, max int) ([]keycloak.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if first >= len(f.users) {
		return []keycloak.User{}, nil
	}
	end := min(first+max, len(f.users))
	return f.users[first:end], nil
}

func strPtr(s string) *string { return &s }
