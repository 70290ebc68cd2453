package listview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"testing"
	"time"

	"rosterkit/internal/blob"
	"rosterkit/internal/roster"
	"rosterkit/internal/viewstate"
	"rosterkit/pkg/domain"
)

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// manualClock hands out timers that only fire when the test calls fireAll.
type manualClock struct {
	timers []*manualTimer
}

func (m *manualClock) AfterFunc(_ time.Duration, fn func()) viewstate.Timer {
	t := &manualTimer{fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *manualClock) fireAll() {
	pending := m.timers
	m.timers = nil
	for _, t := range pending {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

func activeUsers(n int) []domain.User {
	users := make([]domain.User, n)
	for i := range users {
		users[i] = domain.User{
			ID:       i + 1,
			Name:     fmt.Sprintf("Member %02d", i+1),
			Email:    fmt.Sprintf("member%02d@example.com", i+1),
			IsActive: true,
			Role:     domain.RoleUser,
		}
	}
	users[0].Name = "Jonas"
	users[0].Role = domain.RoleAdmin
	return users
}

func newController(t *testing.T, seed []domain.User, q string, opts ...Option) (*Controller, *MemoryNavigator, *roster.Store) {
	t.Helper()
	store := roster.New(blob.NewMemory(), roster.WithSeed(seed))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	initial, err := url.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	nav := NewMemoryNavigator(initial)
	c := New(store, nav, opts...)
	c.Sync()
	return c, nav, store
}

func pageIDs(p domain.Page) []int {
	out := make([]int, len(p.Users))
	for i, u := range p.Users {
		out[i] = u.ID
	}
	return out
}

func TestDeleteOnLastPageClampsAndReencodes(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(11), "page=3&itemsPerPage=5&tab=x")
	if got := pageIDs(c.Page()); !reflect.DeepEqual(got, []int{11}) {
		t.Fatalf("page 3 should hold only record 11, got %v", got)
	}
	if _, err := c.Delete(context.Background(), 11); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c.State().CurrentPage != 2 {
		t.Fatalf("expected clamp to page 2, got %d", c.State().CurrentPage)
	}
	if c.Page().TotalCount != 10 || len(c.Page().Users) != 5 {
		t.Fatalf("unexpected page after clamp: %+v", c.Page())
	}
	q := nav.Query()
	if q.Get("page") != "2" || q.Get("tab") != "x" {
		t.Fatalf("navigator not re-encoded: %v", q)
	}
	if c.TotalPages() != 2 {
		t.Fatalf("total pages %d", c.TotalPages())
	}
}

func TestDeleteWithoutOverflowLeavesURL(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(11), "page=1")
	if _, err := c.Delete(context.Background(), 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if nav.Replaced() != 0 {
		t.Fatalf("no clamp means no rewrite, got %d replacements", nav.Replaced())
	}
	if c.Page().TotalCount != 10 {
		t.Fatalf("requery missing after delete")
	}
}

func TestSyncDoesNotClamp(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(11), "page=9")
	if c.State().CurrentPage != 9 || len(c.Page().Users) != 0 {
		t.Fatalf("overflowing page must load empty, got %+v", c.State())
	}
	if nav.Replaced() != 0 {
		t.Fatalf("Sync must not rewrite the location")
	}
}

func TestToggleOutOfActiveFilterClamps(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(6), "page=2&status=1")
	if got := pageIDs(c.Page()); !reflect.DeepEqual(got, []int{6}) {
		t.Fatalf("page 2: %v", got)
	}
	u, err := c.Toggle(context.Background(), 6)
	if err != nil || u.IsActive {
		t.Fatalf("toggle: %+v %v", u, err)
	}
	if c.State().CurrentPage != 1 || nav.Query().Get("page") != "1" {
		t.Fatalf("expected clamp to page 1, state %+v query %v", c.State(), nav.Query())
	}
}

func TestToggleUnderHugePageSizeStaysOnFirstPage(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(12), "itemsPerPage=9223372036854775807&status=0")
	if c.State().CurrentPage != 1 || len(c.Page().Users) != 12 {
		t.Fatalf("unexpected initial view %+v", c.State())
	}
	if _, err := c.Toggle(context.Background(), 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if c.State().CurrentPage != 1 || len(c.Page().Users) != 12 || c.TotalPages() != 1 {
		t.Fatalf("toggle must not move off page 1: state %+v users %d", c.State(), len(c.Page().Users))
	}
	if nav.Replaced() != 0 || nav.Query().Get("page") == "0" {
		t.Fatalf("location rewritten: %v", nav.Query())
	}
	if !c.SetPage(1, c.State().ItemsPerPage) {
		t.Fatalf("page 1 must stay reachable")
	}
}

func TestFilterChangesResetPage(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(11), "page=2&search=member")
	c.SetStatus(domain.StatusAll)
	if c.State().CurrentPage != 1 || nav.Query().Get("status") != "0" || nav.Query().Get("page") != "1" {
		t.Fatalf("status change: %+v %v", c.State(), nav.Query())
	}
	c.SetPage(2, 5)
	c.SetRole(domain.OnlyRole(domain.RoleAdmin))
	if c.State().CurrentPage != 1 || nav.Query().Get("role") != "1" {
		t.Fatalf("role change: %+v %v", c.State(), nav.Query())
	}
	if got := pageIDs(c.Page()); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("only the admin should remain, got %v", got)
	}
	c.SetRole(domain.AllRoles())
	if _, ok := nav.Query()["role"]; ok {
		t.Fatalf("role all must be omitted: %v", nav.Query())
	}
	c.SetPage(3, 5)
	c.SetItemsPerPage(10)
	if c.State().CurrentPage != 1 || nav.Query().Get("itemsPerPage") != "10" {
		t.Fatalf("size change: %+v %v", c.State(), nav.Query())
	}
	c.SetItemsPerPage(0)
	if c.State().ItemsPerPage != 10 {
		t.Fatalf("non-positive size must be ignored")
	}
	if nav.Query().Get("search") != "member" {
		t.Fatalf("search lost: %v", nav.Query())
	}
}

func TestSetPageIgnoresOutOfRange(t *testing.T) {
	c, nav, _ := newController(t, activeUsers(11), "")
	for _, p := range []int{0, -1, 4} {
		if c.SetPage(p, 5) {
			t.Fatalf("page %d should be ignored", p)
		}
	}
	if nav.Replaced() != 0 {
		t.Fatalf("ignored requests must not rewrite the location")
	}
	if !c.SetPage(3, 5) || c.State().CurrentPage != 3 || nav.Query().Get("page") != "3" {
		t.Fatalf("page 3 should apply, state %+v", c.State())
	}
	if !c.SetPage(3, 20) || c.State().CurrentPage != 1 || c.State().ItemsPerPage != 20 {
		t.Fatalf("size change through pagination must reset page, state %+v", c.State())
	}
}

func TestSearchIsDebounced(t *testing.T) {
	clock := &manualClock{}
	var changes []domain.FilterState
	c, nav, _ := newController(t, activeUsers(11), "page=2",
		WithAfterFunc(clock.AfterFunc),
		WithOnChange(func(s domain.FilterState, _ domain.Page) { changes = append(changes, s) }),
	)
	c.SearchInput("j")
	c.SearchInput("jo")
	if c.State().Search != "" || nav.Replaced() != 0 {
		t.Fatalf("search applied before quiet period")
	}
	clock.fireAll()
	if c.State().Search != "jo" || c.State().CurrentPage != 1 {
		t.Fatalf("debounced search not applied: %+v", c.State())
	}
	if got := pageIDs(c.Page()); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("search jo should find Jonas only, got %v", got)
	}
	if nav.Query().Get("search") != "jo" || nav.Query().Get("page") != "1" {
		t.Fatalf("query not encoded: %v", nav.Query())
	}
	if len(changes) != 1 {
		t.Fatalf("expected one change notification, got %d", len(changes))
	}
	c.SearchInput("jo")
	clock.fireAll()
	if len(changes) != 1 {
		t.Fatalf("identical search must not reapply")
	}
	c.SearchInput("")
	c.FlushSearch()
	if c.State().Search != "" || c.Page().TotalCount != 11 {
		t.Fatalf("flush should clear search, state %+v", c.State())
	}
	if _, ok := nav.Query()["search"]; ok {
		t.Fatalf("empty search must be omitted")
	}
	c.SearchInput("zzz")
	c.Close()
	clock.fireAll()
	if c.State().Search != "" {
		t.Fatalf("closed controller applied search")
	}
}

func TestMutationsRequery(t *testing.T) {
	c, _, store := newController(t, activeUsers(3), "")
	ctx := context.Background()
	added, err := c.Add(ctx, domain.User{Name: "New", Email: "new@example.com", IsActive: true})
	if err != nil || added.ID != 4 {
		t.Fatalf("add: %+v %v", added, err)
	}
	if c.Page().TotalCount != 4 {
		t.Fatalf("add not requeried")
	}
	added.IsActive = false
	if err := c.Save(ctx, added); err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.Page().TotalCount != 3 {
		t.Fatalf("save not requeried")
	}
	batch := []domain.User{{ID: 1, Name: "A"}, {ID: 2, Name: "B", IsActive: true}, {ID: 99}}
	if n, err := c.SaveMany(ctx, batch); err != nil || n != 2 {
		t.Fatalf("save many: %d %v", n, err)
	}
	if c.Page().TotalCount != 2 {
		t.Fatalf("bulk save not requeried: %d", c.Page().TotalCount)
	}
	if _, err := c.AddColumn(ctx, 2, domain.Column{Column: "team", Value: "blue"}); err != nil {
		t.Fatalf("add column: %v", err)
	}
	if u, _ := store.GetByID(2); len(u.Children) != 1 {
		t.Fatalf("column not stored")
	}
	if _, err := c.Toggle(ctx, 42); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := c.Save(ctx, domain.User{ID: 42}); !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPageIsACopy(t *testing.T) {
	c, _, store := newController(t, activeUsers(3), "")
	p := c.Page()
	p.Users[0].Name = "mutated"
	if u, _ := store.GetByID(p.Users[0].ID); u.Name == "mutated" {
		t.Fatalf("page leaked store state")
	}
	if c.Page().Users[0].Name == "mutated" {
		t.Fatalf("page leaked controller state")
	}
}

func TestMemoryNavigatorCopies(t *testing.T) {
	initial := url.Values{"a": {"1"}}
	nav := NewMemoryNavigator(initial)
	initial.Set("a", "2")
	q := nav.Query()
	q.Set("a", "3")
	if nav.Query().Get("a") != "1" {
		t.Fatalf("navigator shares state with callers")
	}
	nav.Replace(url.Values{"b": {"x"}})
	if nav.Query().Get("b") != "x" || nav.Replaced() != 1 {
		t.Fatalf("replace failed")
	}
}
