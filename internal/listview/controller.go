// Package listview is the controller behind the user list. It turns list
// events into store mutations and queries, keeps the current page inside the
// valid range, and mirrors the filter state into the navigator's query.
package listview

import (
	"context"
	"sync"
	"time"

	"rosterkit/internal/observability"
	"rosterkit/internal/query"
	"rosterkit/internal/viewstate"
	"rosterkit/pkg/domain"
)

// RecordStore is the part of roster.Store the controller drives.
type RecordStore interface {
	Snapshot() []domain.User
	Add(ctx context.Context, u domain.User) (domain.User, error)
	Update(ctx context.Context, u domain.User) error
	UpdateMany(ctx context.Context, users []domain.User) (int, error)
	ToggleActive(ctx context.Context, id int) (domain.User, error)
	AddColumn(ctx context.Context, id int, col domain.Column) (domain.User, error)
	Delete(ctx context.Context, id int) (int, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQuietPeriod overrides the search debounce period.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.quiet = d
		}
	}
}

// WithAfterFunc replaces the debounce timer source.
func WithAfterFunc(after viewstate.AfterFunc) Option {
	return func(c *Controller) { c.after = after }
}

// WithOnChange registers a callback run after a debounced search is applied.
// The console uses it to redraw.
func WithOnChange(fn func(domain.FilterState, domain.Page)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller holds the list's filter state and last query result.
type Controller struct {
	mu       sync.Mutex
	store    RecordStore
	nav      Navigator
	search   *viewstate.Debouncer
	logger   observability.Logger
	quiet    time.Duration
	after    viewstate.AfterFunc
	onChange func(domain.FilterState, domain.Page)
	state    domain.FilterState
	page     domain.Page
}

// New builds a controller in the default state. Call Sync to pick up the
// navigator's query.
func New(store RecordStore, nav Navigator, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		nav:    nav,
		logger: observability.NopLogger(),
		quiet:  viewstate.SearchQuietPeriod,
		state:  domain.DefaultFilterState(),
		page:   domain.Page{Users: []domain.User{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	var dopts []viewstate.DebounceOption
	if c.after != nil {
		dopts = append(dopts, viewstate.WithAfterFunc(c.after))
	}
	c.search = viewstate.NewDebouncer(c.quiet, c.applySearch, dopts...)
	return c
}

// Sync decodes the navigator's query and runs it. Loading a location never
// rewrites it, so an overflowing page is shown empty rather than clamped.
func (c *Controller) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = viewstate.Decode(c.nav.Query())
	c.requeryLocked()
}

// SetStatus changes the status filter and returns to page 1.
func (c *Controller) SetStatus(s domain.StatusFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Status = s
	c.resetLocked()
}

// SetRole changes the role filter and returns to page 1.
func (c *Controller) SetRole(r domain.RoleFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Role = r
	c.resetLocked()
}

// SetItemsPerPage changes the page size and returns to page 1. Sizes below 1
// are ignored.
func (c *Controller) SetItemsPerPage(size int) {
	if size < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ItemsPerPage = size
	c.resetLocked()
}

// SetPage handles the pagination control. A size change behaves like
// SetItemsPerPage; otherwise pages outside [1, TotalPages] are ignored. It
// reports whether the state changed.
func (c *Controller) SetPage(page, size int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size >= 1 && size != c.state.ItemsPerPage {
		c.state.ItemsPerPage = size
		c.resetLocked()
		return true
	}
	if page < 1 || page > query.TotalPages(c.page.TotalCount, c.state.ItemsPerPage) {
		return false
	}
	c.state.CurrentPage = page
	c.requeryLocked()
	c.encodeLocked()
	return true
}

// SearchInput feeds raw search text to the debouncer. The search is applied
// once input has been quiet for the debounce period.
func (c *Controller) SearchInput(raw string) {
	c.search.Push(raw)
}

// FlushSearch applies pending search input immediately.
func (c *Controller) FlushSearch() {
	c.search.Flush()
}

// Close cancels pending search input.
func (c *Controller) Close() {
	c.search.Stop()
}

func (c *Controller) applySearch(term string) {
	c.mu.Lock()
	c.state.Search = term
	c.resetLocked()
	state, page := c.state, clonePage(c.page)
	fn := c.onChange
	c.mu.Unlock()
	c.logger.Debug("search applied", "search", term, "total", page.TotalCount)
	if fn != nil {
		fn(state, page)
	}
}

// Add inserts a new record and returns it with its assigned id.
func (c *Controller) Add(ctx context.Context, u domain.User) (domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	added, err := c.store.Add(ctx, u)
	c.afterMutationLocked()
	return added, err
}

// Save replaces an existing record.
func (c *Controller) Save(ctx context.Context, u domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.store.Update(ctx, u)
	c.afterMutationLocked()
	return err
}

// SaveMany replaces several records in one write.
func (c *Controller) SaveMany(ctx context.Context, users []domain.User) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.store.UpdateMany(ctx, users)
	c.afterMutationLocked()
	return n, err
}

// Toggle flips a record's active flag.
func (c *Controller) Toggle(ctx context.Context, id int) (domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.store.ToggleActive(ctx, id)
	c.afterMutationLocked()
	return u, err
}

// AddColumn appends an extra attribute to a record.
func (c *Controller) AddColumn(ctx context.Context, id int, col domain.Column) (domain.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.store.AddColumn(ctx, id, col)
	c.afterMutationLocked()
	return u, err
}

// Delete removes a record and returns how many were removed.
func (c *Controller) Delete(ctx context.Context, id int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.store.Delete(ctx, id)
	c.afterMutationLocked()
	return n, err
}

// State returns the current filter state.
func (c *Controller) State() domain.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Page returns a copy of the last query result.
func (c *Controller) Page() domain.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePage(c.page)
}

// TotalPages is the page count for the last query, at least 1.
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return query.TotalPages(c.page.TotalCount, c.state.ItemsPerPage)
}

func (c *Controller) resetLocked() {
	c.state.CurrentPage = domain.DefaultPage
	c.requeryLocked()
	c.encodeLocked()
}

func (c *Controller) requeryLocked() {
	c.page = query.Run(c.store.Snapshot(), c.state)
}

func (c *Controller) encodeLocked() {
	c.nav.Replace(viewstate.Encode(c.state, c.nav.Query()))
}

// afterMutationLocked requeries with the unchanged filter state. When the
// current page now lies past the last page it is clamped, requeried and
// written back to the navigator.
func (c *Controller) afterMutationLocked() {
	c.requeryLocked()
	clamped, overflowed := query.Clamp(c.state.CurrentPage, c.page.TotalCount, c.state.ItemsPerPage)
	if !overflowed {
		return
	}
	c.logger.Debug("page clamped", "from", c.state.CurrentPage, "to", clamped)
	c.state.CurrentPage = clamped
	c.requeryLocked()
	c.encodeLocked()
}

func clonePage(p domain.Page) domain.Page {
	users := domain.CloneUsers(p.Users)
	if users == nil {
		users = []domain.User{}
	}
	return domain.Page{Users: users, TotalCount: p.TotalCount}
}
