// Package console drives the user list from an interactive terminal. Lines
// starting with a slash are live search: every keystroke feeds the search
// debouncer and the list redraws once typing pauses.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"rosterkit/internal/adapters/exports"
	"rosterkit/internal/listview"
	"rosterkit/internal/observability"
	"rosterkit/internal/roster"
	"rosterkit/internal/validation"
	"rosterkit/internal/viewstate"
	"rosterkit/pkg/domain"
)

// ErrQuit is returned by Execute for the quit command.
var ErrQuit = errors.New("console: quit requested")

// searchPrefix marks a live-search line.
const searchPrefix = '/'

// columnsPerRow is how many extra attributes are printed per detail line.
const columnsPerRow = 3

// Store is the record store surface the console needs.
type Store interface {
	listview.RecordStore
	GetByID(id int) (domain.User, bool)
	EmailTaken(email string, excludeID int) bool
}

// Exporter schedules background exports.
type Exporter interface {
	Enqueue(ctx context.Context, state domain.FilterState, encodedQuery string, formats []exports.Format) (exports.Record, error)
	Get(id string) (exports.Record, bool)
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQuietPeriod overrides the live search debounce period.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Console) { c.quiet = d }
}

// WithAfterFunc replaces the debounce timer source.
func WithAfterFunc(after viewstate.AfterFunc) Option {
	return func(c *Console) { c.after = after }
}

// WithExporter enables the export command.
func WithExporter(e Exporter) Option {
	return func(c *Console) { c.exports = e }
}

// Console executes list commands and renders results to out.
type Console struct {
	store   Store
	nav     listview.Navigator
	ctrl    *listview.Controller
	exports Exporter
	logger  observability.Logger
	quiet   time.Duration
	after   viewstate.AfterFunc

	outMu sync.Mutex
	out   io.Writer
}

// New builds a console over store. nav holds the list location; out receives
// all rendering, including redraws triggered by debounced search.
func New(store Store, nav listview.Navigator, out io.Writer, opts ...Option) *Console {
	c := &Console{
		store:  store,
		nav:    nav,
		out:    out,
		logger: observability.NopLogger(),
		quiet:  viewstate.SearchQuietPeriod,
	}
	for _, opt := range opts {
		opt(c)
	}
	lvOpts := []listview.Option{
		listview.WithLogger(c.logger),
		listview.WithQuietPeriod(c.quiet),
		listview.WithOnChange(func(domain.FilterState, domain.Page) { c.render() }),
	}
	if c.after != nil {
		lvOpts = append(lvOpts, listview.WithAfterFunc(c.after))
	}
	c.ctrl = listview.New(store, nav, lvOpts...)
	c.ctrl.Sync()
	return c
}

// Controller exposes the list controller.
func (c *Console) Controller() *listview.Controller { return c.ctrl }

// SetOutput redirects rendering, e.g. to readline's stdout once it exists.
func (c *Console) SetOutput(out io.Writer) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	c.out = out
}

// OnChange implements readline.Listener. Keystrokes on a search line are
// pushed to the debouncer; the line itself is never altered.
func (c *Console) OnChange(line []rune, _ int, key rune) ([]rune, int, bool) {
	if key == readline.CharEnter || len(line) == 0 || line[0] != searchPrefix {
		return nil, 0, false
	}
	c.ctrl.SearchInput(string(line[1:]))
	return nil, 0, false
}

// Close cancels pending search input.
func (c *Console) Close() { c.ctrl.Close() }

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if line[0] == searchPrefix {
		c.ctrl.SearchInput(line[1:])
		c.ctrl.FlushSearch()
		return nil
	}
	args := ParseArgs(line)
	switch args[0] {
	case "status":
		return c.handleStatus(args[1:])
	case "role":
		return c.handleRole(args[1:])
	case "page":
		return c.handlePage(args[1:])
	case "size":
		return c.handleSize(args[1:])
	case "toggle":
		return c.handleToggle(ctx, args[1:])
	case "delete", "del":
		return c.handleDelete(ctx, args[1:])
	case "show", "ls":
		return c.handleShow(args[1:])
	case "add":
		return c.handleAdd(ctx, args[1:])
	case "column":
		return c.handleColumn(ctx, args[1:])
	case "export":
		return c.handleExport(ctx, args[1:])
	case "url":
		c.printf("?%s\n", c.nav.Query().Encode())
		return nil
	case "help":
		c.printHelp(args[1:])
		return nil
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// ParseArgs splits on spaces, keeping double-quoted runs together.
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false
	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}

func (c *Console) handleStatus(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: status all|active|inactive")
	}
	s, err := domain.ParseStatusFilter(strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	c.ctrl.SetStatus(s)
	c.render()
	return nil
}

func (c *Console) handleRole(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: role all|<label>|<code>")
	}
	if strings.EqualFold(args[0], "all") {
		c.ctrl.SetRole(domain.AllRoles())
	} else {
		r, err := domain.ParseRole(args[0])
		if err != nil {
			return err
		}
		c.ctrl.SetRole(domain.OnlyRole(r))
	}
	c.render()
	return nil
}

func (c *Console) handlePage(args []string) error {
	n, err := intArg(args, "usage: page <n>")
	if err != nil {
		return err
	}
	if !c.ctrl.SetPage(n, c.ctrl.State().ItemsPerPage) {
		return fmt.Errorf("page %d out of range 1-%d", n, c.ctrl.TotalPages())
	}
	c.render()
	return nil
}

func (c *Console) handleSize(args []string) error {
	n, err := intArg(args, "usage: size 5|10|20|50")
	if err != nil {
		return err
	}
	allowed := false
	for _, size := range domain.PageSizes {
		if size == n {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("page size must be one of %v", domain.PageSizes)
	}
	c.ctrl.SetItemsPerPage(n)
	c.render()
	return nil
}

func (c *Console) handleToggle(ctx context.Context, args []string) error {
	id, err := intArg(args, "usage: toggle <id>")
	if err != nil {
		return err
	}
	u, err := c.ctrl.Toggle(ctx, id)
	if err := c.mutationError(err); err != nil {
		return err
	}
	state := "inactive"
	if u.IsActive {
		state = "active"
	}
	c.printf("user %d is now %s\n", u.ID, state)
	c.render()
	return nil
}

func (c *Console) handleDelete(ctx context.Context, args []string) error {
	id, err := intArg(args, "usage: delete <id>")
	if err != nil {
		return err
	}
	n, err := c.ctrl.Delete(ctx, id)
	if err := c.mutationError(err); err != nil {
		return err
	}
	c.printf("removed %d\n", n)
	c.render()
	return nil
}

func (c *Console) handleShow(args []string) error {
	if len(args) == 0 {
		c.render()
		return nil
	}
	id, err := intArg(args, "usage: show [id]")
	if err != nil {
		return err
	}
	u, ok := c.store.GetByID(id)
	if !ok {
		return fmt.Errorf("user %d not found", id)
	}
	c.renderUser(u)
	return nil
}

// add <name> <age> <email> [role] [phone] [address]
func (c *Console) handleAdd(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New(`usage: add "<name>" <age> <email> [role] [phone] ["address"]`)
	}
	age, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("age must be a number: %q", args[1])
	}
	u := domain.User{
		Name:           args[0],
		Age:            age,
		Email:          args[2],
		Role:           domain.RoleUser,
		IsActive:       true,
		RegisteredDate: time.Now().Format(time.DateOnly),
	}
	if len(args) > 3 {
		r, err := domain.ParseRole(args[3])
		if err != nil {
			return err
		}
		u.Role = r
	}
	if len(args) > 4 {
		u.Phone = args[4]
	}
	if len(args) > 5 {
		u.Address = args[5]
	}
	if err := validation.User(u, c.store); err != nil {
		return err
	}
	added, err := c.ctrl.Add(ctx, u)
	if err := c.mutationError(err); err != nil {
		return err
	}
	c.printf("added user %d\n", added.ID)
	c.render()
	return nil
}

func (c *Console) handleColumn(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return errors.New(`usage: column <id> <name> "<value>"`)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("id must be a number: %q", args[0])
	}
	col := domain.Column{Column: args[1], Value: args[2]}
	if err := validation.Column(col); err != nil {
		return err
	}
	u, err := c.ctrl.AddColumn(ctx, id, col)
	if err := c.mutationError(err); err != nil {
		return err
	}
	c.renderUser(u)
	return nil
}

func (c *Console) handleExport(ctx context.Context, args []string) error {
	if c.exports == nil {
		return errors.New("exports are not configured")
	}
	if len(args) == 2 && args[0] == "status" {
		rec, ok := c.exports.Get(args[1])
		if !ok {
			return fmt.Errorf("export %s not found", args[1])
		}
		c.printf("export %s: %s\n", rec.ID, rec.Status)
		for _, a := range rec.Artifacts {
			c.printf("  %s (%d rows, %d bytes)\n", a.Key, a.Rows, a.SizeBytes)
		}
		if rec.Error != "" {
			c.printf("  error: %s\n", rec.Error)
		}
		return nil
	}
	var raw string
	if len(args) > 0 {
		raw = args[0]
	}
	formats, err := exports.ParseFormats(raw)
	if err != nil {
		return err
	}
	rec, err := c.exports.Enqueue(ctx, c.ctrl.State(), c.nav.Query().Encode(), formats)
	if err != nil {
		return err
	}
	c.printf("export %s queued\n", rec.ID)
	return nil
}

// mutationError hides persistence failures after reporting them; the change
// is still in effect for this session.
func (c *Console) mutationError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, roster.ErrPersist) {
		c.logger.Error("roster not persisted", "error", err)
		c.printf("warning: %v\n", err)
		return nil
	}
	return err
}

func intArg(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New(usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errors.New(usage)
	}
	return n, nil
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) render() {
	state := c.ctrl.State()
	page := c.ctrl.Page()
	total := c.ctrl.TotalPages()

	c.outMu.Lock()
	defer c.outMu.Unlock()
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tSTATUS\tROLE")
	for _, u := range page.Users {
		status := "inactive"
		if u.IsActive {
			status = "active"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Phone, status, u.Role)
	}
	_ = tw.Flush()
	fmt.Fprintf(c.out, "page %d/%d, %d matching (status %s, role %s", state.CurrentPage, total, page.TotalCount, state.Status, state.Role)
	if state.Search != "" {
		fmt.Fprintf(c.out, ", search %q", state.Search)
	}
	fmt.Fprintln(c.out, ")")
}

func (c *Console) renderUser(u domain.User) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, "#%d %s <%s>\n", u.ID, u.Name, u.Email)
	fmt.Fprintf(c.out, "  age %d, phone %s, address %s\n", u.Age, u.Phone, u.Address)
	fmt.Fprintf(c.out, "  registered %s, active %t, role %s\n", u.RegisteredDate, u.IsActive, u.Role)
	for _, row := range domain.ChunkColumns(u.Children, columnsPerRow) {
		parts := make([]string, len(row))
		for i, col := range row {
			parts[i] = col.Column + ": " + col.Value
		}
		fmt.Fprintf(c.out, "  %s\n", strings.Join(parts, " | "))
	}
}

func (c *Console) printHelp(args []string) {
	if len(args) == 1 {
		if text, ok := commandHelp[args[0]]; ok {
			c.printf("%s\n", text)
			return
		}
		c.printf("unknown command: %s\n", args[0])
		return
	}
	c.printf("commands:\n")
	for _, name := range commandOrder {
		c.printf("  %s\n", commandHelp[name])
	}
	c.printf("  /<text>  live search by name, email or phone\n")
}

var commandOrder = []string{"status", "role", "page", "size", "show", "toggle", "delete", "add", "column", "export", "url", "help", "quit"}

var commandHelp = map[string]string{
	"status": "status all|active|inactive   filter by active flag",
	"role":   "role all|<label>|<code>       filter by role",
	"page":   "page <n>                      go to page n",
	"size":   "size 5|10|20|50               items per page",
	"show":   "show [id]                     list or show one user",
	"toggle": "toggle <id>                   flip active flag",
	"delete": "delete <id>                   remove a user",
	"add":    `add "<name>" <age> <email> [role] [phone] ["address"]`,
	"column": `column <id> <name> "<value>"  attach an extra attribute`,
	"export": "export [csv,json] | export status <id>",
	"url":    "url                           print the list location",
	"help":   "help [command]",
	"quit":   "quit",
}
