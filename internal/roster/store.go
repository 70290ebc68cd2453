// Package roster owns the authoritative in-memory user collection and writes it
// through to a blob after every mutation.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rosterkit/internal/blob"
	"rosterkit/internal/observability"
	"rosterkit/pkg/domain"
)

// DefaultKey is the blob key the roster is persisted under.
const DefaultKey = "saved-users-data"

var (
	// ErrNotFound reports a mutation aimed at an id that does not exist.
	ErrNotFound = errors.New("roster: user not found")
	// ErrPersist wraps blob write failures. The in-memory change stays applied.
	ErrPersist = errors.New("roster: persist failed")
)

var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the blob key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithSeed replaces the collection used when nothing usable is persisted.
func WithSeed(users []domain.User) Option {
	return func(s *Store) { s.seed = domain.CloneUsers(users) }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used for operation durations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the record store. Reads return copies; callers never share slices
// with the store.
type Store struct {
	mu      sync.RWMutex
	blobs   blob.Store
	key     string
	seed    []domain.User
	users   []domain.User
	logger  observability.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time
}

// New constructs an empty store over blobs. Call Load before use.
func New(blobs blob.Store, opts ...Option) *Store {
	s := &Store{
		blobs:   blobs,
		key:     DefaultKey,
		seed:    DefaultUsers(),
		users:   []domain.User{},
		logger:  observability.NopLogger(),
		metrics: observability.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the blob key in use.
func (s *Store) Key() string { return s.key }

func (s *Store) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
}

// Load reads the persisted roster. A missing or unparseable blob falls back to
// the seed collection; other read failures are returned. The collection in
// effect is written back immediately.
func (s *Store) Load(ctx context.Context) (err error) {
	start := s.now()
	defer func() { s.observe(ctx, "load", start, err) }()

	users, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.logger.Info("roster loaded", "key", s.key, "count", len(users))
	return s.persistLocked(ctx)
}

func (s *Store) read(ctx context.Context) ([]domain.User, error) {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		s.logger.Info("no persisted roster, seeding", "key", s.key)
		return s.seedCopy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	var users []domain.User
	if err := jsonUnmarshal(raw, &users); err != nil || users == nil {
		s.logger.Warn("persisted roster unparseable, seeding", "key", s.key, "error", err)
		return s.seedCopy(), nil
	}
	return users, nil
}

func (s *Store) seedCopy() []domain.User {
	users := domain.CloneUsers(s.seed)
	if users == nil {
		users = []domain.User{}
	}
	return users
}

// persistLocked writes the full collection. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	data, err := jsonMarshal(s.users)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}
	if _, err := s.blobs.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json"}); err != nil {
		s.logger.Error("roster persist failed", "key", s.key, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) indexLocked(id int) int {
	for i := range s.users {
		if s.users[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) nextIDLocked() int {
	maxID := 0
	for _, u := range s.users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	return maxID + 1
}

func (s *Store) notFound(op string, id int) error {
	s.logger.Warn("user not found", "operation", op, "id", id)
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// GetByID returns a copy of the record with id.
func (s *Store) GetByID(id int) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.users[i].Clone(), true
	}
	return domain.User{}, false
}

// Snapshot returns a deep copy of the collection in store order.
func (s *Store) Snapshot() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneUsers(s.users)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Add assigns the next id (max existing + 1, or 1) and appends the record.
func (s *Store) Add(ctx context.Context, u domain.User) (_ domain.User, err error) {
	start := s.now()
	defer func() { s.observe(ctx, "add", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	u = u.Clone()
	u.ID = s.nextIDLocked()
	s.users = append(s.users, u)
	s.logger.Debug("user added", "id", u.ID)
	return u.Clone(), s.persistLocked(ctx)
}

// Update replaces the record carrying u.ID.
func (s *Store) Update(ctx context.Context, u domain.User) (err error) {
	start := s.now()
	defer func() { s.observe(ctx, "update", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(u.ID)
	if i < 0 {
		return s.notFound("update", u.ID)
	}
	s.users[i] = u.Clone()
	return s.persistLocked(ctx)
}

// UpdateMany applies each update in order, skipping unknown ids, and persists
// once. It returns how many records changed.
func (s *Store) UpdateMany(ctx context.Context, users []domain.User) (n int, err error) {
	start := s.now()
	defer func() { s.observe(ctx, "update_many", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		i := s.indexLocked(u.ID)
		if i < 0 {
			s.logger.Warn("bulk update skipped unknown user", "id", u.ID)
			continue
		}
		s.users[i] = u.Clone()
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.persistLocked(ctx)
}

// ToggleActive flips the active flag of id and returns the updated record.
func (s *Store) ToggleActive(ctx context.Context, id int) (_ domain.User, err error) {
	start := s.now()
	defer func() { s.observe(ctx, "toggle", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.User{}, s.notFound("toggle", id)
	}
	s.users[i].IsActive = !s.users[i].IsActive
	return s.users[i].Clone(), s.persistLocked(ctx)
}

// AddColumn appends an extra attribute to the record's children.
func (s *Store) AddColumn(ctx context.Context, id int, col domain.Column) (_ domain.User, err error) {
	start := s.now()
	defer func() { s.observe(ctx, "add_column", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.User{}, s.notFound("add_column", id)
	}
	s.users[i].Children = append(s.users[i].Children, col)
	return s.users[i].Clone(), s.persistLocked(ctx)
}

// Delete removes every record with id and persists even when nothing matched.
func (s *Store) Delete(ctx context.Context, id int) (removed int, err error) {
	start := s.now()
	defer func() { s.observe(ctx, "delete", start, err) }()
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.ID == id {
			removed++
			continue
		}
		kept = append(kept, u)
	}
	s.users = kept
	s.logger.Debug("user deleted", "id", id, "removed", removed)
	return removed, s.persistLocked(ctx)
}

// EmailTaken reports whether another record (id != excludeID) already uses
// email, compared trimmed and case-insensitively.
func (s *Store) EmailTaken(email string, excludeID int) bool {
	want := normalizeEmail(email)
	if want == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID != excludeID && normalizeEmail(u.Email) == want {
			return true
		}
	}
	return false
}

// EmailHolders lists the ids of records using email, compared the same way
// as EmailTaken.
func (s *Store) EmailHolders(email string) []int {
	want := normalizeEmail(email)
	if want == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int
	for _, u := range s.users {
		if normalizeEmail(u.Email) == want {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
