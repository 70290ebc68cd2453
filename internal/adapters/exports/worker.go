// Package exports renders filtered roster listings to CSV or JSON in the
// background and stores the results as blobs.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rosterkit/internal/blob"
	"rosterkit/internal/observability"
	"rosterkit/internal/query"
	"rosterkit/pkg/domain"
)

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// KeyPrefix namespaces export blobs away from the roster blob.
const KeyPrefix = "exports/"

var (
	// ErrQueueFull is returned when the worker cannot accept more jobs.
	ErrQueueFull = errors.New("exports: queue full")
	// ErrUnknownFormat rejects formats other than csv and json.
	ErrUnknownFormat = errors.New("exports: unknown format")
)

// Artifact is one stored rendering.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	ETag        string    `json:"etag,omitempty"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Record tracks an export request.
type Record struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (r *Record) copy() Record {
	cp := *r
	cp.Formats = append([]Format(nil), r.Formats...)
	cp.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// Source provides the records to export.
type Source interface {
	Snapshot() []domain.User
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithQueueSize overrides the job buffer.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// Worker executes exports asynchronously.
type Worker struct {
	source  Source
	blobs   blob.Store
	logger  observability.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	state domain.FilterState
}

// NewWorker constructs a worker. Call Start to begin processing.
func NewWorker(source Source, blobs blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:  source,
		blobs:   blobs,
		logger:  observability.NopLogger(),
		metrics: observability.NopMetrics(),
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// ParseFormats accepts a comma separated list; empty means csv and json.
func ParseFormats(raw string) ([]Format, error) {
	if strings.TrimSpace(raw) == "" {
		return []Format{FormatCSV, FormatJSON}, nil
	}
	var out []Format
	seen := make(map[Format]struct{})
	for _, part := range strings.Split(raw, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f != FormatCSV && f != FormatJSON {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, part)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

// Enqueue schedules an export of every record matching state's filters.
// Pagination is ignored; the whole filtered set is exported.
func (w *Worker) Enqueue(_ context.Context, state domain.FilterState, encodedQuery string, formats []Format) (Record, error) {
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatJSON}
	}
	for _, f := range formats {
		if f != FormatCSV && f != FormatJSON {
			return Record{}, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	id := uuid.NewString()
	now := w.now()
	record := &Record{
		ID:        id,
		Query:     encodedQuery,
		Formats:   append([]Format(nil), formats...),
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.mu.Lock()
	w.jobs[id] = record
	queued := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: id, state: state}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", "id", id, "query", encodedQuery)
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	start := time.Now()
	w.mu.RLock()
	record, ok := w.jobs[t.id]
	var formats []Format
	if ok {
		formats = append(formats, record.Formats...)
	}
	w.mu.RUnlock()
	if !ok {
		return
	}
	w.updateStatus(t.id, StatusRunning)

	users := query.Filter(w.source.Snapshot(), t.state)
	artifacts := make([]Artifact, 0, len(formats))
	for _, f := range formats {
		payload, contentType, err := render(f, users)
		if err != nil {
			w.fail(t.id, err, start)
			return
		}
		key := fmt.Sprintf("%s%s.%s", KeyPrefix, t.id, f)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"rows": strconv.Itoa(len(users)), "export": t.id},
		})
		if err != nil {
			w.fail(t.id, fmt.Errorf("store %s: %w", key, err), start)
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         key,
			Format:      f,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			ETag:        info.ETag,
			Rows:        len(users),
			CreatedAt:   w.now(),
		})
	}
	w.complete(t.id, artifacts, start)
}

func (w *Worker) updateStatus(id string, status Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
}

func (w *Worker) complete(id string, artifacts []Artifact, start time.Time) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.metrics.Observe(w.ctx, "export", true, time.Since(start))
	w.logger.Info("export finished", "id", id, "artifacts", len(artifacts))
}

func (w *Worker) fail(id string, err error, start time.Time) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = err.Error()
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.metrics.Observe(w.ctx, "export", false, time.Since(start))
	w.logger.Error("export failed", "id", id, "error", err)
}

var csvHeader = []string{"id", "name", "age", "email", "phone", "address", "registeredDate", "isActive", "role", "children"}

func render(f Format, users []domain.User) ([]byte, string, error) {
	switch f {
	case FormatJSON:
		if users == nil {
			users = []domain.User{}
		}
		payload, err := json.Marshal(users)
		if err != nil {
			return nil, "", fmt.Errorf("encode json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		var buf bytes.Buffer
		cw := csv.NewWriter(&buf)
		if err := cw.Write(csvHeader); err != nil {
			return nil, "", fmt.Errorf("encode csv: %w", err)
		}
		for _, u := range users {
			if err := cw.Write(csvRow(u)); err != nil {
				return nil, "", fmt.Errorf("encode csv: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return nil, "", fmt.Errorf("encode csv: %w", err)
		}
		return buf.Bytes(), "text/csv", nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func csvRow(u domain.User) []string {
	children := make([]string, len(u.Children))
	for i, c := range u.Children {
		children[i] = c.Column + "=" + c.Value
	}
	return []string{
		strconv.Itoa(u.ID),
		u.Name,
		strconv.Itoa(u.Age),
		u.Email,
		u.Phone,
		u.Address,
		u.RegisteredDate,
		strconv.FormatBool(u.IsActive),
		u.Role.String(),
		strings.Join(children, ";"),
	}
}
