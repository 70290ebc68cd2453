// Package httpapi exposes the user list over HTTP. List state travels in the
// query string using the same parameters as the list view's location.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rosterkit/docs/schema/openapi"
	"rosterkit/internal/adapters/exports"
	"rosterkit/internal/listview"
	"rosterkit/internal/observability"
	"rosterkit/internal/roster"
	"rosterkit/internal/validation"
	"rosterkit/pkg/domain"
)

const maxBodySize = 1 << 20

// Store is the record store surface the handlers need.
type Store interface {
	listview.RecordStore
	GetByID(id int) (domain.User, bool)
	EmailTaken(email string, excludeID int) bool
	EmailHolders(email string) []int
}

// Exporter schedules background exports.
type Exporter interface {
	Enqueue(ctx context.Context, state domain.FilterState, encodedQuery string, formats []exports.Format) (exports.Record, error)
	Get(id string) (exports.Record, bool)
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger.
func WithLogger(l observability.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithExporter enables the /exports endpoints.
func WithExporter(e Exporter) Option {
	return func(h *Handler) { h.exports = e }
}

// Handler serves the roster API.
type Handler struct {
	store   Store
	exports Exporter
	metrics http.Handler
	logger  observability.Logger
	mux     http.Handler
}

// NewHandler constructs the API handler over store.
func NewHandler(store Store, opts ...Option) *Handler {
	h := &Handler{store: store, logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(h)
	}
	h.mux = h.routes()
	return h
}

// Router returns the chi router with middleware installed.
func (h *Handler) Router() http.Handler { return h.mux }

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxBodySize))

	r.Get("/healthz", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	r.Get("/roles", h.listRoles)
	r.Get("/openapi.yaml", serveSpec)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Put("/", h.updateUsers)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getUser)
			r.Put("/", h.updateUser)
			r.Delete("/", h.deleteUser)
			r.Post("/toggle", h.toggleUser)
			r.Post("/columns", h.addColumn)
		})
	})
	if h.exports != nil {
		r.Post("/exports", h.createExport)
		r.Get("/exports/{id}", h.getExport)
	}
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// view builds a list controller positioned at the request's query.
func (h *Handler) view(r *http.Request) (*listview.Controller, *listview.MemoryNavigator) {
	nav := listview.NewMemoryNavigator(r.URL.Query())
	c := listview.New(h.store, nav, listview.WithLogger(h.logger))
	c.Sync()
	return c, nav
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func serveSpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openapi.RosterSpec)
}

func (h *Handler) listRoles(w http.ResponseWriter, _ *http.Request) {
	roles := domain.Roles()
	out := make([]roleDTO, len(roles))
	for i, role := range roles {
		out[i] = roleDTO{Code: int(role), Label: role.String(), BadgeClass: role.BadgeClass()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	c, nav := h.view(r)
	writeJSON(w, http.StatusOK, newListResponse(c, nav))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, found := h.store.GetByID(id)
	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if !decodeBody(w, r, &u) {
		return
	}
	u.ID = 0
	if err := validation.User(u, h.store); err != nil {
		writeValidation(w, err)
		return
	}
	c, nav := h.view(r)
	added, err := c.Add(r.Context(), u)
	if err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{User: &added, View: newListResponse(c, nav)})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var u domain.User
	if !decodeBody(w, r, &u) {
		return
	}
	u.ID = id
	if err := validation.User(u, h.store); err != nil {
		writeValidation(w, err)
		return
	}
	c, nav := h.view(r)
	if err := c.Save(r.Context(), u); err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{User: &u, View: newListResponse(c, nav)})
}

func (h *Handler) updateUsers(w http.ResponseWriter, r *http.Request) {
	var users []domain.User
	if !decodeBody(w, r, &users) {
		return
	}
	if i, err := validation.Batch(users, h.store); err != nil {
		errs, _ := validation.AsErrors(err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"index":  i,
			"id":     users[i].ID,
			"fields": errs,
		})
		return
	}
	c, nav := h.view(r)
	n, err := c.SaveMany(r.Context(), users)
	if err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Updated: &n, View: newListResponse(c, nav)})
}

func (h *Handler) toggleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, nav := h.view(r)
	u, err := c.Toggle(r.Context(), id)
	if err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{User: &u, View: newListResponse(c, nav)})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, nav := h.view(r)
	n, err := c.Delete(r.Context(), id)
	if err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Removed: &n, View: newListResponse(c, nav)})
}

func (h *Handler) addColumn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var col domain.Column
	if !decodeBody(w, r, &col) {
		return
	}
	if err := validation.Column(col); err != nil {
		writeValidation(w, err)
		return
	}
	c, nav := h.view(r)
	u, err := c.AddColumn(r.Context(), id, col)
	if err != nil && !h.writeStoreError(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{User: &u, View: newListResponse(c, nav)})
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	formats, err := exports.ParseFormats(r.URL.Query().Get("formats"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, nav := h.view(r)
	q := nav.Query()
	q.Del("formats")
	record, err := h.exports.Enqueue(r.Context(), c.State(), q.Encode(), formats)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, exports.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	record, ok := h.exports.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

// writeStoreError maps store failures. It returns true when the caller should
// still write its normal response: a persistence failure leaves the mutation
// applied in memory, so it is logged and reported in a header only.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
		return false
	case errors.Is(err, roster.ErrPersist):
		h.logger.Error("roster not persisted", "error", err, "request_id", RequestIDFrom(r.Context()))
		w.Header().Set("X-Persist-Error", "1")
		return true
	default:
		h.logger.Error("roster mutation failed", "error", err, "request_id", RequestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return false
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		msg := "invalid request payload"
		if errors.Is(err, io.EOF) {
			msg = "request body required"
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, err error) {
	errs, _ := validation.AsErrors(err)
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": errs})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
