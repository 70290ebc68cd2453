package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rosterkit/internal/adapters/exports"
	"rosterkit/internal/adapters/httpapi"
	"rosterkit/internal/blob"
	"rosterkit/internal/observability"
	"rosterkit/internal/roster"
	"rosterkit/pkg/domain"
)

type listBody struct {
	Users      []domain.User `json:"users"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
	State      struct {
		Page         int    `json:"page"`
		ItemsPerPage int    `json:"itemsPerPage"`
		Status       string `json:"status"`
		Role         string `json:"role"`
		RoleCode     *int   `json:"roleCode"`
	} `json:"state"`
	Query string `json:"query"`
}

type mutationBody struct {
	User    *domain.User `json:"user"`
	Updated *int         `json:"updated"`
	Removed *int         `json:"removed"`
	View    listBody     `json:"view"`
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	Index  int               `json:"index"`
}

func members(n int) []domain.User {
	users := make([]domain.User, n)
	for i := range users {
		users[i] = domain.User{
			ID:       i + 1,
			Name:     fmt.Sprintf("Member %02d", i+1),
			Age:      30,
			Email:    fmt.Sprintf("member%02d@example.com", i+1),
			IsActive: true,
			Role:     domain.RoleUser,
		}
	}
	return users
}

func setup(t *testing.T, n int, opts ...httpapi.Option) (*httpapi.Handler, *roster.Store, blob.Store) {
	t.Helper()
	blobs := blob.NewMemory()
	store := roster.New(blobs, roster.WithSeed(members(n)))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return httpapi.NewHandler(store, opts...), store, blobs
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestListUsersDecodesQuery(t *testing.T) {
	h, _, _ := setup(t, 12)
	resp := do(t, h, http.MethodGet, "/users?page=2&itemsPerPage=5&extra=1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	if resp.Header().Get(httpapi.RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
	body := decode[listBody](t, resp)
	if body.TotalCount != 12 || body.TotalPages != 3 || len(body.Users) != 5 || body.Users[0].ID != 6 {
		t.Fatalf("unexpected list %+v", body)
	}
	if body.State.Status != "active" || body.State.Role != "all" || body.State.RoleCode != nil {
		t.Fatalf("unexpected state %+v", body.State)
	}
	if body.Query != "extra=1&itemsPerPage=5&page=2&status=1" {
		t.Fatalf("unexpected canonical query %q", body.Query)
	}
}

func TestListUsersNeverClampsOnLoad(t *testing.T) {
	h, _, _ := setup(t, 3)
	body := decode[listBody](t, do(t, h, http.MethodGet, "/users?page=7", nil))
	if body.State.Page != 7 || len(body.Users) != 0 || body.Users == nil {
		t.Fatalf("overflowing page must load empty: %+v", body)
	}
}

func TestDeleteClampsView(t *testing.T) {
	h, store, _ := setup(t, 11)
	resp := do(t, h, http.MethodDelete, "/users/11?page=3&itemsPerPage=5", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	body := decode[mutationBody](t, resp)
	if body.Removed == nil || *body.Removed != 1 {
		t.Fatalf("removed: %+v", body.Removed)
	}
	if body.View.State.Page != 2 || body.View.TotalCount != 10 || !strings.Contains(body.View.Query, "page=2") {
		t.Fatalf("view not clamped: %+v", body.View)
	}
	if store.Len() != 10 {
		t.Fatalf("store len %d", store.Len())
	}
}

func TestCreateValidatesAndAssignsID(t *testing.T) {
	h, _, _ := setup(t, 2)
	bad := do(t, h, http.MethodPost, "/users", domain.User{Name: "", Age: 12, Email: "member01@example.com"})
	if bad.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", bad.Code)
	}
	errs := decode[errorBody](t, bad)
	if errs.Fields["name"] != "required" || errs.Fields["age"] != "min" || errs.Fields["email"] != "notUniqueEmail" {
		t.Fatalf("unexpected fields %+v", errs.Fields)
	}

	resp := do(t, h, http.MethodPost, "/users?itemsPerPage=10", domain.User{ID: 77, Name: "Ada", Age: 36, Email: "ada@example.com", IsActive: true, Role: domain.RoleEditor})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	body := decode[mutationBody](t, resp)
	if body.User == nil || body.User.ID != 3 || body.View.TotalCount != 3 {
		t.Fatalf("unexpected create response %+v", body)
	}
}

func TestUpdateToggleAndColumns(t *testing.T) {
	h, store, _ := setup(t, 3)
	u, _ := store.GetByID(2)
	u.Name = "Renamed"
	resp := do(t, h, http.MethodPut, "/users/2", u)
	if resp.Code != http.StatusOK {
		t.Fatalf("update status %d", resp.Code)
	}
	if got, _ := store.GetByID(2); got.Name != "Renamed" {
		t.Fatalf("update not applied")
	}
	ghost := u
	ghost.Email = "ghost@example.com"
	if resp := do(t, h, http.MethodPut, "/users/42", ghost); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", resp.Code)
	}

	toggled := decode[mutationBody](t, do(t, h, http.MethodPost, "/users/2/toggle", nil))
	if toggled.User == nil || toggled.User.IsActive || toggled.View.TotalCount != 2 {
		t.Fatalf("unexpected toggle %+v", toggled)
	}
	if resp := do(t, h, http.MethodPost, "/users/9/toggle", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	if resp := do(t, h, http.MethodPost, "/users/1/columns", domain.Column{Column: "team"}); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty value, got %d", resp.Code)
	}
	col := decode[mutationBody](t, do(t, h, http.MethodPost, "/users/1/columns", domain.Column{Column: "team", Value: "blue"}))
	if col.User == nil || len(col.User.Children) != 1 {
		t.Fatalf("column not added %+v", col.User)
	}
	got := decode[map[string]domain.User](t, do(t, h, http.MethodGet, "/users/1", nil))
	if len(got["user"].Children) != 1 {
		t.Fatalf("get user: %+v", got)
	}
	if resp := do(t, h, http.MethodGet, "/users/abc", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
	if resp := do(t, h, http.MethodGet, "/users/99", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestBulkUpdate(t *testing.T) {
	h, store, _ := setup(t, 3)
	users := store.Snapshot()
	users[0].IsActive = false
	users[1].Name = "Bulk"
	resp := do(t, h, http.MethodPut, "/users", users[:2])
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	body := decode[mutationBody](t, resp)
	if body.Updated == nil || *body.Updated != 2 || body.View.TotalCount != 2 {
		t.Fatalf("unexpected bulk response %+v", body)
	}
	users[2].Email = users[1].Email
	bad := do(t, h, http.MethodPut, "/users", users)
	if bad.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", bad.Code)
	}
	if errs := decode[errorBody](t, bad); errs.Index != 2 || errs.Fields["email"] != "notUniqueEmail" {
		t.Fatalf("unexpected errors %+v", errs)
	}

	users = store.Snapshot()
	users[0].Email = "dup@example.com"
	users[1].Email = "DUP@example.com "
	same := do(t, h, http.MethodPut, "/users", users[:2])
	if same.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a repeated email inside the batch, got %d", same.Code)
	}
	if errs := decode[errorBody](t, same); errs.Index != 1 || errs.Fields["email"] != "notUniqueEmail" {
		t.Fatalf("unexpected errors %+v", errs)
	}
	if got, _ := store.GetByID(users[0].ID); got.Email == "dup@example.com" {
		t.Fatalf("rejected batch must not be saved")
	}

	users = store.Snapshot()
	users[0].Email = users[2].Email
	if resp := do(t, h, http.MethodPut, "/users", users[:2]); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an email held outside the batch, got %d", resp.Code)
	}

	users = store.Snapshot()
	users[0].Email, users[1].Email = users[1].Email, users[0].Email
	swapped := do(t, h, http.MethodPut, "/users", users[:2])
	if swapped.Code != http.StatusOK {
		t.Fatalf("swapping emails inside a batch: status %d", swapped.Code)
	}
	if got, _ := store.GetByID(users[0].ID); got.Email != users[0].Email {
		t.Fatalf("swap not applied: %+v", got)
	}
	if resp := do(t, h, http.MethodPut, "/users", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", resp.Code)
	}
}

type failingPuts struct {
	blob.Store
	fail bool
}

func (f *failingPuts) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	if f.fail {
		return blob.Info{}, errors.New("open /var/lib/roster/secret-path: permission denied")
	}
	return f.Store.Put(ctx, key, r, opts)
}

func TestPersistFailureIsFlaggedWithoutDetail(t *testing.T) {
	blobs := &failingPuts{Store: blob.NewMemory()}
	store := roster.New(blobs, roster.WithSeed(members(2)))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h := httpapi.NewHandler(store)
	blobs.fail = true
	resp := do(t, h, http.MethodPost, "/users/1/toggle", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d", resp.Code)
	}
	if got := resp.Header().Get("X-Persist-Error"); got != "1" {
		t.Fatalf("X-Persist-Error = %q", got)
	}
	if strings.Contains(resp.Body.String(), "secret-path") {
		t.Fatalf("response leaks the storage error: %s", resp.Body.String())
	}
	if u, _ := store.GetByID(1); u.IsActive {
		t.Fatalf("toggle must stay applied in memory")
	}
}

func TestRolesHealthAndMetrics(t *testing.T) {
	rec := observability.NewPrometheusRecorder(prometheus.NewRegistry())
	h, _, _ := setup(t, 1, httpapi.WithMetricsHandler(rec.Handler()), httpapi.WithLogger(observability.NopLogger()))
	roles := decode[map[string][]struct {
		Code       int    `json:"code"`
		Label      string `json:"label"`
		BadgeClass string `json:"badgeClass"`
	}](t, do(t, h, http.MethodGet, "/roles", nil))
	if len(roles["roles"]) != 7 || roles["roles"][0].Label != "SuperAdmin" || roles["roles"][6].BadgeClass != "bg-light text-dark" {
		t.Fatalf("unexpected roles %+v", roles)
	}
	if spec := do(t, h, http.MethodGet, "/openapi.yaml", nil); spec.Code != http.StatusOK || !strings.Contains(spec.Body.String(), "/users/{id}/toggle") {
		t.Fatalf("openapi: %d", spec.Code)
	}
	if resp := do(t, h, http.MethodGet, "/healthz", nil); resp.Code != http.StatusOK {
		t.Fatalf("health %d", resp.Code)
	}
	rec.Observe(context.Background(), "add", true, time.Millisecond)
	metrics := do(t, h, http.MethodGet, "/metrics", nil)
	if metrics.Code != http.StatusOK || !strings.Contains(metrics.Body.String(), "roster_operations_total") {
		t.Fatalf("metrics endpoint: %d %s", metrics.Code, metrics.Body.String())
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _, _ := setup(t, 1)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(httpapi.RequestIDHeader, "abc-123")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	if resp.Header().Get(httpapi.RequestIDHeader) != "abc-123" {
		t.Fatalf("request id not echoed")
	}
}

func TestExportEndpoints(t *testing.T) {
	blobs := blob.NewMemory()
	store := roster.New(blobs, roster.WithSeed(members(4)))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	worker := exports.NewWorker(store, blobs)
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()
	h := httpapi.NewHandler(store, httpapi.WithExporter(worker))

	if resp := do(t, h, http.MethodPost, "/exports?formats=pdf", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	resp := do(t, h, http.MethodPost, "/exports?formats=csv&status=0", nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	created := decode[map[string]exports.Record](t, resp)
	id := created["export"].ID
	if id == "" || strings.Contains(created["export"].Query, "formats") {
		t.Fatalf("unexpected record %+v", created)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := decode[map[string]exports.Record](t, do(t, h, http.MethodGet, "/exports/"+id, nil))
		if got["export"].Status == exports.StatusSucceeded {
			if len(got["export"].Artifacts) != 1 || got["export"].Artifacts[0].Rows != 4 {
				t.Fatalf("unexpected artifacts %+v", got["export"].Artifacts)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("export never finished: %+v", got)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if resp := do(t, h, http.MethodGet, "/exports/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
