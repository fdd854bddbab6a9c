package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"task-planner/internal/repository"
	"task-planner/internal/service"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	taskRepo := repository.NewTaskRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	srv := NewServer(
		service.NewTaskService(taskRepo, categoryRepo, service.WithLogger(logger)),
		service.NewCategoryService(categoryRepo),
		repository.NewUserRepository(db),
		testSecret,
		logger,
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func token(t *testing.T, username, secret string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func (c client) decode(method, path string, body any, wantStatus int, dst any) {
	c.t.Helper()
	status, raw := c.do(method, path, body)
	if status != wantStatus {
		c.t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, wantStatus, raw)
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			c.t.Fatalf("decode %s: %v", raw, err)
		}
	}
}

func (c client) wantError(method, path string, body any, wantStatus int, wantKind string) {
	c.t.Helper()
	var got errorBody
	c.decode(method, path, body, wantStatus, &got)
	if got.Error != wantKind {
		c.t.Errorf("%s %s: error %q, want %q (%s)", method, path, got.Error, wantKind, got.Detail)
	}
}

type taskJSON struct {
	ID                 uint    `json:"id"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	DueDate            string  `json:"due_date"`
	Priority           string  `json:"priority"`
	Status             string  `json:"status"`
	IsRecurring        bool    `json:"is_recurring"`
	RecurrenceInterval *string `json:"recurrence_interval"`
	Category           *struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	} `json:"category"`
}

func future(d time.Duration) string {
	return time.Now().Add(d).UTC().Format(time.RFC3339)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("response should carry a request id")
	}
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", token(t, "alice", "other-secret")},
		{"no subject", token(t, "", testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := client{t: t, base: ts.URL, token: tt.token}
			if status, body := c.do(http.MethodGet, "/api/tasks", nil); status != http.StatusUnauthorized {
				t.Errorf("status: got %d, want 401: %s", status, body)
			}
		})
	}

	c := client{t: t, base: ts.URL, token: token(t, "alice", testSecret)}
	var tasks []taskJSON
	c.decode(http.MethodGet, "/api/tasks", nil, http.StatusOK, &tasks)
	if len(tasks) != 0 {
		t.Errorf("new user should have no tasks, got %d", len(tasks))
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := client{t: t, base: ts.URL, token: token(t, "alice", testSecret)}
	bob := client{t: t, base: ts.URL, token: token(t, "bob", testSecret)}

	var work struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	alice.decode(http.MethodPost, "/api/categories", map[string]any{"name": "Work"}, http.StatusCreated, &work)

	var standup taskJSON
	alice.decode(http.MethodPost, "/api/tasks", map[string]any{
		"title":               "Daily Standup",
		"due_date":            future(24 * time.Hour),
		"priority":            "High",
		"category_id":         work.ID,
		"is_recurring":        true,
		"recurrence_interval": "Daily",
	}, http.StatusCreated, &standup)
	if standup.Category == nil || standup.Category.Name != "Work" {
		t.Errorf("category not nested: %+v", standup.Category)
	}
	taskPath := "/api/tasks/" + strconv.FormatUint(uint64(standup.ID), 10)

	bob.wantError(http.MethodGet, taskPath, nil, http.StatusNotFound, "NotFound")
	bob.wantError(http.MethodPost, taskPath+"/complete", nil, http.StatusNotFound, "NotFound")

	var done taskJSON
	alice.decode(http.MethodPost, taskPath+"/complete", nil, http.StatusOK, &done)
	if done.Status != "Completed" {
		t.Errorf("status: got %s, want Completed", done.Status)
	}
	alice.wantError(http.MethodPost, taskPath+"/complete", nil, http.StatusBadRequest, "AlreadyCompleted")
	alice.wantError(http.MethodPatch, taskPath, map[string]any{"title": "Renamed"}, http.StatusBadRequest, "CompletedTaskImmutable")

	var series []taskJSON
	alice.decode(http.MethodGet, "/api/tasks?search=standup", nil, http.StatusOK, &series)
	if len(series) != 2 {
		t.Fatalf("got %d tasks, want original and successor", len(series))
	}
	successor := series[1]
	if successor.Status != "Pending" || !successor.IsRecurring || successor.Priority != "High" {
		t.Errorf("unexpected successor %+v", successor)
	}

	var pending []taskJSON
	alice.decode(http.MethodGet, "/api/tasks?status=Pending", nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].ID != successor.ID {
		t.Errorf("pending: got %+v", pending)
	}

	var reverted taskJSON
	alice.decode(http.MethodPost, taskPath+"/incomplete", nil, http.StatusOK, &reverted)
	if reverted.Status != "Pending" {
		t.Errorf("status: got %s, want Pending", reverted.Status)
	}
	alice.wantError(http.MethodPost, taskPath+"/incomplete", nil, http.StatusBadRequest, "AlreadyPending")

	var patched taskJSON
	alice.decode(http.MethodPatch, taskPath, map[string]any{"description": "sync", "category_id": nil}, http.StatusOK, &patched)
	if patched.Description != "sync" || patched.Category != nil {
		t.Errorf("patch not applied: %+v", patched)
	}

	if status, body := alice.do(http.MethodDelete, taskPath, nil); status != http.StatusNoContent {
		t.Fatalf("delete: got %d: %s", status, body)
	}
	alice.wantError(http.MethodGet, taskPath, nil, http.StatusNotFound, "NotFound")
}

func TestTaskValidationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := client{t: t, base: ts.URL, token: token(t, "alice", testSecret)}
	bob := client{t: t, base: ts.URL, token: token(t, "bob", testSecret)}

	var bobsCategory struct {
		ID uint `json:"id"`
	}
	bob.decode(http.MethodPost, "/api/categories", map[string]any{"name": "Work"}, http.StatusCreated, &bobsCategory)

	tests := []struct {
		name string
		body map[string]any
		kind string
	}{
		{"past due date", map[string]any{"title": "Past Task", "due_date": future(-24 * time.Hour)}, "InvalidDueDate"},
		{"foreign category", map[string]any{"title": "Sneaky", "due_date": future(time.Hour), "category_id": bobsCategory.ID}, "ForbiddenCategory"},
		{"missing due date", map[string]any{"title": "Someday"}, "InvalidInput"},
		{"empty title", map[string]any{"title": " ", "due_date": future(time.Hour)}, "InvalidInput"},
		{"unknown priority", map[string]any{"title": "x", "due_date": future(time.Hour), "priority": "Urgent"}, "InvalidInput"},
		{"recurring without interval", map[string]any{"title": "x", "due_date": future(time.Hour), "is_recurring": true}, "InvalidInput"},
		{"unknown field", map[string]any{"title": "x", "due_date": future(time.Hour), "owner": 3}, "InvalidInput"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := alice
			c.t = t
			c.wantError(http.MethodPost, "/api/tasks", tt.body, http.StatusBadRequest, tt.kind)
		})
	}

	alice.wantError(http.MethodGet, "/api/tasks?ordering=title", nil, http.StatusBadRequest, "InvalidInput")
	alice.wantError(http.MethodGet, "/api/tasks?priority=urgent", nil, http.StatusBadRequest, "InvalidInput")
	alice.wantError(http.MethodGet, "/api/tasks/abc", nil, http.StatusBadRequest, "InvalidInput")

	var task taskJSON
	alice.decode(http.MethodPost, "/api/tasks", map[string]any{"title": "Draft", "due_date": future(time.Hour)}, http.StatusCreated, &task)
	path := "/api/tasks/" + strconv.FormatUint(uint64(task.ID), 10)
	alice.wantError(http.MethodPatch, path, map[string]any{"title": nil}, http.StatusBadRequest, "InvalidInput")
	alice.wantError(http.MethodPut, path, map[string]any{"title": "Only title"}, http.StatusBadRequest, "InvalidInput")
	alice.wantError(http.MethodPatch, path, map[string]any{"due_date": future(-time.Hour)}, http.StatusBadRequest, "InvalidDueDate")

	var echoed taskJSON
	alice.decode(http.MethodPost, "/api/tasks", map[string]any{
		"title":      "Copy",
		"due_date":   future(time.Hour),
		"id":         task.ID,
		"user":       99,
		"category":   map[string]any{"id": 1, "name": "Work"},
		"created_at": future(-time.Hour),
		"updated_at": future(-time.Hour),
	}, http.StatusCreated, &echoed)
	if echoed.ID == task.ID || echoed.Title != "Copy" || echoed.Category != nil {
		t.Errorf("read-only fields should be ignored on create: %+v", echoed)
	}

	var put taskJSON
	alice.decode(http.MethodPut, path, map[string]any{"title": "Final", "due_date": future(48 * time.Hour), "priority": "Low"}, http.StatusOK, &put)
	if put.Title != "Final" || put.Priority != "Low" {
		t.Errorf("put not applied: %+v", put)
	}
}

func TestCategoriesOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := client{t: t, base: ts.URL, token: token(t, "alice", testSecret)}
	bob := client{t: t, base: ts.URL, token: token(t, "bob", testSecret)}

	var mine struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
		User uint   `json:"user"`
	}
	alice.decode(http.MethodPost, "/api/categories", map[string]any{"name": "Work"}, http.StatusCreated, &mine)
	bob.decode(http.MethodPost, "/api/categories", map[string]any{"name": "Work"}, http.StatusCreated, nil)

	var list []struct {
		ID uint `json:"id"`
	}
	alice.decode(http.MethodGet, "/api/categories", nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("alice sees %+v", list)
	}

	path := "/api/categories/" + strconv.FormatUint(uint64(mine.ID), 10)
	bob.wantError(http.MethodPatch, path, map[string]any{"name": "Stolen"}, http.StatusNotFound, "NotFound")
	alice.decode(http.MethodPatch, path, map[string]any{"name": "Office"}, http.StatusOK, &mine)
	if mine.Name != "Office" {
		t.Errorf("rename: got %q", mine.Name)
	}
	alice.wantError(http.MethodPost, "/api/categories", map[string]any{"name": strings.Repeat("x", 101)}, http.StatusBadRequest, "InvalidInput")

	if status, body := alice.do(http.MethodDelete, path, nil); status != http.StatusNoContent {
		t.Fatalf("delete: got %d: %s", status, body)
	}
	alice.wantError(http.MethodGet, path, nil, http.StatusNotFound, "NotFound")
}

func TestRecovererAndRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequestID(Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
	if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id: got %q, want req-123", got)
	}
}
