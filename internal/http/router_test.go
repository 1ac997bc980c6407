package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/app"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/db"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
	cookie *http.Cookie
}

func testConfig(conveyance string) config.Config {
	return config.Config{
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTTTL:             time.Hour,
		TokenConveyance:    conveyance,
		BcryptCost:         bcrypt.MinCost,
		AdminUsername:      "admin",
		AdminEmail:         "admin@example.com",
		AdminPassword:      "Admin123",
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		RateLimitMax:       10_000,
		RateLimitWindow:    time.Minute,
		MaxBodyBytes:       1 << 20,
		RequestTimeout:     5 * time.Second,
	}
}

func setupRouter(t *testing.T, conveyance string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(conveyance)
	reg := prometheus.NewRegistry()

	a, err := app.New(app.Options{
		Config:     cfg,
		Log:        log,
		Users:      memory.NewUsersRepo(),
		Tasks:      memory.NewTasksRepo(),
		Identities: cache.NewMemory(time.Minute),
		Prom:       observability.NewProm(reg),
		Gatherer:   reg,
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}

	if err := db.EnsureAdminUser(context.Background(), a.Accounts, cfg, log); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return a.Router
}

func (c *client) do(method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)

	return w, env
}

func (c *client) login(email, password string) {
	c.t.Helper()

	w, env := c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		c.t.Fatalf("login %s: status %d body=%s", email, w.Code, w.Body.String())
	}
	c.adopt(w, env)
}

func (c *client) adopt(w *httptest.ResponseRecorder, env envelope) {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.CookieName {
			c.cookie = ck
		}
	}

	var data struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &data)
	if data.Token != "" {
		c.token = data.Token
	}
}

func (c *client) register(username, email string) {
	c.t.Helper()

	w, env := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username, "email": email, "password": "Secret123",
	})
	if w.Code != http.StatusCreated {
		c.t.Fatalf("register %s: status %d body=%s", username, w.Code, w.Body.String())
	}
	c.adopt(w, env)
}

func userFrom(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var data struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	return data.User
}

func TestAuthFlow_BothConveyances(t *testing.T) {
	for _, conv := range []string{"cookie", "header"} {
		t.Run(conv, func(t *testing.T) {
			router := setupRouter(t, conv)
			c := &client{t: t, router: router}

			w, env := c.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
				"username": "alice", "email": "Alice@Example.com", "password": "Secret123",
			})
			if w.Code != http.StatusCreated || !env.Success || env.Message != "User registered successfully" {
				t.Fatalf("register: %d %+v", w.Code, env)
			}

			var body map[string]any
			_ = json.Unmarshal(env.Data, &body)
			_, hasToken := body["token"]
			hasCookie := false
			for _, ck := range w.Result().Cookies() {
				if ck.Name == auth.CookieName && ck.HttpOnly {
					hasCookie = true
				}
			}
			if conv == "cookie" && (hasToken || !hasCookie) {
				t.Fatalf("cookie mode: token in body=%v cookie=%v", hasToken, hasCookie)
			}
			if conv == "header" && (!hasToken || hasCookie) {
				t.Fatalf("header mode: token in body=%v cookie=%v", hasToken, hasCookie)
			}

			fresh := &client{t: t, router: router}
			fresh.login("alice@example.com", "Secret123")

			w, env = fresh.do(http.MethodGet, "/api/v1/auth/me", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("me: %d %s", w.Code, w.Body.String())
			}
			me := userFrom(t, env)
			if me["username"] != "alice" || me["email"] != "alice@example.com" || me["role"] != "user" {
				t.Fatalf("me = %v", me)
			}
			if _, ok := me["createdAt"]; !ok {
				t.Fatalf("me should include createdAt: %v", me)
			}
			if _, ok := me["passwordHash"]; ok {
				t.Fatalf("hash leaked: %v", me)
			}
		})
	}
}

func TestAuth_Failures(t *testing.T) {
	router := setupRouter(t, "header")
	c := &client{t: t, router: router}
	c.register("alice", "alice@example.com")

	anon := &client{t: t, router: router}

	w, env := anon.do(http.MethodGet, "/api/v1/auth/me", nil)
	if w.Code != http.StatusUnauthorized || env.Message != "No token provided. Authorization denied." {
		t.Fatalf("no token: %d %+v", w.Code, env)
	}

	anon.token = c.token + "x"
	w, env = anon.do(http.MethodGet, "/api/v1/auth/me", nil)
	if w.Code != http.StatusUnauthorized || env.Message != "Invalid token" {
		t.Fatalf("tampered: %d %+v", w.Code, env)
	}

	dup := &client{t: t, router: router}
	w, env = dup.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "Secret123",
	})
	if w.Code != http.StatusConflict || env.Message != "Email already registered" {
		t.Fatalf("duplicate email: %d %+v", w.Code, env)
	}

	w, env = dup.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "x", "email": "bad", "password": "weak",
	})
	if w.Code != http.StatusBadRequest || env.Message != "Validation failed" || len(env.Errors) < 3 {
		t.Fatalf("validation: %d %+v", w.Code, env)
	}

	w, env = dup.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "Wrong1234"})
	if w.Code != http.StatusUnauthorized || env.Message != "Invalid email or password" {
		t.Fatalf("bad password: %d %+v", w.Code, env)
	}

	// the first account still works after the duplicate attempt
	dup.login("alice@example.com", "Secret123")
}

func TestProfileAndPassword(t *testing.T) {
	router := setupRouter(t, "cookie")
	c := &client{t: t, router: router}
	c.register("alice", "alice@example.com")

	w, env := c.do(http.MethodPut, "/api/v1/auth/profile", map[string]string{"username": "alice_w"})
	if w.Code != http.StatusOK || userFrom(t, env)["username"] != "alice_w" {
		t.Fatalf("profile: %d %s", w.Code, w.Body.String())
	}

	// cached identity was evicted
	_, env = c.do(http.MethodGet, "/api/v1/auth/me", nil)
	if userFrom(t, env)["username"] != "alice_w" {
		t.Fatalf("me after rename: %s", env.Data)
	}

	w, _ = c.do(http.MethodPut, "/api/v1/auth/password", map[string]string{"currentPassword": "Secret123", "newPassword": "Changed123"})
	if w.Code != http.StatusOK {
		t.Fatalf("password: %d %s", w.Code, w.Body.String())
	}

	other := &client{t: t, router: router}
	other.login("alice@example.com", "Changed123")

	w, _ = c.do(http.MethodPost, "/api/v1/auth/logout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}
}

func createTask(t *testing.T, c *client, body map[string]any) map[string]any {
	t.Helper()
	w, env := c.do(http.MethodPost, "/api/v1/tasks", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", w.Code, w.Body.String())
	}
	var data struct {
		Task map[string]any `json:"task"`
	}
	_ = json.Unmarshal(env.Data, &data)
	return data.Task
}

func TestTasks_OwnershipAndAdmin(t *testing.T) {
	router := setupRouter(t, "header")

	alice := &client{t: t, router: router}
	alice.register("alice", "alice@example.com")
	bob := &client{t: t, router: router}
	bob.register("bob", "bob@example.com")
	admin := &client{t: t, router: router}
	admin.login("admin@example.com", "Admin123")

	tk := createTask(t, alice, map[string]any{"title": "alice's task", "ownerId": "someone-else"})
	id := tk["id"].(string)
	if tk["status"] != "pending" || tk["priority"] != "medium" {
		t.Fatalf("defaults: %v", tk)
	}

	w, env := bob.do(http.MethodGet, "/api/v1/tasks/"+id, nil)
	if w.Code != http.StatusForbidden || env.Message != "Access denied. You can only view your own tasks." {
		t.Fatalf("bob get: %d %+v", w.Code, env)
	}

	w, _ = admin.do(http.MethodGet, "/api/v1/tasks/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin get: %d", w.Code)
	}

	w, _ = bob.do(http.MethodGet, "/api/v1/admin/tasks", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("bob admin list: %d", w.Code)
	}

	w, env = admin.do(http.MethodPut, "/api/v1/admin/tasks/"+id, map[string]any{"status": "completed"})
	if w.Code != http.StatusOK || env.Message != "Task updated successfully (Owner: alice)" {
		t.Fatalf("admin update: %d %+v", w.Code, env)
	}

	w, env = admin.do(http.MethodDelete, "/api/v1/admin/tasks/"+id, nil)
	if w.Code != http.StatusOK || env.Message != "Task deleted successfully (Owner: alice)" {
		t.Fatalf("admin delete: %d %+v", w.Code, env)
	}

	w, env = alice.do(http.MethodDelete, "/api/v1/tasks/"+id, nil)
	if w.Code != http.StatusNotFound || env.Message != "Task not found" {
		t.Fatalf("delete gone: %d %+v", w.Code, env)
	}
}

func TestTasks_PaginationFiltersAndETag(t *testing.T) {
	router := setupRouter(t, "header")
	alice := &client{t: t, router: router}
	alice.register("alice", "alice@example.com")

	var firstID string
	for i := 0; i < 15; i++ {
		body := map[string]any{"title": fmt.Sprintf("task %d", i)}
		if i%5 == 0 {
			body["status"] = "completed"
			body["priority"] = "high"
		}
		tk := createTask(t, alice, body)
		if i == 0 {
			firstID = tk["id"].(string)
		}
		time.Sleep(time.Millisecond)
	}

	w, env := alice.do(http.MethodGet, "/api/v1/tasks?page=2&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}

	var page struct {
		Tasks      []map[string]any `json:"tasks"`
		Pagination struct {
			CurrentPage  int `json:"currentPage"`
			TotalPages   int `json:"totalPages"`
			TotalTasks   int `json:"totalTasks"`
			TasksPerPage int `json:"tasksPerPage"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Tasks) != 5 || page.Pagination.TotalPages != 2 || page.Pagination.TotalTasks != 15 || page.Pagination.CurrentPage != 2 {
		t.Fatalf("pagination = %+v (items %d)", page.Pagination, len(page.Tasks))
	}

	_, env = alice.do(http.MethodGet, "/api/v1/tasks?status=completed&priority=high", nil)
	_ = json.Unmarshal(env.Data, &page)
	if len(page.Tasks) != 3 {
		t.Fatalf("filtered = %d, want 3", len(page.Tasks))
	}

	w, env = alice.do(http.MethodGet, "/api/v1/tasks?status=done", nil)
	if w.Code != http.StatusBadRequest || len(env.Errors) == 0 {
		t.Fatalf("bad filter: %d %+v", w.Code, env)
	}

	w, _ = alice.do(http.MethodGet, "/api/v1/tasks/"+firstID, nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+firstID, nil)
	req.Header.Set("Authorization", "Bearer "+alice.token)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional get: %d", rec.Code)
	}
}

func TestNotFoundAndOps(t *testing.T) {
	router := setupRouter(t, "cookie")
	c := &client{t: t, router: router}

	w, env := c.do(http.MethodGet, "/api/v1/nope", nil)
	if w.Code != http.StatusNotFound || env.Success || env.Message != "Route not found" {
		t.Fatalf("no route: %d %+v", w.Code, env)
	}

	w, env = c.do(http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || !env.Success || env.Message != "API is running" {
		t.Fatalf("health: %d %+v", w.Code, env)
	}

	for _, p := range []string{"/healthz", "/readyz", "/metrics", "/docs", "/docs/openapi.yaml"} {
		w, _ = c.do(http.MethodGet, p, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d", p, w.Code)
		}
	}
}
