package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/database"
	"github.com/openbrgy/portal/internal/handlers"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/ratelimit"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testApp struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
}

// newTestApp wires a trimmed copy of the production route table against an
// in-memory database.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cfg := &config.Config{
		JWTSecret: "test-secret",
		JWTTTL:    time.Hour,
		GuestTTL:  time.Hour,
		DBType:    "sqlite",
	}
	blobs := storage.NewGormStore(db)
	notifier := &services.Notifier{DB: db}
	stats := services.NewStatsCache(time.Minute)

	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})

	authHandler := &handlers.AuthHandler{DB: db, Cfg: cfg}
	requestHandler := &handlers.RequestHandler{DB: db, Notifier: notifier, Generator: &services.Generator{DB: db, Blobs: blobs}, Stats: stats}
	adminHandler := &handlers.AdminHandler{DB: db, Notifier: notifier, Stats: stats, Blobs: blobs}
	notificationHandler := &handlers.NotificationHandler{Notifier: notifier}

	requireAuth := middleware.RequireAuth(cfg, db)
	staffOnly := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := app.Group("/api")
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)

	requests := api.Group("/requests", requireAuth)
	requests.Post("/", requestHandler.Create)
	requests.Get("/", requestHandler.List)
	requests.Get("/:id", requestHandler.Get)
	requests.Patch("/:id/status", staffOnly, requestHandler.PatchStatus)

	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)

	admin := api.Group("/admin", requireAuth, adminOnly)
	admin.Get("/users", adminHandler.ListUsers)

	return &testApp{app: app, db: db, cfg: cfg}
}

// testErrorHandler mirrors the production envelope.
func testErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var custom *types.CustomError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &custom):
		code = custom.Code
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"status": code, "message": err.Error(), "ok": false})
}

func (ta *testApp) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	user := models.User{Username: username, Role: role, Active: true}
	if err := ta.db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	token, err := services.IssueToken(ta.cfg, &user)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

func (ta *testApp) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestAuthFlow(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.request(t, "POST", "/api/auth/register", "", fiber.Map{
		"username": "maria",
		"password": "correct-horse",
		"email":    "maria@example.com",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201 from register, got %d", resp.StatusCode)
	}
	var reg struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	decodeBody(t, resp, &reg)
	if reg.Token == "" || reg.User == nil {
		t.Fatal("Expected token and user in the registration response")
	}

	resp = ta.request(t, "GET", "/api/auth/me", reg.Token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from /me, got %d", resp.StatusCode)
	}
	var me models.User
	decodeBody(t, resp, &me)
	if me.Username != "maria" {
		t.Errorf("Expected maria from /me, got %s", me.Username)
	}

	resp = ta.request(t, "POST", "/api/auth/login", "", fiber.Map{
		"username": "maria", "password": "wrong",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for bad credentials, got %d", resp.StatusCode)
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	ta := newTestApp(t)

	for _, path := range []string{"/api/requests/", "/api/notifications/unread-count", "/api/auth/me"} {
		resp := ta.request(t, "GET", path, "", nil)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("Expected 401 for %s without a token, got %d", path, resp.StatusCode)
		}
	}

	resp := ta.request(t, "GET", "/api/auth/me", "not-a-jwt", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for a garbage token, got %d", resp.StatusCode)
	}
}

func TestRoleGates(t *testing.T) {
	ta := newTestApp(t)
	resident := ta.tokenFor(t, "maria", models.RoleResident)
	admin := ta.tokenFor(t, "boss", models.RoleAdmin)

	resp := ta.request(t, "GET", "/api/admin/users", resident, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 for a resident on an admin route, got %d", resp.StatusCode)
	}

	resp = ta.request(t, "GET", "/api/admin/users", admin, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 for an admin, got %d", resp.StatusCode)
	}
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	resident := ta.tokenFor(t, "maria", models.RoleResident)
	staff := ta.tokenFor(t, "staffer", models.RoleStaff)

	resp := ta.request(t, "POST", "/api/requests/", resident, fiber.Map{
		"type":    "barangay_clearance",
		"purpose": "employment",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201 creating a request, got %d", resp.StatusCode)
	}
	var created models.DocumentRequest
	decodeBody(t, resp, &created)
	if created.Status != models.StatusPending {
		t.Errorf("Expected pending, got %s", created.Status)
	}

	// Residents cannot transition status.
	resp = ta.request(t, "PATCH", "/api/requests/"+created.ID+"/status", resident, fiber.Map{
		"status": models.StatusApproved,
	})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 for a resident transition, got %d", resp.StatusCode)
	}

	// Staff approval assigns a document number.
	resp = ta.request(t, "PATCH", "/api/requests/"+created.ID+"/status", staff, fiber.Map{
		"status": models.StatusApproved,
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 approving, got %d", resp.StatusCode)
	}
	var approved models.DocumentRequest
	decodeBody(t, resp, &approved)
	if approved.DocumentNumber == nil {
		t.Error("Expected a document number after approval")
	}

	// A disallowed transition surfaces as 409.
	resp = ta.request(t, "PATCH", "/api/requests/"+created.ID+"/status", staff, fiber.Map{
		"status": models.StatusProcessing,
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("Expected 409 for approved -> processing, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimitPerUser(t *testing.T) {
	ta := newTestApp(t)
	limiter, err := ratelimit.NewFixedWindowLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}
	app := fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	authHandler := &handlers.AuthHandler{DB: ta.db, Cfg: ta.cfg, Limiter: limiter}
	app.Post("/api/auth/login", authHandler.Login)

	attempt := func(username string) int {
		t.Helper()
		raw, _ := json.Marshal(fiber.Map{"username": username, "password": "wrong"})
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, 5000)
		if err != nil {
			t.Fatalf("app.Test failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if code := attempt("maria"); code != fiber.StatusUnauthorized {
			t.Fatalf("Expected 401 on attempt %d, got %d", i+1, code)
		}
	}
	if code := attempt("maria"); code != fiber.StatusTooManyRequests {
		t.Errorf("Expected 429 once maria's quota is spent, got %d", code)
	}

	// Another username from the same address has its own bucket.
	if code := attempt("jose"); code != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for jose from the same address, got %d", code)
	}
}

func TestRequestVisibilityScoping(t *testing.T) {
	ta := newTestApp(t)
	maria := ta.tokenFor(t, "maria", models.RoleResident)
	jose := ta.tokenFor(t, "jose", models.RoleResident)
	staff := ta.tokenFor(t, "staffer", models.RoleStaff)

	resp := ta.request(t, "POST", "/api/requests/", maria, fiber.Map{
		"type": "barangay_clearance",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var created models.DocumentRequest
	decodeBody(t, resp, &created)

	// Another resident gets a 403 on direct access and an empty list.
	resp = ta.request(t, "GET", "/api/requests/"+created.ID, jose, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403 for a foreign request, got %d", resp.StatusCode)
	}
	resp = ta.request(t, "GET", "/api/requests/", jose, nil)
	var list []models.DocumentRequest
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("Expected an empty list for jose, got %d", len(list))
	}

	// Staff see everything.
	resp = ta.request(t, "GET", "/api/requests/"+created.ID, staff, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 for staff access, got %d", resp.StatusCode)
	}
}
