package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/openbrgy/portal/internal/config"
	"github.com/openbrgy/portal/internal/database"
	"github.com/openbrgy/portal/internal/handlers"
	"github.com/openbrgy/portal/internal/mailer"
	"github.com/openbrgy/portal/internal/middleware"
	"github.com/openbrgy/portal/internal/models"
	"github.com/openbrgy/portal/internal/ratelimit"
	"github.com/openbrgy/portal/internal/realtime"
	"github.com/openbrgy/portal/internal/services"
	"github.com/openbrgy/portal/internal/storage"
	"github.com/openbrgy/portal/internal/types"
	"gorm.io/gorm"

	_ "github.com/openbrgy/portal/docs/api" // Swagger docs
)

// @title Barangay Portal API
// @version 1.0.0
// @description Resident services portal: document requests, verifiable document generation, inquiries and notifications

// @contact.name API Support
// @contact.url https://github.com/openbrgy/portal

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Blob storage
	blobs, err := newBlobStore(cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	// Shared services
	registry := realtime.NewRegistry()
	notifier := &services.Notifier{DB: db, Registry: registry}
	generator := &services.Generator{DB: db, Blobs: blobs}
	statusMailer := mailer.New(cfg)
	stats := services.NewStatsCache(cfg.StatsCacheTTL)
	loginLimiter, err := ratelimit.NewFixedWindowLimiter(10, time.Minute)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    16 << 20,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("portal")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	app.Use(middleware.VersionMiddleware())

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Handlers
	authHandler := &handlers.AuthHandler{DB: db, Cfg: cfg, Limiter: loginLimiter}
	profileHandler := &handlers.ProfileHandler{DB: db, Blobs: blobs}
	templateHandler := &handlers.TemplateHandler{DB: db, Blobs: blobs}
	requestHandler := &handlers.RequestHandler{DB: db, Notifier: notifier, Mailer: statusMailer, Generator: generator, Stats: stats}
	notificationHandler := &handlers.NotificationHandler{Notifier: notifier}
	inquiryHandler := &handlers.InquiryHandler{DB: db, Notifier: notifier}
	adminHandler := &handlers.AdminHandler{DB: db, Notifier: notifier, Stats: stats, Blobs: blobs}
	publicHandler := &handlers.PublicHandler{DB: db, Cfg: cfg, Blobs: blobs}
	fileHandler := &handlers.FileHandler{DB: db, Blobs: blobs}
	wsHandler := &handlers.WSHandler{DB: db, Cfg: cfg, Registry: registry}

	// Health
	app.Get("/healthz", publicHandler.Health)

	// API routes under /api
	api := app.Group("/api")

	requireAuth := middleware.RequireAuth(cfg, db)
	staffOnly := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/guest", authHandler.Guest)
	auth.Get("/me", requireAuth, authHandler.Me)

	// Profile
	api.Get("/profile", requireAuth, profileHandler.Get)
	api.Put("/profile", requireAuth, profileHandler.Update)
	api.Put("/profile/avatar", requireAuth, profileHandler.UploadAvatar)

	// Files
	api.Get("/files/avatar/:id", requireAuth, fileHandler.Avatar)
	api.Get("/files/official/:id", fileHandler.OfficialPhoto)

	// Templates (staff/admin)
	templates := api.Group("/templates", requireAuth, staffOnly)
	templates.Post("/", templateHandler.Create)
	templates.Get("/", templateHandler.List)
	templates.Get("/:id", templateHandler.Get)
	templates.Get("/:id/fields", templateHandler.Fields)
	templates.Delete("/:id", templateHandler.Delete)

	// Document requests
	requests := api.Group("/requests", requireAuth)
	requests.Post("/", requestHandler.Create)
	requests.Get("/", requestHandler.List)
	requests.Get("/:id", requestHandler.Get)
	requests.Patch("/:id/status", staffOnly, requestHandler.PatchStatus)
	requests.Post("/:id/generate", staffOnly, requestHandler.Generate)
	requests.Get("/:id/document", requestHandler.Download)

	// Notifications
	notifications := api.Group("/notifications", requireAuth)
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Patch("/read", notificationHandler.MarkManyRead)
	notifications.Patch("/:id/read", notificationHandler.MarkRead)

	// Inquiries
	inquiries := api.Group("/inquiries", requireAuth)
	inquiries.Post("/", inquiryHandler.Create)
	inquiries.Get("/", inquiryHandler.List)
	inquiries.Get("/:id", inquiryHandler.Get)
	inquiries.Post("/:id/messages", inquiryHandler.AddMessage)
	inquiries.Patch("/:id", staffOnly, inquiryHandler.Update)

	// Admin
	admin := api.Group("/admin", requireAuth, adminOnly)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Patch("/users/:id", adminHandler.UpdateUser)
	admin.Get("/statistics", adminHandler.Statistics)
	admin.Post("/officials", adminHandler.CreateOfficial)
	admin.Get("/officials", adminHandler.ListOfficials)
	admin.Put("/officials/:id", adminHandler.UpdateOfficial)
	admin.Put("/officials/:id/photo", adminHandler.UploadOfficialPhoto)
	admin.Delete("/officials/:id", adminHandler.DeleteOfficial)
	admin.Get("/settings", adminHandler.GetSettings)
	admin.Put("/settings/:key", adminHandler.PutSetting)

	// Public
	api.Get("/officials", publicHandler.Officials)
	api.Get("/settings/public", publicHandler.PublicSettings)
	api.Post("/verify", publicHandler.Verify)

	// Realtime notification stream
	app.Use("/ws", wsHandler.Upgrade)
	app.Get("/ws/notifications", wsHandler.Notifications())

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		registry.Shutdown()
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// newBlobStore selects the configured blob backend: MinIO, or database-chunked
// rows for single-box deployments without object storage.
func newBlobStore(cfg *config.Config, db *gorm.DB) (storage.BlobStore, error) {
	if cfg.BlobDriver == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewGormStore(db), nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := types.ErrTypeUnexpected

	var custom *types.CustomError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &custom):
		code = custom.Code
		message = custom.Message
		errorType = custom.Type
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = fiber.StatusNotFound
		message = "resource not found"
		errorType = types.ErrTypeNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		code = fiber.StatusConflict
		message = "duplicate resource"
		errorType = types.ErrTypeConflict
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
