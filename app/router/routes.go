// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/udyogsetu/messaging-core/app/dto"
	"github.com/udyogsetu/messaging-core/app/handlers"
	"github.com/udyogsetu/messaging-core/app/middleware"
	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	cfg             *config.ProductionConfig
	messageHandler  handlers.MessageHandlerInterface
	templateHandler handlers.TemplateHandlerInterface
	webhookHandler  handlers.WebhookHandlerInterface
	consentHandler  handlers.ConsentHandlerInterface
	healthHandler   handlers.HealthHandlerInterface
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	messageHandler handlers.MessageHandlerInterface,
	templateHandler handlers.TemplateHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	consentHandler handlers.ConsentHandlerInterface,
	healthHandler handlers.HealthHandlerInterface,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Messaging Core API",
		ServerHeader: "messaging-core",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		cfg:             cfg,
		messageHandler:  messageHandler,
		templateHandler: templateHandler,
		webhookHandler:  webhookHandler,
		consentHandler:  consentHandler,
		healthHandler:   healthHandler,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health is unthrottled; prometheus scraping runs on its own listener
	api.Get("/health", r.healthHandler.Liveness)

	// General rate limiting for API routes; webhooks are exempt because
	// vendor callback bursts track outbound volume, not client behavior
	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			path := c.Path()
			return path == "/api/v1/health" || strings.HasPrefix(path, "/api/v1/webhooks/")
		},
	}))

	// Outbound messaging
	messages := api.Group("/messages")
	messages.Post("/send", r.messageHandler.SendMessage)
	messages.Get("/", r.messageHandler.ListMessages)

	api.Post("/triggers/event", r.messageHandler.HandleBusinessEvent)
	api.Get("/usage", r.messageHandler.GetUsage)

	// Template lifecycle
	templates := api.Group("/templates")
	templates.Post("/", r.templateHandler.SubmitTemplate)
	templates.Get("/", r.templateHandler.ListTemplates)
	templates.Post("/:id/sync", r.templateHandler.SyncTemplate)

	// Consent
	optIns := api.Group("/opt-ins")
	optIns.Post("/", r.consentHandler.OptIn)
	optIns.Post("/opt-out", r.consentHandler.OptOut)
	optIns.Get("/", r.consentHandler.GetOptIn)

	// Vendor callbacks. Meta verifies the subscription with a GET
	// handshake before delivering events on POST.
	webhooks := api.Group("/webhooks")
	webhooks.Get("/meta", r.webhookHandler.VerifyMetaChallenge)
	webhooks.Post("/:provider", r.webhookHandler.ReceiveWebhook)

	// Operations
	providers := api.Group("/providers")
	providers.Get("/health", r.healthHandler.ProviderHealth)
	providers.Post("/mappings/reload", r.healthHandler.ReloadMappings)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		XDNSPrefetchControl:   "off",
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Server.EnableMetrics {
		r.app.Use(middleware.Metrics())
	}

	// Structured access logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)
	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
