// Package api wires the HTTP handlers and middleware into an Echo router.
package api

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailcore/internal/api/handlers"
	"github.com/welldanyogia/webrana-mailcore/internal/api/middleware"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"github.com/welldanyogia/webrana-mailcore/internal/services"
	"github.com/welldanyogia/webrana-mailcore/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB          *gorm.DB
	Mail        services.MailService
	Mailboxes   services.MailboxService
	Organizer   services.OrganizerService
	Filters     services.FilterService
	Delivery    services.DeliveryService
	Maintenance services.MaintenanceService
	Counters    handlers.CounterReader
	Hub         *websocket.Hub
	Logger      *slog.Logger
	Audit       *logger.AuditLogger

	// Extra dependencies reported by /health
	HealthChecks []handlers.Check

	// Security configuration
	APIKey         string   // API key for authentication (empty = disabled)
	AllowedOrigins []string // Allowed CORS and websocket origins
	Production     bool
	RateLimit      float64 // Requests per second
	RateBurst      int     // Burst size for rate limiter

	// Hostname used in generated Message-IDs
	Hostname string
}

// NewRouter creates and configures the Echo router with all routes.
// Background middleware work stops when ctx is done.
func NewRouter(ctx context.Context, cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	l := logger.OrDefault(cfg.Logger)
	audit := cfg.Audit
	if audit == nil {
		audit = logger.NewAuditLogger(l)
	}

	// Security Middleware (applied in correct order)
	// 1. Recover from panics
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// 2. Security headers (applied to all responses)
	e.Use(middleware.SecureHeaders())

	// 3. CORS
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))

	// 4. Rate limiting
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(ctx, cfg.RateLimit, cfg.RateBurst, audit))
	}

	// 5. Request logging and metrics
	e.Use(middleware.RequestLogger(l))
	e.Use(middleware.Metrics())

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.HealthChecks...)
	mailboxHandler := handlers.NewMailboxHandler(cfg.Mailboxes)
	messageHandler := handlers.NewMessageHandler(cfg.Mail, l)
	attachmentHandler := handlers.NewAttachmentHandler(cfg.Mail, l)
	organizerHandler := handlers.NewOrganizerHandler(cfg.Organizer)
	filterHandler := handlers.NewFilterHandler(cfg.Filters)
	folderHandler := handlers.NewFolderHandler(cfg.Counters, cfg.Maintenance)
	sendHandler := handlers.NewSendHandler(cfg.Delivery, cfg.Hostname)

	// Public routes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// API routes
	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, audit))
	api.Use(middleware.Scope())

	// Mailbox routes
	mailboxes := api.Group("/mailboxes")
	mailboxes.POST("", mailboxHandler.Create)
	mailboxes.GET("", mailboxHandler.List)
	mailboxes.GET("/:id", mailboxHandler.Get)
	mailboxes.DELETE("/:id", mailboxHandler.Delete)

	// Listings and outgoing mail (nested under mailboxes)
	mailboxes.GET("/:mailbox_id/messages", messageHandler.List)
	mailboxes.GET("/:mailbox_id/conversations", messageHandler.ListConversations)
	mailboxes.POST("/:mailbox_id/send", sendHandler.Send)

	// Batch message mutations
	messages := api.Group("/messages")
	messages.GET("/:id", messageHandler.Get)
	messages.POST("/unread", messageHandler.SetUnread)
	messages.POST("/important", messageHandler.SetImportant)
	messages.POST("/move", messageHandler.Move)
	messages.POST("/remove", messageHandler.Remove)
	messages.POST("/restore", messageHandler.Restore)
	messages.POST("/tags", messageHandler.AddTag)
	messages.POST("/tags/remove", messageHandler.RemoveTag)
	messages.POST("/:id/filters", filterHandler.ApplyToMessage)

	// Attachment routes
	messages.GET("/:message_id/attachments", attachmentHandler.List)
	attachments := api.Group("/attachments")
	attachments.GET("/:id", attachmentHandler.Get)
	attachments.GET("/:id/download", attachmentHandler.Download)

	// Conversations
	api.POST("/conversations/refresh", messageHandler.UpdateChain)

	// Folders and counters
	folders := api.Group("/folders")
	folders.GET("/counters", folderHandler.Counters)
	folders.POST("/recalculate", folderHandler.Recalculate)
	folders.POST("/:folder/empty", messageHandler.EmptyFolder)

	// User folders
	userFolders := api.Group("/user-folders")
	userFolders.POST("", organizerHandler.CreateUserFolder)
	userFolders.GET("", organizerHandler.ListUserFolders)
	userFolders.PUT("/:id", organizerHandler.RenameUserFolder)
	userFolders.DELETE("/:id", organizerHandler.DeleteUserFolder)

	// Tags
	tags := api.Group("/tags")
	tags.POST("", organizerHandler.CreateTag)
	tags.GET("", organizerHandler.ListTags)
	tags.DELETE("/:id", organizerHandler.DeleteTag)

	// Filter rules
	filters := api.Group("/filters")
	filters.POST("", filterHandler.Create)
	filters.GET("", filterHandler.List)
	filters.GET("/:id", filterHandler.Get)
	filters.PUT("/:id", filterHandler.Update)
	filters.DELETE("/:id", filterHandler.Delete)
	filters.POST("/:id/enable", filterHandler.Enable)
	filters.POST("/:id/apply", filterHandler.Apply)

	// Realtime notifications
	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(cfg.AllowedOrigins, audit)
		wsHandler := handlers.NewWebSocketHandler(cfg.Hub, upgrader, l)
		api.GET("/ws", wsHandler.Handle)
	}

	return e
}
