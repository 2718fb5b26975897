package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/unlockpay/backend/internal/auth"
	"github.com/unlockpay/backend/internal/catalog"
	"github.com/unlockpay/backend/internal/config"
	"github.com/unlockpay/backend/internal/gateway"
	"github.com/unlockpay/backend/internal/identity"
	"github.com/unlockpay/backend/internal/ledger"
	"github.com/unlockpay/backend/internal/logging"
	"github.com/unlockpay/backend/internal/metrics"
	"github.com/unlockpay/backend/internal/middleware"
	"github.com/unlockpay/backend/internal/notification"
	"github.com/unlockpay/backend/internal/payments"
	"github.com/unlockpay/backend/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Setup configures middlewares and all application routes. It starts the
// notification dispatcher and returns the function that drains it, to be
// called once the app stopped accepting requests.
func Setup(app *fiber.App, d Deps) (func(context.Context) error, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Metrics(d.Metrics))
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", d.Metrics.Handler())

	// Storage
	var (
		store        ledger.Store
		identityRepo identity.Repository
		items        catalog.Lookup
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		items = catalog.NewPostgresCatalog(d.DB)
	} else {
		store = ledger.NewMemoryStore()
		identityRepo = identity.NewMemoryRepository()
		items = catalog.NewMemoryCatalog(catalog.DevelopmentItems()...)
	}

	var gw gateway.Gateway
	if d.Cfg.MidtransServerKey != "" {
		gw = gateway.NewMidtrans(d.Cfg.MidtransServerKey, d.Cfg.MidtransProduction)
	} else {
		gw = gateway.StaticGateway{BaseURL: "http://localhost" + d.Cfg.Address() + "/dev-pay"}
	}

	dispatcher := notification.NewDispatcher(logging.Component(d.Logger, "notification"), d.Metrics,
		d.Cfg.NotifyWorkers, d.Cfg.NotifyQueueSize, notificationChannels(d, identityRepo)...)
	dispatcher.Start()

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, store, logging.Component(d.Logger, "identity"))
	authSvc := auth.NewService(d.Cfg, identityRepo)
	walletSvc := wallet.NewService(store, logging.Component(d.Logger, "wallet"))
	paymentSvc := payments.NewService(store, identityRepo, items, gw, dispatcher, d.Metrics, logging.Component(d.Logger, "payments"))

	authHandler := auth.NewHandler(identitySvc, authSvc)
	identityHandler := identity.NewHandler(identitySvc)
	walletHandler := wallet.NewHandler(walletSvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	webhookHandler := payments.NewWebhookHandler(paymentSvc, d.Cfg.MidtransServerKey, d.Metrics, logging.Component(d.Logger, "webhook"))

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocal).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	jwt := middleware.JWTAuth(authSvc)
	guarded := []fiber.Handler{jwt}
	if d.Cache != nil {
		guarded = append(guarded, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, logging.Component(d.Logger, "idempotency")))
	}

	// Public routes
	RegisterAuthRoutes(api, authHandler, identityHandler, middleware.LoginRateLimit(d.Cache, 5), jwt)
	RegisterWebhookRoutes(api, webhookHandler)

	// Protected routes
	RegisterProfileRoutes(api.Group("/me", guarded...), identityHandler)
	RegisterBalanceRoutes(api.Group("/balance", guarded...), walletHandler, paymentHandler)
	RegisterTransactionRoutes(api.Group("/transactions", guarded...), paymentHandler)

	admin := append([]fiber.Handler{jwt, middleware.RequireRole(identity.RoleAdmin)}, guarded[1:]...)
	RegisterAdminRoutes(api.Group("/admin", admin...), paymentHandler, walletHandler)

	return dispatcher.Stop, nil
}

// notificationChannels builds every channel the configuration enables and
// falls back to logging when none is.
func notificationChannels(d Deps, tokens notification.TokenStore) []notification.Channel {
	var channels []notification.Channel
	if d.Cfg.TelegramBotToken != "" && d.Cfg.TelegramChatID != 0 {
		tg, err := notification.NewTelegram(d.Cfg.TelegramBotToken, d.Cfg.TelegramChatID)
		if err != nil {
			d.Logger.Warn("telegram channel disabled", slog.Any("error", err))
		} else {
			channels = append(channels, tg)
		}
	}
	if d.Cfg.SMTPHost != "" {
		channels = append(channels, notification.NewEmail(d.Cfg.SMTPHost, d.Cfg.SMTPPort,
			d.Cfg.SMTPUsername, d.Cfg.SMTPPassword, d.Cfg.EmailSenderName))
	}
	if d.Cfg.FirebaseCredentialsFile != "" {
		push, err := notification.NewPush(context.Background(), d.Cfg.FirebaseCredentialsFile, tokens,
			logging.Component(d.Logger, "push"))
		if err != nil {
			d.Logger.Warn("push channel disabled", slog.Any("error", err))
		} else {
			channels = append(channels, push)
		}
	}
	if len(channels) == 0 {
		channels = append(channels, notification.NewLoggerChannel(logging.Component(d.Logger, "notification")))
	}
	return channels
}
