package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mandate-portal/config"
	"mandate-portal/handlers"
	"mandate-portal/middleware"
	"mandate-portal/models"
	"mandate-portal/services"
	"mandate-portal/utils"
	"mandate-portal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newLogger(cfg config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	if !cfg.IsProduction() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	return logger
}

func main() {
	cfg := config.Load()
	cfg.Validate()

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	httpClient := utils.NewHTTPClient(cfg.OutboundTimeout)

	// 📧 Mail
	var mailer services.Mailer = &services.LogMailer{Logger: logger}
	if cfg.ResendAPIKey != "" {
		mailer = services.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom, httpClient, logger)
	} else {
		logger.Warn("⚠️ RESEND_API_KEY not set, mails are only logged")
	}

	// ✍️ E-signature
	var (
		esign    services.ESign
		workflow *services.DocumentWorkflow
	)
	if cfg.ESignAPIKey != "" {
		client := services.NewESignClient(cfg.ESignAPIURL, cfg.ESignAPIKey, cfg.OutboundTimeout)
		esign = client
		if cfg.ESignEnabled() {
			workflow = services.NewDocumentWorkflow(db, client, cfg.ESignTemplateID, cfg.ESignRecipientRole, logger)
		}
	} else {
		logger.Warn("⚠️ ESIGN_API_KEY not set, power of attorney workflow disabled")
	}

	// 🗄️ Optional archive
	var archive services.DocumentStore
	if cfg.ArchiveEnabled() {
		a, err := utils.NewDocumentArchive(ctx, utils.R2Settings{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
		})
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archive = a
	}

	reconciler := &services.Reconciler{
		DB:            db,
		ESign:         esign,
		Archive:       archive,
		PublicBaseURL: cfg.PublicBaseURL,
		Clock:         clock,
		Logger:        logger,
	}

	adminSessions := services.NewAdminSessions(cfg.AdminSessionSecret, cfg.IsProduction(), clock)
	partnerSessions := services.NewPartnerSessions(cfg.PartnerJWTSecret, cfg.IsProduction(), clock)

	mandateService := &services.MandateService{
		DB:            db,
		ESign:         esign,
		Workflow:      workflow,
		Reconciler:    reconciler,
		Archive:       archive,
		Mailer:        mailer,
		PublicBaseURL: cfg.PublicBaseURL,
		KanzleiEmail:  cfg.KanzleiEmail,
		ESignInfo: services.ESignInfo{
			APIURL:                  cfg.ESignAPIURL,
			APIKeyConfigured:        cfg.ESignAPIKey != "",
			TemplateConfigured:      cfg.ESignTemplateID != "",
			WebhookSecretConfigured: cfg.ESignWebhookSecret != "",
			RecipientRole:           cfg.ESignRecipientRole,
			ArchiveEnabled:          archive != nil,
		},
		Clock:  clock,
		Logger: logger,
	}
	partnerService := &services.PartnerService{
		DB:             db,
		PublicBaseURL:  cfg.PublicBaseURL,
		LeadUnitAmount: cfg.LeadUnitAmount,
		Logger:         logger,
	}
	partnerAuthService := &services.PartnerAuthService{
		DB:            db,
		Mailer:        mailer,
		Sessions:      partnerSessions,
		PublicBaseURL: cfg.PublicBaseURL,
		Clock:         clock,
		Logger:        logger,
	}
	adminAuthService := &services.AdminAuthService{
		DB:       db,
		Sessions: adminSessions,
		Logger:   logger,
	}
	webhookService := services.NewWebhookService(reconciler, logger, services.PandaDocWebhook(cfg.ESignWebhookSecret))
	if cfg.ESignWebhookSecret == "" {
		logger.Warn("⚠️ ESIGN_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	app := fiber.New(fiber.Config{
		AppName:   "mandate-portal",
		BodyLimit: 1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))

	allowedOrigins := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins, ","),
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Disposition, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers.SetupMandateRoutes(app, mandateService, middleware.RateLimit(middleware.LenientLimit, logger))
	handlers.SetupAdminRoutes(app, handlers.AdminRoutes{
		Auth:         adminAuthService,
		Mandates:     mandateService,
		Partners:     partnerService,
		Guard:        middleware.AdminSession(adminSessions, logger),
		LoginLimiter: middleware.RateLimit(middleware.StrictLimit, logger),
	})
	handlers.SetupPartnerRoutes(app, handlers.PartnerRoutes{
		Auth:        partnerAuthService,
		Partners:    partnerService,
		Guard:       middleware.PartnerSession(partnerSessions, db, logger),
		LinkLimiter: middleware.RateLimit(middleware.StrictLimit, logger),
	})
	handlers.SetupWebhookRoutes(app, webhookService)

	// 🔁 Background jobs
	if esign != nil && cfg.SignatureSyncInterval > 0 {
		workers.NewSignatureSyncWorker(reconciler, cfg.SignatureSyncInterval, clock, logger).Start(ctx)
	}
	if cfg.TokenCleanupInterval > 0 {
		sched, err := partnerAuthService.StartTokenCleanupScheduler(cfg.TokenCleanupInterval)
		if err != nil {
			log.Fatal("failed to start token cleanup scheduler:", err)
		}
		defer func() { _ = sched.Shutdown() }()
	}

	go func() {
		<-ctx.Done()
		logger.Info("🛑 shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("🚀 server listening", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
