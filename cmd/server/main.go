package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatboard/internal/auth"
	"chatboard/internal/bot"
	"chatboard/internal/channel"
	"chatboard/internal/config"
	"chatboard/internal/database"
	"chatboard/internal/handlers"
	"chatboard/internal/middleware"
	"chatboard/internal/realtime"
	"chatboard/internal/repositories"
	"chatboard/internal/services"
	"chatboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// =========================================================================
	// Load configuration
	// =========================================================================
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// =========================================================================
	// Khởi tạo Logger
	// =========================================================================
	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
	)

	// =========================================================================
	// Kết nối Database
	// =========================================================================
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Auto migrate trong development mode
	if cfg.App.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			log.Warn("auto migrate failed", zap.Error(err))
		} else {
			log.Info("database auto migration completed")
		}
	}

	// =========================================================================
	// Khởi tạo Repositories
	// =========================================================================
	userRepo := repositories.NewUserRepository(db)
	instanceRepo := repositories.NewChannelInstanceRepository(db)
	boardRepo := repositories.NewBoardRepository(db)
	botRepo := repositories.NewBotRepository(db)
	ovenRepo := repositories.NewOvenRepository(db)

	log.Info("repositories initialized")

	// =========================================================================
	// Khởi tạo Channel Registry, reconnect instances đang active
	// =========================================================================
	registry := channel.NewRegistry()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	instances, err := instanceRepo.FindActive(startupCtx)
	cancelStartup()
	if err != nil {
		log.Warn("load active instances failed", zap.Error(err))
	}
	for i := range instances {
		instance := &instances[i]
		var adapter channel.Adapter
		switch {
		case instance.IsCloud():
			adapter = channel.NewCloudAdapter(instance, cfg.Channel.CloudAPIBaseURL, log)
		default:
			adapter = channel.NewWebAdapter(instance, cfg.Channel.StaticDir, log)
		}
		registry.Register(instance.ID, adapter)
		log.Info("registered channel instance",
			zap.String("instance_id", instance.ID.String()),
			zap.String("kind", string(instance.Kind)),
		)
	}

	// =========================================================================
	// Khởi tạo Realtime Publisher (Centrifugo)
	// =========================================================================
	var publisher realtime.Publisher
	if cfg.Centrifugo.URL != "" && cfg.Centrifugo.APIKey != "" {
		publisher = realtime.NewCentrifugoClient(cfg.Centrifugo.URL, cfg.Centrifugo.APIKey, log)
		log.Info("centrifugo publisher initialized", zap.String("url", cfg.Centrifugo.URL))
	} else {
		publisher = realtime.NewNoopPublisher()
		log.Warn("centrifugo not configured, using noop publisher")
	}

	// =========================================================================
	// Khởi tạo Services
	// =========================================================================
	boardService := services.NewBoardService(boardRepo, botRepo, registry, publisher, log)
	ovenService := services.NewOvenService(ovenRepo, registry, publisher, log)

	botRuntime := bot.NewRuntime(
		botRepo,
		registry,
		publisher,
		boardService,
		ovenService,
		cfg.Bot.MessageDelay,
		log,
	)

	messageService := services.NewMessageService(
		instanceRepo,
		boardRepo,
		ovenRepo,
		boardService,
		botRuntime,
		publisher,
		log,
	)

	inboundQueue := services.NewInboundQueue(messageService, cfg.Channel.QueueDrainInterval, log)

	log.Info("services initialized")

	// =========================================================================
	// Khởi tạo Handlers
	// =========================================================================
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := services.NewAuthService(userRepo, jwtService, log)
	authHandler := handlers.NewAuthHandler(authService, log)
	authMiddleware := middleware.AuthMiddleware(jwtService)

	boardHandler := handlers.NewBoardHandler(boardService, log)
	botHandler := handlers.NewBotHandler(botRepo, botRuntime, log)
	ovenHandler := handlers.NewOvenHandler(ovenService, log)
	instanceHandler := handlers.NewInstanceHandler(instanceRepo, registry, cfg.Channel, log)
	webhookHandler := handlers.NewWebhookHandler(
		registry,
		instanceRepo,
		inboundQueue,
		cfg.Channel.CloudVerifyToken,
		log,
	)

	log.Info("handlers initialized")

	// =========================================================================
	// Background workers: inbound queue drain + sweep cron
	// =========================================================================
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	inboundQueue.Start(workerCtx)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.Bot.SweepInterval), func() {
		botRuntime.Sweep(workerCtx)
	}); err != nil {
		log.Fatal("schedule bot sweep failed", zap.Error(err))
	}
	if _, err := sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.Oven.SweepInterval), func() {
		ovenService.Sweep(workerCtx)
	}); err != nil {
		log.Fatal("schedule oven sweep failed", zap.Error(err))
	}
	sweeper.Start()

	log.Info("background workers started",
		zap.Duration("queue_drain_interval", cfg.Channel.QueueDrainInterval),
		zap.Duration("bot_sweep_interval", cfg.Bot.SweepInterval),
		zap.Duration("oven_sweep_interval", cfg.Oven.SweepInterval),
	)

	// =========================================================================
	// Thiết lập Gin Router
	// =========================================================================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS([]string{"*"}))
	// CSRF protection - exempt auth, webhook và bridge events
	router.Use(middleware.CSRFMiddlewareWithExempt([]string{
		"/api/v1/auth/",
		"/api/v1/webhook/",
		"/api/v1/events/",
		"/health",
	}))

	// Media tĩnh cho waweb outbound
	router.Static("/static", cfg.Channel.StaticDir)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.App.Name,
			"version":   "1.0.0",
			"instances": registry.Count(),
		})
	})

	// =========================================================================
	// API Routes
	// =========================================================================
	api := router.Group("/api/v1")
	{
		// Ping endpoint (public)
		api.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		// Auth routes (login, refresh: public | me, logout: protected)
		authHandler.RegisterRoutes(api, authMiddleware)

		// Webhook + bridge event routes (public, tự xác thực chữ ký/token)
		webhookHandler.RegisterRoutes(api)

		// Protected management routes
		boardHandler.RegisterRoutes(api, authMiddleware)
		botHandler.RegisterRoutes(api, authMiddleware)
		ovenHandler.RegisterRoutes(api, authMiddleware)
		instanceHandler.RegisterRoutes(api, authMiddleware)
	}

	log.Info("routes registered",
		zap.Strings("endpoints", []string{
			"/api/v1/webhook/cloud",
			"/api/v1/events/waweb/:instance_id",
			"/api/v1/boards",
			"/api/v1/bots",
			"/api/v1/ovens",
			"/api/v1/instances",
		}),
	)

	// =========================================================================
	// Khởi động HTTP Server
	// =========================================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// =========================================================================
	// Graceful Shutdown
	// =========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	sweeper.Stop()
	inboundQueue.Stop()
	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
