package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/purrfectbrew/purrfect-brew/internal/assistant"
	"github.com/purrfectbrew/purrfect-brew/internal/auth"
	"github.com/purrfectbrew/purrfect-brew/internal/cafe"
	"github.com/purrfectbrew/purrfect-brew/internal/chat"
	"github.com/purrfectbrew/purrfect-brew/internal/config"
	"github.com/purrfectbrew/purrfect-brew/internal/database"
	"github.com/purrfectbrew/purrfect-brew/internal/health"
	"github.com/purrfectbrew/purrfect-brew/internal/loyalty"
	"github.com/purrfectbrew/purrfect-brew/internal/worker"
)

func main() {
	cfg := config.Load()

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database init failed: %v", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}
	if err := database.SeedRewards(db); err != nil {
		log.Fatalf("Reward seed failed: %v", err)
	}
	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			log.Printf("WARNING: dev seed failed: %v", err)
		}
	}

	content, err := cafe.Load()
	if err != nil {
		log.Fatalf("Cafe manifest failed to load: %v", err)
	}

	auth.InitProviders(cfg)

	assistantClient := assistant.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiStubMode)
	loyaltySvc := loyalty.NewService(db)
	history := chat.NewHistoryStore(db)

	// Redis is optional: without it the chat is unmetered and points never
	// expire, but everything else works.
	var limiter *chat.Limiter
	var stopWorker, stopScheduler func()
	if cfg.RedisURL != "" {
		limiter, err = chat.NewLimiter(cfg.RedisURL, cfg.ChatRateLimit, time.Duration(cfg.ChatRateWindow)*time.Second)
		if err != nil {
			log.Printf("WARNING: chat rate limiter disabled: %v", err)
			limiter = nil
		} else {
			defer limiter.Close()
		}

		if err := worker.InitClient(cfg.RedisURL); err != nil {
			log.Printf("WARNING: worker client init failed: %v", err)
		} else {
			defer worker.CloseClient()
		}

		stopWorker, err = worker.Start(cfg, db)
		if err != nil {
			log.Fatalf("Worker failed to start: %v", err)
		}
		stopScheduler, err = worker.StartScheduler(cfg)
		if err != nil {
			stopWorker()
			log.Fatalf("Scheduler failed to start: %v", err)
		}
	} else {
		log.Println("REDIS_URL not set: chat rate limiting and the point expiry sweep are disabled")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("purrfectbrew_session", store))

	router.GET("/health", gin.WrapF(health.Handler))
	router.GET("/api/cafe", cafe.Handler(content))

	router.GET("/auth/login", auth.HandleLogin)
	router.GET("/auth/callback", auth.HandleCallback(db))
	router.GET("/auth/logout", auth.HandleLogout)

	chatRoutes := router.Group("/api/chat", auth.Identify())
	{
		chatRoutes.POST("/session", chat.SessionHandler(db))
		chatRoutes.GET("/history", chat.HistoryHandler(db, history))
		chatRoutes.POST("", chat.MessageHandler(db, assistantClient, content, history, limiter))
	}

	loyaltyRoutes := router.Group("/api/loyalty")
	{
		loyaltyRoutes.GET("/rewards", loyalty.RewardsHandler(loyaltySvc))

		authed := loyaltyRoutes.Group("", auth.RequireAuth())
		authed.GET("/profile", loyalty.ProfileHandler(loyaltySvc))
		authed.GET("/transactions", loyalty.TransactionsHandler(loyaltySvc))
		authed.POST("/points", loyalty.EarnPointsHandler(loyaltySvc))
		authed.POST("/redeem", loyalty.RedeemHandler(loyaltySvc))
		authed.POST("/expire", worker.TriggerExpireHandler())
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	if stopScheduler != nil {
		stopScheduler()
	}
	if stopWorker != nil {
		stopWorker()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
