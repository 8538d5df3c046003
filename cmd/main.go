package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskquest/internal/auth"
	"taskquest/internal/cache"
	"taskquest/internal/config"
	"taskquest/internal/database"
	"taskquest/internal/handlers"
	"taskquest/internal/jobs"
	"taskquest/internal/logger"
	"taskquest/internal/middleware"
	"taskquest/internal/notify"
	"taskquest/internal/services"
	"taskquest/internal/storage"
	"taskquest/internal/voiceai"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Infrastructure
	fileStore, err := storage.NewS3Store(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}
	leaderboardCache := cache.NewLeaderboardCache(cfg.Redis)
	voiceClient := voiceai.NewClient(cfg.VoiceAI.BaseURL, cfg.VoiceAI.APIKey, cfg.VoiceAI.TranscriptionModel, cfg.VoiceAI.ParsingModel)
	notifier := notify.NewLogNotifier(logger.Log)

	// Services
	creditService := services.NewCreditService(db)
	progressionService := services.NewProgressionService(db, creditService)
	streakService := services.NewStreakService(db, creditService, progressionService)
	challengeService := services.NewChallengeService(db, creditService, progressionService, leaderboardCache)
	contributionService := services.NewContributionService(db, creditService, progressionService, streakService, challengeService)
	duelService := services.NewDuelService(db, creditService, progressionService, challengeService, notifier)
	voiceService := services.NewVoiceService(db, fileStore, voiceClient, challengeService)
	authService := services.NewAuthService(db, creditService)
	auditService := services.NewAuditService(db, logger.Log, cfg.App.IPHashSalt)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, auditService)
	walletHandler := handlers.NewWalletHandler(creditService, auditService, cfg.App.AdminUsername)
	rewardsHandler := handlers.NewRewardsHandler(progressionService, streakService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, auditService)
	contributionHandler := handlers.NewContributionHandler(contributionService, auditService, fileStore)
	duelHandler := handlers.NewDuelHandler(duelService, auditService)
	voiceHandler := handlers.NewVoiceHandler(voiceService)

	// Daily streak sweep
	streakChecker := jobs.NewStreakChecker(streakService, notifier, logger.Log)
	if err := streakChecker.Start(); err != nil {
		log.Fatalf("Failed to start streak checker: %v", err)
	}
	defer streakChecker.Stop()
	logger.Log.Info("streak checker started")

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	// Authenticated /api/auth/me route
	authProtected := router.Group("/api/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.Me)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Wallet endpoints
		api.GET("/wallet", walletHandler.GetWallet)
		api.GET("/wallet/transactions", walletHandler.ListTransactions)
		api.GET("/wallet/cost", walletHandler.GetChallengeCost)
		api.GET("/wallet/config", walletHandler.GetConfig)

		// Progression endpoints
		api.GET("/rewards/stats", rewardsHandler.GetStats)
		api.GET("/rewards/events", rewardsHandler.ListEvents)
		api.GET("/rewards/badges", rewardsHandler.ListBadges)
		api.GET("/rewards/streaks", rewardsHandler.ListStreaks)
		api.POST("/rewards/checkin", rewardsHandler.DailyCheckIn)

		// Challenge endpoints
		api.POST("/challenges", challengeHandler.Create)
		api.GET("/challenges", challengeHandler.List)
		api.GET("/challenges/:id", challengeHandler.Get)
		api.DELETE("/challenges/:id", challengeHandler.Delete)
		api.POST("/challenges/:id/cancel", challengeHandler.Cancel)
		api.POST("/challenges/:id/join", challengeHandler.Join)
		api.POST("/challenges/:id/leave", challengeHandler.Leave)
		api.POST("/challenges/:id/invite", challengeHandler.Invite)
		api.GET("/challenges/:id/leaderboard", challengeHandler.Leaderboard)

		// Contribution endpoints
		api.POST("/challenges/:id/contributions", contributionHandler.Log)
		api.GET("/challenges/:id/contributions", contributionHandler.List)
		api.GET("/challenges/:id/reviews/pending", contributionHandler.PendingReviews)
		api.POST("/contributions/:id/proofs", contributionHandler.SubmitProof)
		api.POST("/proofs/:id/review", contributionHandler.Review)
		api.GET("/proofs/:id/file", contributionHandler.ProofFileURL)

		// Duel endpoints
		api.POST("/duels", duelHandler.Create)
		api.GET("/duels", duelHandler.List)
		api.GET("/duels/:id", duelHandler.Get)
		api.POST("/duels/:id/accept", duelHandler.Accept)
		api.POST("/duels/:id/decline", duelHandler.Decline)
		api.POST("/duels/:id/complete", duelHandler.Complete)

		// Voice memo endpoints
		api.POST("/voice-memos", voiceHandler.Upload)
		api.GET("/voice-memos", voiceHandler.List)
		api.GET("/voice-memos/:id", voiceHandler.Get)
		api.POST("/voice-memos/:id/process", voiceHandler.Process)
		api.POST("/voice-memos/:id/create-challenge", voiceHandler.CreateChallenge)
		api.POST("/voice-memos/:id/dismiss", voiceHandler.Dismiss)
	}

	// Admin routes (protected, username-gated in handlers)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	{
		admin.PATCH("/config", walletHandler.UpdateConfig)
		admin.POST("/credits", walletHandler.AdminAdjust)
		admin.GET("/economy", walletHandler.GetEconomyStats)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("server starting", zap.String("port", cfg.Server.Port))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down server")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Log.Info("server exited")
}
