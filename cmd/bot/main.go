package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"community-bot-backend/internal/bot"
	"community-bot-backend/internal/common/cache"
	"community-bot-backend/internal/common/config"
	"community-bot-backend/internal/common/logger"
	giveawaymodels "community-bot-backend/internal/features/giveaway/models"
	giveawayservice "community-bot-backend/internal/features/giveaway/service"
	lifecyclepg "community-bot-backend/internal/features/lifecycle/repository/postgres"
	lifecycleservice "community-bot-backend/internal/features/lifecycle/service"
	pollmodels "community-bot-backend/internal/features/poll/models"
	pollservice "community-bot-backend/internal/features/poll/service"
	discordplatform "community-bot-backend/internal/platform/discord"
	"community-bot-backend/internal/platform/postgres"
	"community-bot-backend/internal/platform/redis"
)

func main() {
	cfg := config.Load()
	logger.Init("community-bot", cfg.Debug)

	ctx := context.Background()

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	redisClient, err := redis.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	snapshots := cache.NewCacheService(redisClient)

	db := postgresClient.GetDB()
	giveawayStore := lifecyclepg.NewStore[giveawaymodels.Payload, giveawaymodels.Result](db, "giveaways", "giveaway_entries")
	pollStore := lifecyclepg.NewStore[pollmodels.Payload, pollmodels.Result](db, "polls", "poll_votes")
	livePollStore := lifecyclepg.NewStore[pollmodels.Payload, pollmodels.Result](db, "live_polls", "live_poll_votes")

	for _, ensure := range []func(context.Context) error{
		giveawayStore.EnsureSchema, pollStore.EnsureSchema, livePollStore.EnsureSchema,
	} {
		if err := ensure(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	}

	session, err := discordgo.New("Bot " + cfg.Discord.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	publisher := discordplatform.NewPublisher(session, cfg.Discord.APITimeout)

	giveaways := giveawayservice.NewService(giveawayStore, publisher, snapshots, cfg)
	polls := pollservice.NewService(pollStore, livePollStore, publisher, snapshots, cfg)

	b := bot.New(session, giveaways, polls, cfg.Discord.GuildID)

	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to open Discord gateway connection")
	}
	defer session.Close()

	if err := b.RegisterCommands(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register slash commands")
	}

	// Startup catch-up: entities that expired during downtime are finalized
	// here, silently unless configured otherwise.
	if err := giveaways.LoadActive(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load active giveaways")
	}
	if err := polls.LoadActive(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load active polls")
	}

	giveawayReconciler := lifecycleservice.NewReconciler(giveaways.Manager(), cfg.Lifecycle.GiveawayTickInterval)
	giveawayReconciler.Start()
	defer giveawayReconciler.Stop()

	scheduled, live := polls.Managers()
	pollReconciler := lifecycleservice.NewReconciler(scheduled, cfg.Lifecycle.PollTickInterval)
	pollReconciler.Start()
	defer pollReconciler.Stop()
	// Live polls never auto-expire; their reconciler only handles cache
	// retention.
	livePollReconciler := lifecycleservice.NewReconciler(live, cfg.Lifecycle.PollTickInterval)
	livePollReconciler.Start()
	defer livePollReconciler.Stop()

	server := newProbeServer(cfg, postgresClient, redisClient)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting probe server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Probe server failed")
		}
	}()

	logger.Info().Msg("Bot is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Probe server forced to shutdown")
	}
}

func newProbeServer(cfg *config.Config, postgresClient *postgres.Client, redisClient *redis.Client) *http.Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "community-bot",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now().UTC()})
	})

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
