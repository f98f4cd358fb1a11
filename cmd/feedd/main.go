package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shokuba/honne/internal/feed"
	"github.com/shokuba/honne/internal/identity"
	"github.com/shokuba/honne/internal/notify"
	"github.com/shokuba/honne/internal/store"
	"github.com/shokuba/honne/pkg/config"
	"github.com/shokuba/honne/pkg/logging"
	"github.com/shokuba/honne/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting honne feed daemon")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Choose the store gateway: PostgreSQL with Redis events when
	// configured, otherwise the seeded in-memory store.
	gw, cleanup, err := openGateway(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open store gateway", zap.Error(err))
	}
	defer cleanup()

	session := identity.NewSession()
	logger.Info("Guest session created", zap.String("nickname", session.CurrentNickname()))

	// Start the feed synchronizer over all categories.
	synchronizer := feed.NewSynchronizer(gw, "")
	if err := synchronizer.Start(ctx); err != nil {
		logger.Error("Initial feed load failed", zap.Error(err))
	}
	defer synchronizer.Stop()

	// Start the notification aggregator.
	aggregator := notify.NewAggregator(gw, session, cfg.Feed)
	if err := aggregator.Start(ctx); err != nil {
		logger.Error("Initial notification load failed", zap.Error(err))
	}
	defer aggregator.Stop()

	// Ops HTTP server
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": cfg.Telemetry.ServiceName,
		})
	})
	router.GET("/status", func(c *gin.Context) {
		status := gin.H{
			"posts_cached":   len(synchronizer.Posts()),
			"live":           synchronizer.Live(),
			"trending_posts": len(aggregator.Trending()),
			"badge":          aggregator.Badge(),
		}
		if err := synchronizer.Err(); err != nil {
			status["feed_error"] = err.Error()
		}
		c.JSON(http.StatusOK, status)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Ops server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ops server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Ops server forced to shutdown", zap.Error(err))
	}

	logger.Info("Feed daemon exited")
}

func openGateway(ctx context.Context, cfg *config.Config) (store.Gateway, func(), error) {
	logger := logging.GetLogger()

	if cfg.Database.URL != "" {
		gw, err := store.NewGormGateway(&cfg.Database, &cfg.Redis, cfg.Logging.Level)
		if err != nil {
			return nil, nil, err
		}
		if err := gw.Migrate(); err != nil {
			gw.Close()
			return nil, nil, err
		}
		return gw, func() {
			if err := gw.Close(); err != nil {
				logger.Warn("Failed to close gateway", zap.Error(err))
			}
		}, nil
	}

	logger.Info("No database configured, serving seeded demo data")
	mem := store.NewMemory()
	if err := store.Seed(ctx, mem); err != nil {
		return nil, nil, err
	}
	return mem, func() {}, nil
}
