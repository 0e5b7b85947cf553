package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/hockeysync/internal/api/rest"
	"github.com/fortuna/hockeysync/internal/api/websocket"
	"github.com/fortuna/hockeysync/internal/app"
	"github.com/fortuna/hockeysync/internal/cache"
	"github.com/fortuna/hockeysync/internal/config"
	"github.com/fortuna/hockeysync/internal/logging"
	"github.com/fortuna/hockeysync/internal/publisher"
	"github.com/fortuna/hockeysync/internal/scheduler"
	"github.com/fortuna/hockeysync/internal/service"
	"github.com/fortuna/hockeysync/internal/store"
	"github.com/fortuna/hockeysync/internal/store/repository"
)

const (
	serviceName    = "hockeysync"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", getEnv("HOCKEYSYNC_CONFIG", ""), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("hockeysync exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("starting", "service", serviceName, "version", serviceVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	db, err := store.NewDatabase(ctx, cfg.Database.DSN, store.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, logger)
	if err != nil {
		return errors.Wrap(err, "connect database")
	}
	defer db.Close()
	logger.Info("connected to database")

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	logger.Info("database migrations applied")

	redisCache, err := connectRedis(ctx, cfg.Redis.URL, logger)
	if err != nil {
		return err
	}
	defer redisCache.Close()
	logger.Info("connected to redis")

	sources, err := app.NewSources(cfg, logger)
	if err != nil {
		return err
	}

	competitionRepo := repository.NewCompetitionRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	officialRepo := repository.NewOfficialRepository(db)

	var (
		sched     *scheduler.Orchestrator
		schedDone = make(chan struct{})
	)
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewOrchestrator(scheduler.Deps{
			TMSCompetitions: sources.TMSCompetitions,
			TMSMatches:      sources.TMSMatches,
			KNHBMatches:     sources.KNHB,
			Competitions:    competitionRepo,
			Matches:         matchRepo,
			Officials:       officialRepo,
			Cursors:         redisCache,
			Publisher:       publisher.NewRedisStreamPublisher(redisCache.Client(), cfg.Redis.StreamMaxLen),
			Reconciliation:  sources.Engine,
			Logger:          logger,
		}, &scheduler.Config{
			DiscoveryInterval: cfg.Scheduler.DiscoveryInterval,
			MatchInterval:     cfg.Scheduler.MatchInterval,
			Workers:           cfg.Scheduler.Workers,
			TMSModes:          app.Modes(cfg.TMS.Modes),
			KNHBModes:         app.Modes(cfg.Scheduler.KNHBModes),
			KNHBCompetitions:  app.KNHBCompetitions(cfg),
		})
		if err != nil {
			return errors.Wrap(err, "create scheduler")
		}
		go func() {
			defer close(schedDone)
			sched.Start(ctx)
		}()
		logger.Info("scheduler started")
	} else {
		close(schedDone)
	}

	handler := rest.NewHandler(
		service.NewCompetitionService(competitionRepo, redisCache, cfg.Redis.CacheTTL, logger),
		service.NewMatchService(competitionRepo, matchRepo, officialRepo, redisCache, cfg.Redis.CacheTTL, logger),
		service.NewOfficialService(competitionRepo, officialRepo, redisCache, logger),
		map[string]rest.HealthChecker{"postgres": db, "redis": redisCache},
		statusOf(sched),
	)
	restServer := rest.NewServer(cfg.REST.Port, handler, logger)

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("REST API listening", "port", cfg.REST.Port)
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var wsServer *websocket.Server
	if cfg.WebSocket.Enabled {
		wsServer = websocket.NewServer(cfg.WebSocket.Port, redisCache.Client(), logger)
		go func() {
			logger.Info("WebSocket server listening", "port", cfg.WebSocket.Port)
			if err := wsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- errors.Wrap(err, "websocket server")
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
	}

	// Graceful shutdown
	cancel()
	if sched != nil {
		sched.Stop()
	}
	// Database and Redis stay open until in-flight syncs finish.
	<-schedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("REST API server shutdown error", "error", err)
	}
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("WebSocket server shutdown error", "error", err)
		}
	}

	logger.Info("hockeysync stopped")
	return nil
}

// connectRedis retries until Redis accepts connections, which it may not yet
// do when started alongside the service.
func connectRedis(ctx context.Context, url string, logger *logging.Logger) (*cache.RedisCache, error) {
	maxRetries := 30
	retryDelay := 2 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		redisCache, err := cache.NewRedisCache(ctx, url)
		if err == nil {
			return redisCache, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			logger.Warn("redis connection failed", "attempt", i+1, "max_attempts", maxRetries, "error", err, "retry_in", retryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return nil, errors.Wrapf(lastErr, "connect to redis after %d attempts", maxRetries)
}

// statusOf avoids handing the REST handler a typed nil scheduler.
func statusOf(sched *scheduler.Orchestrator) rest.StatusProvider {
	if sched == nil {
		return nil
	}
	return sched
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
