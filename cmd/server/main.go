package main // Entry point package

import (
	"context"
	"errors"
	"log" // used before the structured logger exists
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                     // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // panic recovery
	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/config"
	"github.com/cleverdevil/dwell/internal/database"
	"github.com/cleverdevil/dwell/internal/handler"
	"github.com/cleverdevil/dwell/internal/index"
	"github.com/cleverdevil/dwell/internal/logging"
	"github.com/cleverdevil/dwell/internal/middleware"
	"github.com/cleverdevil/dwell/internal/queue"
	"github.com/cleverdevil/dwell/internal/repository"
	"github.com/cleverdevil/dwell/internal/router"
	"github.com/cleverdevil/dwell/internal/service"
	"github.com/cleverdevil/dwell/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.Load() // Load environment config

	logger, err := logging.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	provider, err := telemetry.Init(cfg.MetricsEnabled, version)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Authorization codes
	dsn := cfg.AuthDBDSN
	if cfg.AuthDBDriver == "sqlite3" {
		dsn = database.SQLiteDSN(dsn)
	}
	db, err := database.Open(cfg.AuthDBDriver, dsn)
	if err != nil {
		logger.Fatal("auth database unavailable", zap.String("driver", cfg.AuthDBDriver), zap.Error(err))
	}
	defer db.Close()
	codes := repository.NewCodeRepo(db)
	if err := codes.EnsureSchema(ctx); err != nil {
		logger.Fatal("auth schema", zap.Error(err))
	}

	site, err := config.LoadSite(cfg.SiteFile)
	if err != nil {
		logger.Fatal("site file", zap.Error(err))
	}

	// Content, media and the index built from them
	posts := repository.NewContentStore(cfg.ContentDir)
	media := repository.NewMediaStore(cfg.MediaDir)
	idx, err := index.New(index.Options{
		Dir:    cfg.IndexDir,
		Source: posts,
		Logger: logging.WithComponent("index"),
	})
	if err != nil {
		logger.Fatal("index init", zap.Error(err))
	}
	idx.Start(ctx)
	if cfg.RebuildOnStart {
		idx.Rebuild()
	}

	// Redis backs rate limiting and the read cache; both pass through without it.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, idx.Version)

	// Broker
	var events service.Publisher = service.NopPublisher{}
	if cfg.AMQPURL != "" {
		events = service.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue, logging.WithComponent("events"))
		go func() {
			trigger := func(reason string) {
				logger.Info("reindex requested", zap.String("reason", reason))
				idx.Rebuild()
			}
			err := queue.StartReindexConsumer(ctx, cfg.AMQPURL, cfg.ReindexQueue, trigger, logging.WithComponent("reindex"))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reindex consumer stopped", zap.Error(err))
			}
		}()
	}

	auth := service.NewAuthService(codes, site, cfg.JWTSecret, cfg.CodeTTL, logging.WithComponent("indieauth"))
	auth.StartSweeper(ctx, cfg.CodeSweepInterval)

	micropub := service.NewMicropubService(posts, idx, events, site.Author, logging.WithComponent("micropub"))
	micropub.Syndication = site.Syndication

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.Tracing())
	e.Use(middleware.RequestLogger(logger))

	router.RegisterRoutes(e, idx.Generation, provider.Handler)
	router.RegisterIndieAuth(e, handler.NewIndieAuthHandler(auth), limiter)
	router.RegisterMicropub(e, handler.NewMicropubHandler(micropub, media), auth)
	router.RegisterAdmin(e, handler.NewAdminHandler(idx), auth)
	router.RegisterPublic(e, handler.NewPostHandler(idx), handler.NewMediaHandler(media), cache)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("version", version))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := idx.Close(); err != nil {
		logger.Warn("index close", zap.Error(err))
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
}
