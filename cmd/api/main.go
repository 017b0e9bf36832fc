package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/caremesh/sentinel/internal/access"
	accessmw "github.com/caremesh/sentinel/internal/access/middleware"
	arepo "github.com/caremesh/sentinel/internal/audit/repository"
	asvc "github.com/caremesh/sentinel/internal/audit/service"
	"github.com/caremesh/sentinel/internal/broadcast"
	"github.com/caremesh/sentinel/internal/config"
	dirrepo "github.com/caremesh/sentinel/internal/directory/repository"
	"github.com/caremesh/sentinel/internal/logger"
	"github.com/caremesh/sentinel/internal/platform/ratelimit"
	"github.com/caremesh/sentinel/internal/platform/validation"
	"github.com/caremesh/sentinel/internal/platform/window"
	"github.com/caremesh/sentinel/internal/threat"
	trepo "github.com/caremesh/sentinel/internal/threat/repository"
	tsvc "github.com/caremesh/sentinel/internal/threat/service"
	"github.com/caremesh/sentinel/internal/transport"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.AppEnv)
	log.Info().Str("addr", cfg.AppAddr).Msg("starting api server")

	// Init Postgres
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DATABASE_URL")
	}
	pgPool, err := pgxpool.NewWithConfig(context.Background(), pgCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create pg pool")
	}
	defer pgPool.Close()

	// Init Redis/Valkey
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middlewares
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Validator
	e.Validator = validation.New()

	// Shared infrastructure
	auditRec := asvc.New(arepo.New(pgPool), cfg.AuditWriteTimeout)
	auditRec.SetLogger(log)
	defer auditRec.Wait()

	hub := transport.NewHub()
	directoryRepo := dirrepo.New(pgPool)

	// Register domain routes via factories
	accessReg := access.NewRegistrar(auditRec, log)
	broadcastReg := broadcast.NewRegistrar(hub, auditRec, log)
	threatReg := threat.NewRegistrar(tsvc.Config{
		LockoutThreshold:    cfg.LockoutThreshold,
		LockoutDuration:     cfg.LockoutDuration,
		BruteForceThreshold: cfg.BruteForceThreshold,
		BruteForceWindow:    cfg.BruteForceWindow,
		KnownIPHorizon:      cfg.KnownIPHorizon,
		UsualHoursHorizon:   cfg.UsualHoursHorizon,
		UsualHoursMinLogins: cfg.UsualHoursMinLogins,
	}, trepo.New(pgPool), directoryRepo, window.NewRedisStore(redisClient), broadcastReg.Dispatcher(), auditRec, log)
	threatReg.SetLimiter(ratelimit.MiddlewareWithStore(ratelimit.Policy{
		Name:   "auth:attempts",
		Window: time.Minute,
		Limit:  120,
		Key:    ratelimit.KeyIP("attempts"),
	}, ratelimit.NewRedisStore(redisClient)))

	v1 := e.Group("/v1", accessmw.NewJWT(cfg))
	accessReg.RegisterV1(v1)
	broadcastReg.RegisterV1(v1)
	threatReg.RegisterV1(v1)
	broadcastReg.RegisterStream(e)

	// Health endpoint pings DB and Redis
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()

		dbStatus := "ok"
		if err := pgPool.Ping(ctx); err != nil {
			dbStatus = "down"
		}

		cacheStatus := "ok"
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			cacheStatus = "down"
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
			"db":     dbStatus,
			"cache":  cacheStatus,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	go func() {
		if err := e.Start(cfg.AppAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
