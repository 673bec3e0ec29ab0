package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/api"
	"github.com/accession-studio/engine/internal/api/handlers"
	mw "github.com/accession-studio/engine/internal/api/middleware"
	"github.com/accession-studio/engine/internal/app"
	"github.com/accession-studio/engine/internal/queue"
	"github.com/accession-studio/engine/pkg/config"
	"github.com/accession-studio/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.GoMaxProcs == 0 {
		if _, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Infof)); err != nil {
			log.Warn("failed to set GOMAXPROCS", zap.Error(err))
		}
	}

	log.Info("starting accession engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize accessioning", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close failed", zap.Error(err))
		}
	}()

	qc := queue.NewClient(a.RedisConnOpt())
	defer qc.Close()

	limiter := mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	router := api.NewRouter(api.Dependencies{
		AccessionsHandler: handlers.NewAccessionsHandler(a.Accessioning, a.Database, nil),
		BatchesHandler:    handlers.NewBatchesHandler(qc, nil, cfg.BatchMaxSize),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": a.Ping,
			"redis":    a.PingRedis,
		}),
		Registry:    a.Registry,
		RateLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
