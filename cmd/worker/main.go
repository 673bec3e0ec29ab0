package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/app"
	"github.com/accession-studio/engine/internal/queue"
	"github.com/accession-studio/engine/internal/queue/tasks"
	"github.com/accession-studio/engine/pkg/config"
	"github.com/accession-studio/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
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

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("failed to initialize accessioning", zap.Error(err))
	}
	defer a.Close()

	if err := a.PingRedis(ctx); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	srv := asynq.NewServer(a.RedisConnOpt(), asynq.Config{
		Concurrency: cfg.AsynqConcurrency,
		Queues:      map[string]int{queue.DefaultQueue: 1},
		Logger:      log.Named("asynq").Sugar(),
	})

	mux := asynq.NewServeMux()
	handler := tasks.NewAccessionBatchHandler(a.Accessioning)
	mux.HandleFunc(tasks.TypeAccessionBatch, handler.HandleAccessionBatch)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	// Allow in-flight batches to finish
	srv.Shutdown()
}
