package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Oxord/SceneFlow/internal/config"
	"github.com/Oxord/SceneFlow/internal/observability"
	"github.com/Oxord/SceneFlow/internal/queue"
	"github.com/Oxord/SceneFlow/internal/report"
	"github.com/Oxord/SceneFlow/internal/server"
	"github.com/Oxord/SceneFlow/internal/storage"
	"github.com/Oxord/SceneFlow/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
	})
	metrics := observability.NewMetrics(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	objectStorage, err := storage.New(ctx, &cfg.Storage, logger, metrics)
	if err != nil {
		logger.Error(ctx, "failed to initialize object storage", err, nil)
		os.Exit(1)
	}

	queueClient, err := queue.Dial(&cfg.Queue, logger, metrics)
	if err != nil {
		logger.Error(ctx, "failed to connect to message broker", err, nil)
		os.Exit(1)
	}
	defer queueClient.Close()

	if err := queueClient.DeclareTopology(); err != nil {
		logger.Error(ctx, "failed to declare broker topology", err, nil)
		os.Exit(1)
	}

	publisher, err := queueClient.NewPublisher()
	if err != nil {
		logger.Error(ctx, "failed to open publisher channel", err, nil)
		os.Exit(1)
	}
	defer publisher.Close()

	consumer, err := queueClient.NewConsumer(cfg.Queue.ProcessedQueue, cfg.Queue.PrefetchCount)
	if err != nil {
		logger.Error(ctx, "failed to open consumer channel", err, nil)
		os.Exit(1)
	}

	store := report.NewStore()

	wkr := worker.New(
		objectStorage,
		store,
		report.NewRenderer(),
		cfg.Storage.Bucket,
		cfg.Storage.BaseURL,
		logger,
		metrics,
	)

	srv := server.New(objectStorage, store, publisher, server.Config{
		Bucket:           cfg.Storage.Bucket,
		BaseURL:          cfg.Storage.BaseURL,
		UploadExchange:   cfg.Queue.UploadExchange,
		UploadRoutingKey: cfg.Queue.UploadRoutingKey,
	}, logger, metrics)

	mux := http.NewServeMux()
	srv.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx, wkr.Handle); err != nil {
			logger.Error(ctx, "consumer stopped with error", err, nil)
			stop()
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(context.Background(), "http server shutdown failed", err, nil)
		}
	}()

	logger.Info(ctx, "service started", observability.Fields{
		"addr":            cfg.HTTP.Addr,
		"storage_adapter": cfg.Storage.Adapter,
		"consume_queue":   cfg.Queue.ProcessedQueue,
	})

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(context.Background(), "http server failed", err, nil)
		stop()
	}

	wg.Wait()
	logger.Info(context.Background(), "service stopped", nil)
}
