package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/api"
	"github.com/shubhsaxena/product-search/internal/app"
	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/firestore"
	"github.com/shubhsaxena/product-search/internal/kafka"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting product search service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing backends", zap.Error(err))
		}
	}()

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.RegisterES(a.ES)
	if a.Cache != nil {
		healthHandler.RegisterOptional("redis", a.Cache)
	}
	if a.ClickHouse != nil {
		healthHandler.RegisterOptional("clickhouse", a.ClickHouse)
	}

	// Change events reach the indexer through kafka when brokers are set,
	// otherwise straight from the firestore listener.
	changeSink := a.Indexer.HandleEvent

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka, a.Indexer.HandleEvent, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("kafka consumer start failed, indexing pipeline will be unavailable", zap.Error(err))
		} else {
			defer consumer.Stop()
			healthHandler.RegisterOptional("kafka", consumer)
			logger.Info("kafka consumer started", zap.String("topic", cfg.Kafka.TopicChanges))
		}

		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		changeSink = producer.PublishChangeEvent
	}

	if cfg.Firestore.ProjectID != "" {
		fsClient, err := firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, change listener disabled", zap.Error(err))
		} else {
			defer fsClient.Close()
			healthHandler.RegisterOptional("firestore", fsClient)
			go listenForChanges(ctx, fsClient, changeSink, logger)
		}
	}

	var historyReader api.HistoryReader
	if a.ClickHouse != nil {
		historyReader = a.ClickHouse
	}
	handler := api.NewHandler(a.Service, historyReader, logger)
	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func listenForChanges(ctx context.Context, fs *firestore.Client, sink func(context.Context, *models.ChangeEvent) error, logger *zap.Logger) {
	logger.Info("firestore change listener started")
	if err := fs.NewChangeListener(sink).Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("firestore change listener stopped", zap.Error(err))
	}
}
