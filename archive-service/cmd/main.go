package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/weiawesome/artisans-live/archive-service/internal/cassandra"
	"github.com/weiawesome/artisans-live/archive-service/internal/config"
	"github.com/weiawesome/artisans-live/archive-service/internal/consumer"
	"github.com/weiawesome/artisans-live/archive-service/internal/handler"
	pkglog "github.com/weiawesome/artisans-live/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "archive-service",
	})
	logger := pkglog.L()

	// Initialize Cassandra client
	cassandraClient, err := cassandra.NewClient(cfg.Cassandra)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to cassandra")
	}
	defer cassandraClient.Close()
	logger.Info().Str("keyspace", cfg.Cassandra.Keyspace).Strs("hosts", cfg.Cassandra.Hosts).Msg("connected to cassandra")

	repo := cassandra.NewEventRepository(cassandraClient)
	if cfg.Cassandra.CreateSchema {
		schemaCtx, schemaCancel := context.WithTimeout(context.Background(), cfg.Cassandra.ConnectTimeout)
		if err := repo.EnsureSchema(schemaCtx); err != nil {
			schemaCancel()
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		schemaCancel()
	}

	// Initialize Kafka consumer
	cons, err := consumer.NewConsumer(cfg.Kafka, repo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	logger.Info().
		Str("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Msg("kafka consumer created")

	// Health and read API
	router := mux.NewRouter()
	router.Use(pkglog.HTTPMiddleware(logger))
	handler.NewHTTPHandler(repo).RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Start consumer in background
	ctx, cancel := context.WithCancel(context.Background())

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	// Wait for interrupt signal or fatal consumer error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("received shutdown signal")
	case err := <-consumerDone:
		if err != nil {
			logger.Error().Err(err).Msg("consumer exited with error")
		}
	}

	// Graceful shutdown
	logger.Info().Msg("shutting down archive service")
	cancel()

	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer shutdown timed out")
	}

	cons.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info().Msg("archive service stopped")
}
