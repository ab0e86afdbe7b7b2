package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"

	"github.com/weiawesome/artisans-live/collab-service/internal/config"
	"github.com/weiawesome/artisans-live/collab-service/internal/events"
	"github.com/weiawesome/artisans-live/collab-service/internal/gateway"
	"github.com/weiawesome/artisans-live/collab-service/internal/handler"
	"github.com/weiawesome/artisans-live/collab-service/internal/history"
	"github.com/weiawesome/artisans-live/collab-service/internal/hub"
	"github.com/weiawesome/artisans-live/collab-service/internal/ledger"
	"github.com/weiawesome/artisans-live/collab-service/internal/presence"
	"github.com/weiawesome/artisans-live/collab-service/internal/service"
	"github.com/weiawesome/artisans-live/pkg/database"
	"github.com/weiawesome/artisans-live/pkg/idgen"
	"github.com/weiawesome/artisans-live/pkg/jwt"
	pkglog "github.com/weiawesome/artisans-live/pkg/log"
	"github.com/weiawesome/artisans-live/pkg/middleware"
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
		ServiceName: "collab-service",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	if cfg.Database.Driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.FilePath), 0o755); err != nil {
			logger.Fatal().Err(err).Msg("failed to create database directory")
		}
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, gateway.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	gw := gateway.NewGormGateway(db)

	// Message ids
	ids, err := idgen.NewSnowflake(cfg.IDGen.NodeID, cfg.IDGen.Epoch)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create id generator")
	}

	// History buffer
	var buffer history.Buffer
	switch cfg.History.Backend {
	case "redis":
		rb, err := history.NewRedisBuffer(cfg.Redis, cfg.History.Key, cfg.History.Capacity)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect history buffer to redis")
		}
		buffer = rb
	default:
		buffer = history.NewMemoryBuffer(cfg.History.Capacity)
	}
	defer buffer.Close()
	logger.Info().Str("backend", cfg.History.Backend).Int("capacity", cfg.History.Capacity).Msg("history buffer ready")

	// Presence mirror
	var pres presence.Presence = presence.Noop{}
	if cfg.Redis.Enabled {
		rp, err := presence.NewRedisPresence(cfg.Redis, cfg.Server.AdvertiseAddress)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize redis presence")
		}
		pres = rp
		logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")
	}
	defer pres.Close()

	// Domain events
	var publisher events.Publisher = events.Discard{}
	if cfg.Kafka.Enabled {
		kp, err := events.NewConfluentPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize kafka producer")
		}
		publisher = kp
		logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
	}
	defer publisher.Close()

	// Tokens are optional. Without a secret the socket trusts the auth frame
	// and the REST API is not mounted.
	var (
		tokens    *jwt.Manager
		validator service.TokenValidator
		authMW    *middleware.AuthMiddleware
	)
	if cfg.Auth.JWTSecret != "" {
		tokens, err = jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create token manager")
		}
		validator = tokens
		authMW = middleware.NewAuthMiddleware(tokens)
	} else {
		logger.Warn().Msg("auth.jwt_secret not set: socket identities are trusted and the REST API is disabled")
	}

	// Services
	wsHub := hub.NewHub(cfg.WebSocket)
	notifier := service.NewNotificationService(gw, wsHub, cfg.Notification)
	chatSvc := service.NewChatService(service.ChatDeps{
		Hub:          wsHub,
		Gateway:      gw,
		History:      buffer,
		Notifier:     notifier,
		IDs:          ids,
		Presence:     pres,
		Publisher:    publisher,
		Tokens:       validator,
		WriteTimeout: cfg.Ledger.WriteTimeout,
	})
	bidLedger := ledger.NewLedger(gw, notifier, publisher, cfg.Ledger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := chatSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start chat service")
	}
	defer chatSvc.Stop()

	// Websocket server
	router := mux.NewRouter()
	router.Use(pkglog.HTTPMiddleware(logger))
	handler.NewWSHandler(wsHub, chatSvc, cfg.WebSocket).RegisterRoutes(router)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	wsServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// REST API server
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handler.NewHandler(bidLedger, notifier, wsHub, authMW).RegisterRoutes(r)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	for name, srv := range map[string]*http.Server{"websocket": wsServer, "api": apiServer} {
		go func(name string, srv *http.Server) {
			logger.Info().Str("addr", srv.Addr).Msg(name + " server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Str("server", name).Msg("server error")
			}
		}(name, srv)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down collab-service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, srv := range []*http.Server{apiServer, wsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("addr", srv.Addr).Msg("server forced to shutdown")
		}
	}

	logger.Info().Msg("collab-service stopped")
}
