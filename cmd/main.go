package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ghandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/metrics"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const shutdownTimeout = 15 * time.Second

// configureLogger applies the level and format from cfg to the standard logger.
func configureLogger(cfg config.LogConfig) *log.Logger {
	logger := log.StandardLogger()
	if cfg.Format == "text" {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// withServerMiddleware adds CORS and panic recovery around the API.
func withServerMiddleware(h http.Handler, cfg config.ServerConfig, logger *log.Logger) http.Handler {
	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(cfg.CORSOrigins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
		ghandlers.ExposedHeaders([]string{"Content-Disposition", "X-Request-ID"}),
	)
	recovery := ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(logger),
		ghandlers.PrintRecoveryStack(logger.IsLevelEnabled(log.DebugLevel)),
	)
	return recovery(cors(h))
}

func newServer(cfg config.ServerConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func main() {
	cfg := config.Load()
	logger := configureLogger(cfg.Log)

	client, err := db.ConnectMongo(cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	logger.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	database := client.Database(cfg.Mongo.Database)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		cancel()
		logger.WithError(err).Fatal("Failed to create indexes")
	}
	cancel()
	store := db.NewStore(database)

	publisher, err := notify.New(cfg.Notify, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up notifications")
	}
	defer publisher.Close()
	logger.WithField("sink", cfg.Notify.Sink).Info("Notifications ready")

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth: auth.NewService(cfg.JWT, clockz.RealClock),
		Store: handlers.Collections{
			Users:    store.Users,
			Vehicles: store.Vehicles,
			Types:    store.Types,
			Logs:     store.Logs,
		},
		Publisher: publisher,
		Clock:     clockz.RealClock,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
		Health: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		Metrics: metrics.New(prometheus.DefaultRegisterer),
	})

	srv := newServer(cfg.Server, withServerMiddleware(router, cfg.Server, logger))

	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-stop.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
