package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/metrics"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/zoobzio/clockz"
)

// RouterConfig carries the dependencies of the HTTP API.
type RouterConfig struct {
	Auth      *auth.Service
	Store     Collections
	Publisher notify.Publisher
	Clock     clockz.Clock
	RateLimit config.RateLimitConfig
	Logger    log.FieldLogger
	// Health is called by /health when set.
	Health func(context.Context) error
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *metrics.Metrics
}

// NewRouter builds the route table.
func NewRouter(cfg RouterConfig) *mux.Router {
	if cfg.Clock == nil {
		cfg.Clock = clockz.RealClock
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}

	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit = config.RateLimitConfig{Requests: 20, WindowSeconds: 60}
	}

	authMW := middleware.NewAuthMiddleware(cfg.Auth)
	limiter := middleware.NewRateLimitMiddleware(cfg.Clock)
	rateLimited := limiter.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
	allow := func(action string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(h)
	}

	publisher := cfg.Metrics.Publisher(cfg.Publisher)

	authHandler := NewAuthHandler(cfg.Auth, cfg.Store, cfg.Clock)
	vehicles := NewVehicleHandler(cfg.Store, cfg.Clock)
	types := NewMaintenanceTypeHandler(cfg.Store)
	logs := NewMaintenanceLogHandler(cfg.Store, publisher, cfg.Clock)
	projections := NewProjectionHandler(cfg.Store, cfg.Clock)

	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(cfg.Metrics.Middleware)
	r.Use(authMW.Authenticate)

	r.HandleFunc("/health", Health(cfg.Health)).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	api.Handle("/auth/register", rateLimited(http.HandlerFunc(authHandler.Register))).Methods(http.MethodPost)
	api.Handle("/auth/login", rateLimited(http.HandlerFunc(authHandler.Login))).Methods(http.MethodPost)
	api.HandleFunc("/auth/profile", authHandler.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", authHandler.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/auth/profile", authHandler.DeleteAccount).Methods(http.MethodDelete)
	api.HandleFunc("/auth/change-password", authHandler.ChangePassword).Methods(http.MethodPost)
	api.Handle("/users", authMW.RequireRole(models.RoleAdmin)(http.HandlerFunc(authHandler.ListUsers))).Methods(http.MethodGet)

	api.Handle("/maintenance-types", allow(models.ActionViewMaintenance, types.List)).Methods(http.MethodGet)
	api.Handle("/maintenance-types", allow(models.ActionManageTypes, types.Create)).Methods(http.MethodPost)
	api.Handle("/maintenance-types/{id}", allow(models.ActionManageTypes, types.Update)).Methods(http.MethodPut)
	api.Handle("/maintenance-types/{id}", allow(models.ActionManageTypes, types.Delete)).Methods(http.MethodDelete)

	api.Handle("/vehicles", allow(models.ActionViewVehicles, vehicles.List)).Methods(http.MethodGet)
	api.Handle("/vehicles", allow(models.ActionEditVehicles, vehicles.Create)).Methods(http.MethodPost)
	api.Handle("/vehicles/{id}", allow(models.ActionEditVehicles, vehicles.Update)).Methods(http.MethodPut)
	api.Handle("/vehicles/{id}", allow(models.ActionEditVehicles, vehicles.Delete)).Methods(http.MethodDelete)

	api.Handle("/vehicles/{id}/maintenance", allow(models.ActionCreateMaintenance, logs.Create)).Methods(http.MethodPost)
	api.Handle("/vehicles/{id}/history", allow(models.ActionViewMaintenance, logs.History)).Methods(http.MethodGet)
	api.Handle("/vehicles/{id}/history.csv", allow(models.ActionViewMaintenance, logs.HistoryCSV)).Methods(http.MethodGet)
	api.Handle("/vehicles/{id}/projection", allow(models.ActionViewStats, projections.Projection)).Methods(http.MethodGet)

	api.Handle("/maintenance-logs/{id}", allow(models.ActionUpdateMaintenance, logs.Update)).Methods(http.MethodPut)
	api.Handle("/maintenance-logs/{id}", allow(models.ActionUpdateMaintenance, logs.Delete)).Methods(http.MethodDelete)

	api.Handle("/stats", allow(models.ActionViewStats, projections.Stats)).Methods(http.MethodGet)

	return r
}
