package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/export"
	"github.com/ukydev/fleet-maintenance/internal/ingest"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/ukydev/fleet-maintenance/internal/projection"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const publishTimeout = 5 * time.Second

// RegisteredResponse is returned after a maintenance is logged.
type RegisteredResponse struct {
	Message   string                `json:"msg"`
	NextDueKm int                   `json:"next_due_km"`
	Log       models.MaintenanceLog `json:"log"`
}

// MaintenanceLogHandler serves vehicle maintenance history.
type MaintenanceLogHandler struct {
	store     Collections
	publisher notify.Publisher
	clock     clockz.Clock
}

func NewMaintenanceLogHandler(store Collections, publisher notify.Publisher, clock clockz.Clock) *MaintenanceLogHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &MaintenanceLogHandler{store: store, publisher: publisher, clock: clock}
}

// apply validates req and copies the present fields onto l.
func (h *MaintenanceLogHandler) apply(w http.ResponseWriter, r *http.Request, req models.MaintenanceLogRequest, l *models.MaintenanceLog, userID string) (*models.MaintenanceType, bool) {
	var t *models.MaintenanceType
	if req.MaintenanceTypeID != nil {
		found, err := h.store.Types.FindTypeByID(r.Context(), *req.MaintenanceTypeID)
		if err != nil || found.UserID != userID {
			if err != nil && !isNotFound(err) {
				storageError(w, r, err, "Maintenance type not found")
				return nil, false
			}
			http.Error(w, "Maintenance type not found", http.StatusBadRequest)
			return nil, false
		}
		t = found
		l.MaintenanceTypeID = found.ID
		l.MaintenanceType = found.Name
	}
	if req.Category != nil {
		c := models.Category(strings.ToLower(strings.TrimSpace(string(*req.Category))))
		if !models.IsValidCategory(c) {
			http.Error(w, "Invalid category", http.StatusBadRequest)
			return nil, false
		}
		l.Category = c
	}
	if req.KmPerformed != nil {
		if *req.KmPerformed < 0 {
			http.Error(w, "Km cannot be negative", http.StatusBadRequest)
			return nil, false
		}
		l.KmPerformed = *req.KmPerformed
	}
	if req.DatePerformed != nil {
		d, ok := ingest.ParseDate(strings.TrimSpace(*req.DatePerformed))
		if !ok {
			http.Error(w, "Invalid date", http.StatusBadRequest)
			return nil, false
		}
		l.DatePerformed = d
	}
	for _, cost := range []*float64{req.ServiceCost, req.ProductCost} {
		if cost != nil && (*cost < 0 || math.IsNaN(*cost) || math.IsInf(*cost, 0)) {
			http.Error(w, "Costs must be non-negative numbers", http.StatusBadRequest)
			return nil, false
		}
	}
	if req.ServiceCost != nil {
		l.ServiceCost = *req.ServiceCost
	}
	if req.ProductCost != nil {
		l.ProductCost = *req.ProductCost
	}
	if req.Notes != nil {
		l.Notes = *req.Notes
	}
	return t, true
}

// Create registers a maintenance for an owned vehicle.
func (h *MaintenanceLogHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	vehicleID := mux.Vars(r)["id"]

	var req models.MaintenanceLogRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.MaintenanceTypeID == nil || req.KmPerformed == nil || req.DatePerformed == nil {
		http.Error(w, "maintenance_type_id, km_performed and date_performed are required", http.StatusBadRequest)
		return
	}

	vehicle, ok := ownedVehicle(w, r, h.store.Vehicles, vehicleID, claims.UserID)
	if !ok {
		return
	}

	now := h.clock.Now()
	entry := models.MaintenanceLog{
		ID:        primitive.NewObjectID(),
		VehicleID: vehicleID,
		Category:  models.CategoryPreventive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t, ok := h.apply(w, r, req, &entry, claims.UserID)
	if !ok {
		return
	}

	if err := h.store.Logs.InsertLog(r.Context(), entry); err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	logger := middleware.LoggerFromContext(r.Context()).WithField("vehicle_id", vehicleID)
	if entry.KmPerformed > vehicle.CurrentKm {
		if err := h.store.Vehicles.BumpCurrentKm(r.Context(), vehicleID, entry.KmPerformed); err != nil {
			logger.WithError(err).Error("Failed to update vehicle km")
		}
	}

	nextKm := projection.NextDueDistance(*t, entry.KmPerformed)
	msg := notify.RegisteredMessage(t.Name, vehicle.Model, nextKm)
	h.publish(r.Context(), claims, entry, *t, nextKm, msg)

	logger.WithFields(log.Fields{
		"maintenance_type": t.Name,
		"next_due_km":      nextKm,
	}).Info("Maintenance registered")

	writeJSON(w, http.StatusCreated, RegisteredResponse{Message: msg, NextDueKm: nextKm, Log: entry})
}

func (h *MaintenanceLogHandler) publish(ctx context.Context, claims *models.Claims, entry models.MaintenanceLog, t models.MaintenanceType, nextKm int, msg string) {
	if h.publisher == nil {
		return
	}
	months := t.DefaultIntervalMonths
	if months <= 0 {
		months = projection.DefaultIntervalMonths
	}
	nextDate := projection.AddMonths(entry.DatePerformed, months)

	event := notify.NewEvent(notify.KindMaintenanceRegistered, h.clock.Now())
	event.UserID = claims.UserID
	event.Email = claims.Email
	event.VehicleID = entry.VehicleID
	event.MaintenanceType = t.Name
	event.NextDueKm = nextKm
	event.NextDueDate = &nextDate
	event.Message = msg

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, event); err != nil {
		middleware.LoggerFromContext(ctx).WithError(err).WithField("event_id", event.ID).Warn("Failed to publish notification")
	}
}

// History returns an owned vehicle's logs, most recent first.
func (h *MaintenanceLogHandler) History(w http.ResponseWriter, r *http.Request) {
	logs, _, ok := h.vehicleLogs(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// HistoryCSV streams an owned vehicle's logs as a CSV download.
func (h *MaintenanceLogHandler) HistoryCSV(w http.ResponseWriter, r *http.Request) {
	logs, vehicle, ok := h.vehicleLogs(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(vehicle.LicensePlate)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, logs); err != nil {
		middleware.LoggerFromContext(r.Context()).WithError(err).Error("Failed to write CSV export")
	}
}

func (h *MaintenanceLogHandler) vehicleLogs(w http.ResponseWriter, r *http.Request) ([]models.MaintenanceLog, *models.Vehicle, bool) {
	claims, ok := currentUser(w, r)
	if !ok {
		return nil, nil, false
	}
	vehicleID := mux.Vars(r)["id"]

	vehicle, ok := ownedVehicle(w, r, h.store.Vehicles, vehicleID, claims.UserID)
	if !ok {
		return nil, nil, false
	}
	logs, err := h.store.Logs.FindLogsByVehicle(r.Context(), vehicleID)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return nil, nil, false
	}
	if logs == nil {
		logs = []models.MaintenanceLog{}
	}
	return logs, vehicle, true
}

// ownedLog loads a log and the vehicle it belongs to, checking the caller owns it.
func (h *MaintenanceLogHandler) ownedLog(w http.ResponseWriter, r *http.Request, id, userID string) (*models.MaintenanceLog, *models.Vehicle, bool) {
	entry, err := h.store.Logs.FindLogByID(r.Context(), id)
	if err != nil {
		storageError(w, r, err, "Maintenance log not found")
		return nil, nil, false
	}
	vehicle, err := h.store.Vehicles.FindVehicleByID(r.Context(), entry.VehicleID)
	if err != nil || vehicle.OwnerID != userID {
		if err != nil && !isNotFound(err) {
			storageError(w, r, err, "Maintenance log not found")
			return nil, nil, false
		}
		http.Error(w, "Maintenance log not found", http.StatusNotFound)
		return nil, nil, false
	}
	return entry, vehicle, true
}

// Update applies the fields present in the body and raises the vehicle km when needed.
func (h *MaintenanceLogHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var req models.MaintenanceLogRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	entry, vehicle, ok := h.ownedLog(w, r, id, claims.UserID)
	if !ok {
		return
	}
	if _, ok := h.apply(w, r, req, entry, claims.UserID); !ok {
		return
	}
	entry.UpdatedAt = h.clock.Now()

	if err := h.store.Logs.UpdateLog(r.Context(), id, *entry); err != nil {
		storageError(w, r, err, "Maintenance log not found")
		return
	}
	if entry.KmPerformed > vehicle.CurrentKm {
		if err := h.store.Vehicles.BumpCurrentKm(r.Context(), entry.VehicleID, entry.KmPerformed); err != nil {
			middleware.LoggerFromContext(r.Context()).WithError(err).Error("Failed to update vehicle km")
		}
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *MaintenanceLogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, _, ok := h.ownedLog(w, r, id, claims.UserID); !ok {
		return
	}
	if err := h.store.Logs.DeleteLog(r.Context(), id); err != nil {
		storageError(w, r, err, "Maintenance log not found")
		return
	}

	writeMessage(w, http.StatusOK, "Maintenance log deleted")
}
