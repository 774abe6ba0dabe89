package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/projection"
	"github.com/zoobzio/clockz"
)

// ProjectionHandler serves the spending projection and statistics.
type ProjectionHandler struct {
	store Collections
	clock clockz.Clock
}

func NewProjectionHandler(store Collections, clock clockz.Clock) *ProjectionHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &ProjectionHandler{store: store, clock: clock}
}

// now returns the clock time, or the RFC3339 ?now= override.
func (h *ProjectionHandler) now(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("now")
	if raw == "" {
		return h.clock.Now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, "Invalid now parameter, expected RFC3339", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

// Projection returns the maintenance projection for an owned vehicle.
func (h *ProjectionHandler) Projection(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	vehicleID := mux.Vars(r)["id"]

	now, ok := h.now(w, r)
	if !ok {
		return
	}
	if _, ok := ownedVehicle(w, r, h.store.Vehicles, vehicleID, claims.UserID); !ok {
		return
	}

	logs, err := h.store.Logs.FindLogsByVehicle(r.Context(), vehicleID)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}
	types, err := h.store.Types.FindTypesByUser(r.Context(), claims.UserID)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	result := projection.Compute(logs, types, now)
	if !result.Diagnostics.Clean() {
		middleware.LoggerFromContext(r.Context()).WithFields(log.Fields{
			"vehicle_id":         vehicleID,
			"skipped_dates":      result.Diagnostics.SkippedDates,
			"unknown_categories": result.Diagnostics.UnknownCategories,
			"sanitized_costs":    result.Diagnostics.SanitizedCosts,
		}).Warn("Projection input needed cleanup")
	}

	writeJSON(w, http.StatusOK, result)
}

// Stats returns monthly spending across every vehicle of the caller.
func (h *ProjectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	now, ok := h.now(w, r)
	if !ok {
		return
	}

	vehicles, err := h.store.Vehicles.FindVehiclesByOwner(r.Context(), claims.UserID)
	if err != nil {
		storageError(w, r, err, "User not found")
		return
	}
	ids := make([]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID.Hex()
	}
	logs, err := h.store.Logs.FindLogsByVehicles(r.Context(), ids)
	if err != nil {
		storageError(w, r, err, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, projection.MonthlySpending(logs, now))
}
