package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Collections bundles the storage the handlers work against.
type Collections struct {
	Users    db.UserCollection
	Vehicles db.VehicleCollection
	Types    db.MaintenanceTypeCollection
	Logs     db.MaintenanceLogCollection
}

var errBadBody = errors.New("invalid body")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// readJSON decodes the request body into v, answering 400 itself on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return errBadBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return errBadBody
	}
	return nil
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID)
}

// storageError maps a collection error to a response. notFound is the message
// used for missing documents.
func storageError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case isNotFound(err):
		http.Error(w, notFound, http.StatusNotFound)
	case errors.Is(err, db.ErrDuplicate):
		http.Error(w, "Already exists", http.StatusConflict)
	default:
		middleware.LoggerFromContext(r.Context()).WithError(err).Error("Storage operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ownedVehicle loads a vehicle and checks it belongs to the caller. Vehicles of
// other users are reported as missing.
func ownedVehicle(w http.ResponseWriter, r *http.Request, vehicles db.VehicleCollection, id, userID string) (*models.Vehicle, bool) {
	vehicle, err := vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return nil, false
	}
	if vehicle.OwnerID != userID {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return nil, false
	}
	return vehicle, true
}
