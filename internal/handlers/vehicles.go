package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/projection"
	"github.com/zoobzio/clockz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleSummary is a vehicle as listed to its owner.
type VehicleSummary struct {
	models.Vehicle
	TotalCost decimal.Decimal    `json:"total_cost"`
	Alerts    []projection.Alert `json:"alerts"`
}

// VehicleHandler serves the vehicle endpoints.
type VehicleHandler struct {
	store Collections
	clock clockz.Clock
}

func NewVehicleHandler(store Collections, clock clockz.Clock) *VehicleHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &VehicleHandler{store: store, clock: clock}
}

func validateVehicle(req *models.VehicleRequest) string {
	req.Make = strings.TrimSpace(req.Make)
	req.Model = strings.TrimSpace(req.Model)
	req.LicensePlate = models.NormalizePlate(req.LicensePlate)
	switch {
	case req.Make == "" || req.Model == "":
		return "Make and model are required"
	case req.LicensePlate == "":
		return "License plate is required"
	case req.Year < 1886:
		return "Invalid year"
	case req.CurrentKm < 0:
		return "Current km cannot be negative"
	}
	return ""
}

// List returns the caller's vehicles with their total maintenance cost and due alerts.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	vehicles, err := h.store.Vehicles.FindVehiclesByOwner(ctx, claims.UserID)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}
	types, err := h.store.Types.FindTypesByUser(ctx, claims.UserID)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	ids := make([]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID.Hex()
	}
	logs, err := h.store.Logs.FindLogsByVehicles(ctx, ids)
	if err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}
	byVehicle := make(map[string][]models.MaintenanceLog, len(vehicles))
	for _, l := range logs {
		byVehicle[l.VehicleID] = append(byVehicle[l.VehicleID], l)
	}

	now := h.clock.Now()
	summaries := make([]VehicleSummary, 0, len(vehicles))
	for _, v := range vehicles {
		history := byVehicle[v.ID.Hex()]
		total := decimal.Zero
		for _, l := range history {
			total = total.Add(decimal.NewFromFloat(l.TotalCost()))
		}
		alerts := projection.DueAlerts(v, history, types, now)
		if alerts == nil {
			alerts = []projection.Alert{}
		}
		summaries = append(summaries, VehicleSummary{Vehicle: v, TotalCost: total.Round(2), Alerts: alerts})
	}

	writeJSON(w, http.StatusOK, summaries)
}

// Create registers a vehicle for the caller.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.VehicleRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if msg := validateVehicle(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	vehicle := models.Vehicle{
		ID:           primitive.NewObjectID(),
		OwnerID:      claims.UserID,
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		CurrentKm:    req.CurrentKm,
		LicensePlate: req.LicensePlate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.Vehicles.InsertVehicle(r.Context(), vehicle); err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	writeJSON(w, http.StatusCreated, vehicle)
}

// Update replaces the editable fields of an owned vehicle.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var req models.VehicleRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if msg := validateVehicle(&req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	vehicle, ok := ownedVehicle(w, r, h.store.Vehicles, id, claims.UserID)
	if !ok {
		return
	}
	vehicle.Make = req.Make
	vehicle.Model = req.Model
	vehicle.Year = req.Year
	vehicle.CurrentKm = req.CurrentKm
	vehicle.LicensePlate = req.LicensePlate
	vehicle.UpdatedAt = h.clock.Now()

	if err := h.store.Vehicles.UpdateVehicle(r.Context(), id, *vehicle); err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	writeJSON(w, http.StatusOK, vehicle)
}

// Delete removes an owned vehicle together with its maintenance history.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, ok := ownedVehicle(w, r, h.store.Vehicles, id, claims.UserID); !ok {
		return
	}
	if _, err := h.store.Logs.DeleteLogsByVehicle(r.Context(), id); err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}
	if err := h.store.Vehicles.DeleteVehicle(r.Context(), id); err != nil {
		storageError(w, r, err, "Vehicle not found")
		return
	}

	writeMessage(w, http.StatusOK, "Vehicle deleted")
}
