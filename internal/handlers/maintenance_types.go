package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaintenanceTypeHandler serves the per-user maintenance type catalog.
type MaintenanceTypeHandler struct {
	store Collections
}

func NewMaintenanceTypeHandler(store Collections) *MaintenanceTypeHandler {
	return &MaintenanceTypeHandler{store: store}
}

func (h *MaintenanceTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	types, err := h.store.Types.FindTypesByUser(r.Context(), claims.UserID)
	if err != nil {
		storageError(w, r, err, "Maintenance type not found")
		return
	}
	if types == nil {
		types = []models.MaintenanceType{}
	}

	writeJSON(w, http.StatusOK, types)
}

func (h *MaintenanceTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.MaintenanceTypeRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	t := models.MaintenanceType{
		ID:     primitive.NewObjectID(),
		UserID: claims.UserID,
		Name:   name,
	}
	if msg := req.Apply(&t); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if _, err := h.store.Types.FindTypeByName(r.Context(), claims.UserID, name); err == nil {
		http.Error(w, "Maintenance type already exists", http.StatusConflict)
		return
	}
	if err := h.store.Types.InsertType(r.Context(), t); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			http.Error(w, "Maintenance type already exists", http.StatusConflict)
			return
		}
		storageError(w, r, err, "Maintenance type not found")
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// ownedType loads a type and checks it belongs to the caller.
func (h *MaintenanceTypeHandler) ownedType(w http.ResponseWriter, r *http.Request, id, userID string) (*models.MaintenanceType, bool) {
	t, err := h.store.Types.FindTypeByID(r.Context(), id)
	if err != nil {
		storageError(w, r, err, "Maintenance type not found")
		return nil, false
	}
	if t.UserID != userID {
		http.Error(w, "Maintenance type not found", http.StatusNotFound)
		return nil, false
	}
	return t, true
}

// Update applies the fields present in the body.
func (h *MaintenanceTypeHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var req models.MaintenanceTypeRequest
	if readJSON(w, r, &req) != nil {
		return
	}

	t, ok := h.ownedType(w, r, id, claims.UserID)
	if !ok {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			http.Error(w, "Name is required", http.StatusBadRequest)
			return
		}
		if name != t.Name {
			if existing, err := h.store.Types.FindTypeByName(r.Context(), claims.UserID, name); err == nil && existing.ID != t.ID {
				http.Error(w, "Maintenance type already exists", http.StatusConflict)
				return
			}
		}
		t.Name = name
	}
	if msg := req.Apply(t); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := h.store.Types.UpdateType(r.Context(), id, *t); err != nil {
		storageError(w, r, err, "Maintenance type not found")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// Delete removes a type that no maintenance log references.
func (h *MaintenanceTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	if _, ok := h.ownedType(w, r, id, claims.UserID); !ok {
		return
	}
	linked, err := h.store.Logs.CountLogsByType(r.Context(), id)
	if err != nil {
		storageError(w, r, err, "Maintenance type not found")
		return
	}
	if linked > 0 {
		http.Error(w, "Maintenance type is referenced by maintenance logs", http.StatusConflict)
		return
	}
	if err := h.store.Types.DeleteType(r.Context(), id); err != nil {
		storageError(w, r, err, "Maintenance type not found")
		return
	}

	writeMessage(w, http.StatusOK, "Maintenance type deleted")
}
