package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	// ErrNotFound is returned when no document matches an id or key.
	ErrNotFound = errors.New("not found")
	// ErrNilCollection is returned by wrappers built without a collection.
	ErrNilCollection = errors.New("mongo collection is nil")
	// ErrInvalidID is returned for ids that are not valid ObjectID hex strings.
	ErrInvalidID = errors.New("invalid id")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)

// UserCollection defines the interface for user database operations
type UserCollection interface {
	InsertUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, user models.User) error
	DeleteUser(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehiclesByOwner(ctx context.Context, ownerID string) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error
	// BumpCurrentKm raises the vehicle's current km to km; lower values are ignored.
	BumpCurrentKm(ctx context.Context, id string, km int) error
	DeleteVehicle(ctx context.Context, id string) error
	DeleteVehiclesByOwner(ctx context.Context, ownerID string) (int64, error)
}

// MaintenanceTypeCollection defines the interface for the per-user type catalog.
type MaintenanceTypeCollection interface {
	InsertType(ctx context.Context, t models.MaintenanceType) error
	InsertTypes(ctx context.Context, types []models.MaintenanceType) error
	FindTypesByUser(ctx context.Context, userID string) ([]models.MaintenanceType, error)
	FindTypeByID(ctx context.Context, id string) (*models.MaintenanceType, error)
	FindTypeByName(ctx context.Context, userID, name string) (*models.MaintenanceType, error)
	UpdateType(ctx context.Context, id string, t models.MaintenanceType) error
	DeleteType(ctx context.Context, id string) error
	DeleteTypesByUser(ctx context.Context, userID string) (int64, error)
}

// MaintenanceLogCollection defines the interface for maintenance history operations.
type MaintenanceLogCollection interface {
	InsertLog(ctx context.Context, log models.MaintenanceLog) error
	FindLogByID(ctx context.Context, id string) (*models.MaintenanceLog, error)
	// FindLogsByVehicle returns the vehicle's logs, most recent first.
	FindLogsByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error)
	FindLogsByVehicles(ctx context.Context, vehicleIDs []string) ([]models.MaintenanceLog, error)
	CountLogsByType(ctx context.Context, typeID string) (int64, error)
	UpdateLog(ctx context.Context, id string, log models.MaintenanceLog) error
	DeleteLog(ctx context.Context, id string) error
	DeleteLogsByVehicle(ctx context.Context, vehicleID string) (int64, error)
}

var (
	_ UserCollection            = (*MongoUserCollection)(nil)
	_ VehicleCollection         = (*MongoVehicleCollection)(nil)
	_ MaintenanceTypeCollection = (*MongoMaintenanceTypeCollection)(nil)
	_ MaintenanceLogCollection  = (*MongoMaintenanceLogCollection)(nil)
)
