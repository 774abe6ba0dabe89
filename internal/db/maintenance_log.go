package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMaintenanceLogCollection implements MaintenanceLogCollection for MongoDB.
type MongoMaintenanceLogCollection struct {
	Collection *mongo.Collection
}

// InsertLog inserts a maintenance record into the collection.
func (c *MongoMaintenanceLogCollection) InsertLog(ctx context.Context, log models.MaintenanceLog) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = log.CreatedAt
	}
	_, err := c.Collection.InsertOne(ctx, log)
	return translate(err)
}

// FindLogByID finds a maintenance record by its ID.
func (c *MongoMaintenanceLogCollection) FindLogByID(ctx context.Context, id string) (*models.MaintenanceLog, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.MaintenanceLog](ctx, c.Collection, bson.M{"_id": oid})
}

// FindLogsByVehicle returns a vehicle's history, most recent first.
func (c *MongoMaintenanceLogCollection) FindLogsByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date_performed", Value: -1}, {Key: "_id", Value: -1}})
	return findAll[models.MaintenanceLog](ctx, c.Collection, bson.M{"vehicle_id": vehicleID}, opts)
}

// FindLogsByVehicles returns the history of several vehicles, most recent first.
func (c *MongoMaintenanceLogCollection) FindLogsByVehicles(ctx context.Context, vehicleIDs []string) ([]models.MaintenanceLog, error) {
	if len(vehicleIDs) == 0 {
		return []models.MaintenanceLog{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "date_performed", Value: -1}})
	return findAll[models.MaintenanceLog](ctx, c.Collection, bson.M{"vehicle_id": bson.M{"$in": vehicleIDs}}, opts)
}

// CountLogsByType counts the records that reference a catalog entry.
func (c *MongoMaintenanceLogCollection) CountLogsByType(ctx context.Context, typeID string) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	oid, err := objectID(typeID)
	if err != nil {
		return 0, err
	}
	return c.Collection.CountDocuments(ctx, bson.M{"maintenance_type_id": oid})
}

// UpdateLog replaces the editable fields of a maintenance record.
func (c *MongoMaintenanceLogCollection) UpdateLog(ctx context.Context, id string, log models.MaintenanceLog) error {
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = time.Now()
	}
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{
		"maintenance_type_id": log.MaintenanceTypeID,
		"maintenance_type":    log.MaintenanceType,
		"category":            log.Category,
		"km_performed":        log.KmPerformed,
		"date_performed":      log.DatePerformed,
		"service_cost":        log.ServiceCost,
		"product_cost":        log.ProductCost,
		"notes":               log.Notes,
		"updated_at":          log.UpdatedAt,
	}})
}

// DeleteLog deletes a maintenance record by its ID.
func (c *MongoMaintenanceLogCollection) DeleteLog(ctx context.Context, id string) error {
	return deleteByID(ctx, c.Collection, id)
}

// DeleteLogsByVehicle deletes a vehicle's whole history.
func (c *MongoMaintenanceLogCollection) DeleteLogsByVehicle(ctx context.Context, vehicleID string) (int64, error) {
	return deleteMany(ctx, c.Collection, bson.M{"vehicle_id": vehicleID})
}
