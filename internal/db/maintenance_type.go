package db

import (
	"context"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoMaintenanceTypeCollection implements MaintenanceTypeCollection for MongoDB.
type MongoMaintenanceTypeCollection struct {
	Collection *mongo.Collection
}

// InsertType inserts one catalog entry.
func (c *MongoMaintenanceTypeCollection) InsertType(ctx context.Context, t models.MaintenanceType) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	_, err := c.Collection.InsertOne(ctx, t)
	return translate(err)
}

// InsertTypes inserts several catalog entries at once.
func (c *MongoMaintenanceTypeCollection) InsertTypes(ctx context.Context, types []models.MaintenanceType) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if len(types) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(types))
	for _, t := range types {
		docs = append(docs, t)
	}
	_, err := c.Collection.InsertMany(ctx, docs)
	return translate(err)
}

// FindTypesByUser lists a user's catalog sorted by name.
func (c *MongoMaintenanceTypeCollection) FindTypesByUser(ctx context.Context, userID string) ([]models.MaintenanceType, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.MaintenanceType](ctx, c.Collection, bson.M{"user_id": userID}, opts)
}

// FindTypeByID finds a catalog entry by its ID.
func (c *MongoMaintenanceTypeCollection) FindTypeByID(ctx context.Context, id string) (*models.MaintenanceType, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.MaintenanceType](ctx, c.Collection, bson.M{"_id": oid})
}

// FindTypeByName finds a user's catalog entry by its exact name.
func (c *MongoMaintenanceTypeCollection) FindTypeByName(ctx context.Context, userID, name string) (*models.MaintenanceType, error) {
	return findOne[models.MaintenanceType](ctx, c.Collection, bson.M{"user_id": userID, "name": name})
}

// UpdateType updates name, intervals and description.
func (c *MongoMaintenanceTypeCollection) UpdateType(ctx context.Context, id string, t models.MaintenanceType) error {
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{
		"name":                    t.Name,
		"default_interval_km":     t.DefaultIntervalKm,
		"default_interval_months": t.DefaultIntervalMonths,
		"description":             t.Description,
	}})
}

// DeleteType deletes a catalog entry by its ID.
func (c *MongoMaintenanceTypeCollection) DeleteType(ctx context.Context, id string) error {
	return deleteByID(ctx, c.Collection, id)
}

// DeleteTypesByUser deletes a user's whole catalog.
func (c *MongoMaintenanceTypeCollection) DeleteTypesByUser(ctx context.Context, userID string) (int64, error) {
	return deleteMany(ctx, c.Collection, bson.M{"user_id": userID})
}
