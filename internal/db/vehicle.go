package db

import (
	"context"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	vehicle.LicensePlate = models.NormalizePlate(vehicle.LicensePlate)
	_, err := c.Collection.InsertOne(ctx, vehicle)
	return translate(err)
}

// FindVehiclesByOwner lists the vehicles of one user, oldest first.
func (c *MongoVehicleCollection) FindVehiclesByOwner(ctx context.Context, ownerID string) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return findAll[models.Vehicle](ctx, c.Collection, bson.M{"owner_id": ownerID}, opts)
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.Vehicle](ctx, c.Collection, bson.M{"_id": oid})
}

// UpdateVehicle updates the editable fields of a vehicle.
func (c *MongoVehicleCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) error {
	if vehicle.UpdatedAt.IsZero() {
		vehicle.UpdatedAt = time.Now()
	}
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{
		"make":          vehicle.Make,
		"model":         vehicle.Model,
		"year":          vehicle.Year,
		"current_km":    vehicle.CurrentKm,
		"license_plate": models.NormalizePlate(vehicle.LicensePlate),
		"updated_at":    vehicle.UpdatedAt,
	}})
}

// BumpCurrentKm raises current_km to km when km is larger.
func (c *MongoVehicleCollection) BumpCurrentKm(ctx context.Context, id string, km int) error {
	return updateByID(ctx, c.Collection, id, bson.M{"$max": bson.M{"current_km": km}})
}

// DeleteVehicle deletes a vehicle by its ID.
func (c *MongoVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	return deleteByID(ctx, c.Collection, id)
}

// DeleteVehiclesByOwner deletes every vehicle of a user.
func (c *MongoVehicleCollection) DeleteVehiclesByOwner(ctx context.Context, ownerID string) (int64, error) {
	return deleteMany(ctx, c.Collection, bson.M{"owner_id": ownerID})
}
