package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	UsersCollection            = "users"
	VehiclesCollection         = "vehicles"
	MaintenanceTypesCollection = "maintenance_types"
	MaintenanceLogsCollection  = "maintenance_logs"
)

// ConnectMongo connects to MongoDB and pings it within timeout.
func ConnectMongo(uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// Store groups the collections used by the service.
type Store struct {
	Users    *MongoUserCollection
	Vehicles *MongoVehicleCollection
	Types    *MongoMaintenanceTypeCollection
	Logs     *MongoMaintenanceLogCollection
}

// NewStore wraps the collections of database.
func NewStore(database *mongo.Database) *Store {
	return &Store{
		Users:    &MongoUserCollection{Collection: database.Collection(UsersCollection)},
		Vehicles: &MongoVehicleCollection{Collection: database.Collection(VehiclesCollection)},
		Types:    &MongoMaintenanceTypeCollection{Collection: database.Collection(MaintenanceTypesCollection)},
		Logs:     &MongoMaintenanceLogCollection{Collection: database.Collection(MaintenanceLogsCollection)},
	}
}

// EnsureIndexes creates the unique and lookup indexes the service relies on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		VehiclesCollection: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		},
		MaintenanceTypesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		MaintenanceLogsCollection: {
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "date_performed", Value: -1}}},
			{Keys: bson.D{{Key: "maintenance_type_id", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func updateByID(ctx context.Context, coll *mongo.Collection, id string, update interface{}) error {
	if coll == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id string) error {
	if coll == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteMany(ctx context.Context, coll *mongo.Collection, filter interface{}) (int64, error) {
	if coll == nil {
		return 0, ErrNilCollection
	}
	result, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
