package db

import (
	"context"
	"strings"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserCollection implements UserCollection for MongoDB
type MongoUserCollection struct {
	Collection *mongo.Collection
}

// InsertUser inserts a new user into the database
func (c *MongoUserCollection) InsertUser(ctx context.Context, user models.User) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.IsActive = true
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := c.Collection.InsertOne(ctx, user)
	return translate(err)
}

// FindUserByID finds a user by their ID
func (c *MongoUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.User](ctx, c.Collection, bson.M{"_id": oid})
}

// FindUserByEmail finds a user by their email, ignoring case
func (c *MongoUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, c.Collection, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

// ListUsers returns every account sorted by email
func (c *MongoUserCollection) ListUsers(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "email", Value: 1}})
	return findAll[models.User](ctx, c.Collection, bson.M{}, opts)
}

// UpdateUser replaces a user document
func (c *MongoUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now()
	user.ID = oid
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": oid}, user)
	if err != nil {
		return translate(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser deletes a user from the database
func (c *MongoUserCollection) DeleteUser(ctx context.Context, id string) error {
	return deleteByID(ctx, c.Collection, id)
}

// UpdateLastLogin updates the last login time for a user
func (c *MongoUserCollection) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return updateByID(ctx, c.Collection, id, bson.M{"$set": bson.M{"last_login": at, "updated_at": at}})
}
