// internal/app/store/options/optionstore.go
package optionstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides access to the options collection.
// Each option is one document keyed by its unique name.
// Store implements options.Backend.
type Store struct {
	c *mongo.Collection
}

// New creates a new option store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("options")}
}

// Get returns the stored value for name, or options.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (any, error) {
	var rec models.OptionRecord
	err := s.c.FindOne(ctx, bson.M{"name": name}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, options.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Set upserts the value for name.
func (s *Store) Set(ctx context.Context, name, group string, value any, updatedBy string) error {
	filter := bson.M{"name": name}
	update := bson.M{
		"$set": bson.M{
			"name":       name,
			"group":      group,
			"value":      value,
			"updated_at": time.Now().UTC(),
			"updated_by": updatedBy,
		},
	}

	opts := mongoopts.Update().SetUpsert(true)
	_, err := s.c.UpdateOne(ctx, filter, update, opts)
	return err
}

// ListGroup returns every stored record in group, sorted by name.
func (s *Store) ListGroup(ctx context.Context, group string) ([]models.OptionRecord, error) {
	opts := mongoopts.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"group": group}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.OptionRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the stored value for name so reads fall back to the default.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"name": name})
	return err
}
