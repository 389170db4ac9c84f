package inventoryRepo

import (
	"context"
	"fmt"
	"time"

	"skybook/database"
	"skybook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoInventoryRepo stores one document per (flight, class).
type MongoInventoryRepo struct {
	coll *mongo.Collection
}

// NewMongoInventoryRepo constructs the repo and ensures its indexes.
func NewMongoInventoryRepo() *MongoInventoryRepo {
	repo := &MongoInventoryRepo{coll: database.DB().Collection("inventory")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("warning: failed to ensure inventory indexes: %v\n", err)
	}
	return repo
}

func (r *MongoInventoryRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "flight_id", Value: 1}, {Key: "class", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func newContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// conditionalInc runs one UpdateOne whose filter carries the operation's
// precondition. MatchedCount == 0 means the precondition did not hold (or
// the document is missing); either way nothing changed.
func (r *MongoInventoryRepo) conditionalInc(ctx context.Context, filter, inc bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("inventory update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

// Hold succeeds only while sold + held + quantity <= authorized.
func (r *MongoInventoryRepo) Hold(ctx context.Context, flightID, class string, quantity int) error {
	filter := bson.M{
		"flight_id": flightID,
		"class":     class,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$sold", "$held", quantity}},
			"$authorized",
		}},
	}
	return r.conditionalInc(ctx, filter, bson.M{"held": quantity})
}

// Commit converts held seats to sold. Requires held >= quantity.
func (r *MongoInventoryRepo) Commit(ctx context.Context, flightID, class string, quantity int) error {
	filter := bson.M{
		"flight_id": flightID,
		"class":     class,
		"held":      bson.M{"$gte": quantity},
	}
	return r.conditionalInc(ctx, filter, bson.M{"held": -quantity, "sold": quantity})
}

// Release drops held seats without touching sold. Requires held >= quantity.
func (r *MongoInventoryRepo) Release(ctx context.Context, flightID, class string, quantity int) error {
	filter := bson.M{
		"flight_id": flightID,
		"class":     class,
		"held":      bson.M{"$gte": quantity},
	}
	return r.conditionalInc(ctx, filter, bson.M{"held": -quantity})
}

// CancelSold returns sold seats to the pool. Requires sold >= quantity.
func (r *MongoInventoryRepo) CancelSold(ctx context.Context, flightID, class string, quantity int) error {
	filter := bson.M{
		"flight_id": flightID,
		"class":     class,
		"sold":      bson.M{"$gte": quantity},
	}
	return r.conditionalInc(ctx, filter, bson.M{"sold": -quantity})
}

func (r *MongoInventoryRepo) Get(ctx context.Context, flightID, class string) (*models.BookingClassInventory, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inv models.BookingClassInventory
	err := r.coll.FindOne(ctx, bson.M{"flight_id": flightID, "class": class}).Decode(&inv)
	if err != nil {
		return nil, fmt.Errorf("inventory for flight %s class %s not found: %w", flightID, class, err)
	}
	return &inv, nil
}

// Seed inserts or replaces a ledger row. Admin/bootstrap use only.
func (r *MongoInventoryRepo) Seed(ctx context.Context, inv *models.BookingClassInventory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	inv.UpdatedAt = time.Now()
	filter := bson.M{"flight_id": inv.FlightID, "class": inv.Class}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, filter, inv, opts); err != nil {
		return fmt.Errorf("failed to seed inventory: %w", err)
	}
	return nil
}
