package paymentRepo

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

// MongoPaymentRepo persists payments in the "payments" collection.
type MongoPaymentRepo struct {
	coll *mongo.Collection
}

// NewMongoPaymentRepo constructs the repo and ensures its indexes.
func NewMongoPaymentRepo() *MongoPaymentRepo {
	repo := &MongoPaymentRepo{coll: database.DB().Collection("payments")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("warning: failed to ensure payment indexes: %v\n", err)
	}
	return repo
}

func (r *MongoPaymentRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}},
		{Keys: bson.D{{Key: "overall", Value: 1}, {Key: "expires_at", Value: 1}}},
	}
	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func newContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func (r *MongoPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepo) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoPaymentRepo) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return r.findOne(ctx, bson.M{"reference": reference})
}

func (r *MongoPaymentRepo) findOne(ctx context.Context, filter bson.M) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Payment
	if err := r.coll.FindOne(ctx, filter).Decode(&p); err != nil {
		return nil, fmt.Errorf("payment not found: %w", err)
	}
	return &p, nil
}

// AppendTransaction pushes the transaction only if no entry with the same
// (provider, transactionId) exists yet. One conditional update; a replayed
// callback matches zero documents and mutates nothing.
func (r *MongoPaymentRepo) AppendTransaction(ctx context.Context, paymentID string, txn models.Transaction) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"id": paymentID,
		"transactions": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"provider":       txn.Provider,
			"transaction_id": txn.TransactionID,
		}}},
	}
	update := bson.M{
		"$push": bson.M{"transactions": txn},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to append transaction: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// SetOverall performs a guarded transition of the status mirror.
func (r *MongoPaymentRepo) SetOverall(ctx context.Context, paymentID, overall string, allowedFrom []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": paymentID}
	if len(allowedFrom) > 0 {
		filter["overall"] = bson.M{"$in": allowedFrom}
	}
	update := bson.M{"$set": bson.M{"overall": overall, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to set payment status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoPaymentRepo) MarkRefundDue(ctx context.Context, paymentID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"refund_due": true, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": paymentID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark refund due: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("payment %s not found", paymentID)
	}
	return nil
}

func (r *MongoPaymentRepo) AddRefund(ctx context.Context, paymentID string, refund models.Refund) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"refunds": refund},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": paymentID}, update)
	if err != nil {
		return fmt.Errorf("failed to add refund: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("payment %s not found", paymentID)
	}
	return nil
}

func (r *MongoPaymentRepo) CancelPendingForBooking(ctx context.Context, bookingID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"booking_id": bookingID,
		"overall":    bson.M{"$in": bson.A{models.PayPending, models.PayProcessing}},
	}
	update := bson.M{"$set": bson.M{"overall": models.PayCancelled, "updated_at": time.Now()}}
	if _, err := r.coll.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to cancel pending payments for booking %s: %w", bookingID, err)
	}
	return nil
}

func (r *MongoPaymentRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"overall":    bson.M{"$in": bson.A{models.PayPending, models.PayProcessing}},
		"expires_at": bson.M{"$lt": now},
	}
	opts := options.Find().SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired payments: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode expired payments: %w", err)
	}
	return out, nil
}
