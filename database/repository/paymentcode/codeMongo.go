package codeRepo

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

// MongoPaymentCodeRepo persists payment codes.
type MongoPaymentCodeRepo struct {
	coll *mongo.Collection
}

// NewMongoPaymentCodeRepo constructs the repo and ensures its indexes.
func NewMongoPaymentCodeRepo() *MongoPaymentCodeRepo {
	repo := &MongoPaymentCodeRepo{coll: database.DB().Collection("payment_codes")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("warning: failed to ensure payment code indexes: %v\n", err)
	}
	return repo
}

func (r *MongoPaymentCodeRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentCodeRepo) GetByCode(ctx context.Context, code string) (*models.PaymentCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.PaymentCode
	if err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&c); err != nil {
		return nil, fmt.Errorf("payment code %s not found: %w", code, err)
	}
	return &c, nil
}

// RecordUsage is one conditional update: the filter re-checks the total
// limit and the caller's per-user count, so two confirmations racing for
// the last redemption get exactly one winner. A booking redeems at most
// once: replayed finalizations of the same booking are a no-op.
func (r *MongoPaymentCodeRepo) RecordUsage(ctx context.Context, code string, usage models.CodeUsage) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"code":              code,
		"status":            models.CodeActive,
		"usages.booking_id": bson.M{"$ne": usage.BookingID},
	}

	var conds bson.A
	// Total limit: usedCount < usage_limit.total unless unlimited.
	conds = append(conds, bson.M{"$or": bson.A{
		bson.M{"$eq": bson.A{"$usage_limit.total", 0}},
		bson.M{"$lt": bson.A{"$used_count", "$usage_limit.total"}},
	}})
	// Per-user limit: count of this user's usages < usage_limit.per_user
	// unless unlimited.
	userCount := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$usages", bson.A{}}},
		"as":    "u",
		"cond":  bson.M{"$eq": bson.A{"$$u.user_id", usage.UserID}},
	}}}
	conds = append(conds, bson.M{"$or": bson.A{
		bson.M{"$eq": bson.A{"$usage_limit.per_user", 0}},
		bson.M{"$lt": bson.A{userCount, "$usage_limit.per_user"}},
	}})
	filter["$expr"] = bson.M{"$and": conds}

	update := bson.M{
		"$inc":  bson.M{"used_count": 1},
		"$push": bson.M{"usages": usage},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to record code usage: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish "already redeemed by this booking" from "limits hit".
		n, cerr := r.coll.CountDocuments(ctx, bson.M{"code": code, "usages.booking_id": usage.BookingID})
		if cerr == nil && n > 0 {
			return nil
		}
		return ErrUsageExhausted
	}
	return nil
}

// MarkExpired flips an active code to expired once its window has lapsed.
func (r *MongoPaymentCodeRepo) MarkExpired(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"code": code, "status": models.CodeActive}
	update := bson.M{"$set": bson.M{"status": models.CodeExpired}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to expire payment code %s: %w", code, err)
	}
	return nil
}

// ExpireAll transitions every active code whose expiry date has passed.
func (r *MongoPaymentCodeRepo) ExpireAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":      models.CodeActive,
		"expiry_date": bson.M{"$lt": time.Now()},
	}
	update := bson.M{"$set": bson.M{"status": models.CodeExpired}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payment codes: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoPaymentCodeRepo) Create(ctx context.Context, c *models.PaymentCode) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = models.CodeActive
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to create payment code: %w", err)
	}
	return nil
}
