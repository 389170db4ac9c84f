// Package catalogRepo is the read-only window onto the flight catalog.
// Catalog management lives outside the transaction core; the core only
// resolves existence, schedule status and fares.
package catalogRepo

import (
	"context"
	"fmt"
	"time"

	"skybook/database"
	"skybook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository looks up flights. The core never writes catalog data.
type CatalogRepository interface {
	GetFlight(ctx context.Context, flightID string) (*models.Flight, error)
}

type MongoCatalogRepo struct {
	coll *mongo.Collection
}

func NewMongoCatalogRepo() *MongoCatalogRepo {
	return &MongoCatalogRepo{coll: database.DB().Collection("flights")}
}

func (r *MongoCatalogRepo) GetFlight(ctx context.Context, flightID string) (*models.Flight, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var f models.Flight
	if err := r.coll.FindOne(ctx, bson.M{"id": flightID}).Decode(&f); err != nil {
		return nil, fmt.Errorf("flight %s not found: %w", flightID, err)
	}
	return &f, nil
}
