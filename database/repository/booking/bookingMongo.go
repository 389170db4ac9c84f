package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"skybook/database"
	"skybook/models"
	"skybook/services/pii"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBookingRepo persists bookings and applies the PII codec at the
// storage boundary.
type MongoBookingRepo struct {
	coll  *mongo.Collection
	codec *pii.Codec
}

// NewMongoBookingRepo constructs the repo and ensures its indexes.
func NewMongoBookingRepo(codec *pii.Codec) *MongoBookingRepo {
	repo := &MongoBookingRepo{
		coll:  database.DB().Collection("bookings"),
		codec: codec,
	}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("warning: failed to ensure booking indexes: %v\n", err)
	}
	return repo
}

func (r *MongoBookingRepo) ensureIndexes() error {
	ctx, cancel := newContext(10 * time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
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

// sealPII encrypts the designated fields in place on a copy of the booking.
func (r *MongoBookingRepo) sealPII(b *models.Booking) (*models.Booking, error) {
	sealed := *b
	phone, err := r.codec.Encrypt(b.Contact.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt contact phone: %w", err)
	}
	sealed.Contact.Phone = phone

	sealed.Segments = make([]models.Segment, len(b.Segments))
	copy(sealed.Segments, b.Segments)
	for i := range sealed.Segments {
		pax := make([]models.Passenger, len(sealed.Segments[i].Passengers))
		copy(pax, sealed.Segments[i].Passengers)
		for j := range pax {
			doc, err := r.codec.Encrypt(pax[j].DocumentNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt document number: %w", err)
			}
			pax[j].DocumentNumber = doc
		}
		sealed.Segments[i].Passengers = pax
	}
	return &sealed, nil
}

// openPII decrypts the designated fields in place.
func (r *MongoBookingRepo) openPII(b *models.Booking) {
	b.Contact.Phone = r.codec.Decrypt(b.Contact.Phone)
	for i := range b.Segments {
		for j := range b.Segments[i].Passengers {
			p := &b.Segments[i].Passengers[j]
			p.DocumentNumber = r.codec.Decrypt(p.DocumentNumber)
		}
	}
}

// Create inserts a new booking document with PII sealed.
func (r *MongoBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	sealed, err := r.sealPII(b)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, sealed); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

func (r *MongoBookingRepo) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"reference": reference})
}

func (r *MongoBookingRepo) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var b models.Booking
	if err := r.coll.FindOne(ctx, filter).Decode(&b); err != nil {
		return nil, fmt.Errorf("booking not found: %w", err)
	}
	r.openPII(&b)
	return &b, nil
}

// UpdateStatus moves the booking between lifecycle states.
func (r *MongoBookingRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.set(ctx, id, bson.M{"status": status})
}

// SetPaymentSummary refreshes the embedded payment mirror.
func (r *MongoBookingRepo) SetPaymentSummary(ctx context.Context, id string, summary models.PaymentSummary) error {
	return r.set(ctx, id, bson.M{"payment": summary})
}

// SetTicketNumbers rewrites the segments with issued tickets. PII inside
// the segments is re-sealed.
func (r *MongoBookingRepo) SetTicketNumbers(ctx context.Context, id string, segments []models.Segment) error {
	tmp := models.Booking{Segments: segments}
	sealed, err := r.sealPII(&tmp)
	if err != nil {
		return err
	}
	return r.set(ctx, id, bson.M{"segments": sealed.Segments})
}

func (r *MongoBookingRepo) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["updated_at"] = time.Now()
	res, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("booking %s not found", id)
	}
	return nil
}

// TransitionStatus moves the booking status conditionally; only one
// concurrent caller observes matched == 1 for a given edge.
func (r *MongoBookingRepo) TransitionStatus(ctx context.Context, id string, from []string, to string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to transition status for booking %s: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// TransitionInventoryState flips the hold marker conditionally; only one
// concurrent caller observes matched == 1 for a given from->to edge.
func (r *MongoBookingRepo) TransitionInventoryState(ctx context.Context, id, from, to string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "inventory_state": from}
	update := bson.M{"$set": bson.M{"inventory_state": to, "updated_at": time.Now()}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to transition inventory state for booking %s: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// FindStalePending returns pending bookings created before the cutoff.
func (r *MongoBookingRepo) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.BookingPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale bookings: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode stale bookings: %w", err)
	}
	for i := range out {
		r.openPII(&out[i])
	}
	return out, nil
}

// FindCancelledBefore returns cancelled bookings last touched before the
// cutoff, candidates for the long-term purge.
func (r *MongoBookingRepo) FindCancelledBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.BookingCancelled,
		"updated_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cancelled bookings: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Booking
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode cancelled bookings: %w", err)
	}
	for i := range out {
		r.openPII(&out[i])
	}
	return out, nil
}

// Delete purges a booking document. Scheduled cleanup use only.
func (r *MongoBookingRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete booking %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("booking %s not found", id)
	}
	return nil
}
