package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "wheelaway/internal/bookings/errors"
	"wheelaway/pkg/config"
	mongotx "wheelaway/pkg/db/mongo"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

var blockingStatuses = []string{model.BookingStatusPending, model.BookingStatusConfirmed}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindOverlapping(ctx context.Context, carID string, start, end time.Time, excludeStatuses ...string) ([]*model.Booking, error)
	UpdateStatus(ctx context.Context, id, from, to, actor string, at time.Time) (*model.Booking, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (*model.Booking, bool, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	FindOpenByCar(ctx context.Context, carID string, now time.Time) ([]*model.Booking, error)
	CountOpenByCar(ctx context.Context, carID string, now time.Time) (int64, error)
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged with a no-op cancel function, as
// wrapping it would detach the call from its session.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

// OverlapFilter matches bookings on carID whose [start_date, end_date) meets
// [start, end). Bookings in excludeStatuses are ignored.
func OverlapFilter(carID string, start, end time.Time, excludeStatuses ...string) bson.M {
	filter := bson.M{
		"car_id":     carID,
		"start_date": bson.M{"$lt": end},
		"end_date":   bson.M{"$gt": start},
	}
	if len(excludeStatuses) > 0 {
		filter["status"] = bson.M{"$nin": excludeStatuses}
	}
	return filter
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, carID string, start, end time.Time, excludeStatuses ...string) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})
	return r.find(ctx, OverlapFilter(carID, start, end, excludeStatuses...), opts)
}

// StatusUpdate builds the $set for a transition into status to.
func StatusUpdate(to, actor string, at time.Time) bson.M {
	set := bson.M{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case model.BookingStatusConfirmed:
		set["confirmed_at"] = at
	case model.BookingStatusCancelled:
		set["cancelled_at"] = at
		set["cancelled_by"] = actor
	}
	return bson.M{"$set": set}
}

// UpdateStatus moves a booking from one status to another only while it still
// holds the expected status. A lost race returns ErrStatusChanged.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id, from, to, actor string, at time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Booking
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": objectID, "status": from},
		StatusUpdate(to, actor, at),
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, r.missOrRace(ctx, objectID, id)
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}

	return &updated, nil
}

// MarkPaid records payment on a booking that is not cancelled. The flag is
// false when nothing changed, so a repeated call keeps the first paid_at.
func (r *mongoBookingRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (*model.Booking, bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":            objectID,
		"status":         bson.M{"$ne": model.BookingStatusCancelled},
		"payment_status": model.PaymentStatusPending,
	}
	update := bson.M{"$set": bson.M{
		"payment_status": model.PaymentStatusPaid,
		"paid_at":        paidAt,
		"updated_at":     paidAt,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Booking
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to mark booking paid: %w", err)
	}

	// already paid, cancelled or missing
	var current model.Booking
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
		}
		return nil, false, fmt.Errorf("failed to find booking: %w", err)
	}
	return &current, false, nil
}

func (r *mongoBookingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.page(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoBookingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{"user_id": userID})
}

func (r *mongoBookingRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.page(ctx, bson.M{"owner_id": ownerID}, limit, offset)
}

func (r *mongoBookingRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, bson.M{"owner_id": ownerID})
}

// OpenFilter matches blocking bookings on carID that have not ended by now.
func OpenFilter(carID string, now time.Time) bson.M {
	return bson.M{
		"car_id":   carID,
		"status":   bson.M{"$in": blockingStatuses},
		"end_date": bson.M{"$gt": now},
	}
}

func (r *mongoBookingRepository) FindOpenByCar(ctx context.Context, carID string, now time.Time) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})
	return r.find(ctx, OpenFilter(carID, now), opts)
}

func (r *mongoBookingRepository) CountOpenByCar(ctx context.Context, carID string, now time.Time) (int64, error) {
	return r.count(ctx, OpenFilter(carID, now))
}

func (r *mongoBookingRepository) FindStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":     model.BookingStatusPending,
		"created_at": bson.M{"$lt": before},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// page lists newest first.
func (r *mongoBookingRepository) page(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []*model.Booking{}
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) missOrRace(ctx context.Context, objectID primitive.ObjectID, id string) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to find booking: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", bookingserrors.ErrStatusChanged, id)
}
