package repository

import (
	"context"
	"fmt"
	"time"

	bookingserrors "wheelaway/internal/bookings/errors"
	"wheelaway/pkg/config"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository provides per-car advisory locks backed by a unique _id.
type BookingLockRepository interface {
	Acquire(ctx context.Context, carID, owner string, ttl time.Duration) (*model.BookingLock, error)
	Release(ctx context.Context, lock *model.BookingLock) error
}

type mongoBookingLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	now        func() time.Time
}

func NewBookingLockRepository(cfg *config.Config) BookingLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingLockRepository{
		cfg:        cfg,
		collection: db.Collection(LockCollectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func LockID(carID string) string {
	return "car_lock_" + carID
}

// Acquire inserts the lock document for carID. A held lock yields
// ErrLockHeld. A lock past its expiry that the TTL monitor has not reaped yet
// is taken over.
func (r *mongoBookingLockRepository) Acquire(ctx context.Context, carID, owner string, ttl time.Duration) (*model.BookingLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := r.now()
	lock := &model.BookingLock{
		ID:        LockID(carID),
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to clear expired booking lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrLockHeld, carID)
	}

	if _, err := r.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrLockHeld, carID)
		}
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	return lock, nil
}

// Release deletes the lock only if it still belongs to the caller.
func (r *mongoBookingLockRepository) Release(ctx context.Context, lock *model.BookingLock) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "owner": lock.Owner})
	if err != nil {
		return fmt.Errorf("failed to release booking lock: %w", err)
	}
	return nil
}
