package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	rideserrors "wheelaway/internal/rides/errors"
	"wheelaway/pkg/config"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "RideShares"
)

type mongoRideRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type RideRepository interface {
	Create(ctx context.Context, ride *model.Ride) error
	FindByID(ctx context.Context, id string) (*model.Ride, error)
	Search(ctx context.Context, filter model.RideFilter) ([]*model.Ride, error)
	Count(ctx context.Context, filter model.RideFilter) (int64, error)
	AddPassenger(ctx context.Context, id string, p model.Passenger) (*model.Ride, error)
	SetPassengerStatus(ctx context.Context, id, passengerID, from, to string, at time.Time) (*model.Ride, error)
	UpdateStatus(ctx context.Context, id, from, to, actor string, at time.Time) (*model.Ride, error)
}

func NewMongoRideRepository(cfg *config.Config) RideRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRideRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoRideRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", rideserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoRideRepository) Create(ctx context.Context, ride *model.Ride) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.Passengers == nil {
		ride.Passengers = []model.Passenger{}
	}

	result, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		return fmt.Errorf("failed to create ride: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		ride.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRideRepository) FindByID(ctx context.Context, id string) (*model.Ride, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var ride model.Ride
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find ride: %w", err)
	}
	return &ride, nil
}

func (r *mongoRideRepository) Search(ctx context.Context, f model.RideFilter) ([]*model.Ride, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(f.Limit)).
		SetSkip(f.Offset).
		SetSort(bson.D{{Key: "departure_time", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, BuildFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search rides: %w", err)
	}
	defer cursor.Close(ctx)

	rides := []*model.Ride{}
	if err := cursor.All(ctx, &rides); err != nil {
		return nil, fmt.Errorf("failed to decode rides: %w", err)
	}
	return rides, nil
}

func (r *mongoRideRepository) Count(ctx context.Context, f model.RideFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, BuildFilter(f))
	if err != nil {
		return 0, fmt.Errorf("failed to count rides: %w", err)
	}
	return count, nil
}

// AddPassenger claims a seat for p in a single conditional update, so two
// joins racing for the last seat cannot both land.
func (r *mongoRideRepository) AddPassenger(ctx context.Context, id string, p model.Passenger) (*model.Ride, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.apply(ctx, oid, id, JoinFilter(oid, p.UserID), JoinUpdate(p))
}

func (r *mongoRideRepository) SetPassengerStatus(ctx context.Context, id, passengerID, from, to string, at time.Time) (*model.Ride, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	delta := SeatDelta(from, to)
	return r.apply(ctx, oid, id,
		PassengerStatusFilter(oid, passengerID, from, delta),
		PassengerStatusUpdate(to, delta, at))
}

func (r *mongoRideRepository) UpdateStatus(ctx context.Context, id, from, to, actor string, at time.Time) (*model.Ride, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"status": to, "updated_at": at}
	if to == model.RideStatusCancelled {
		set["cancelled_by"] = actor
		set["cancelled_at"] = at
	}
	return r.apply(ctx, oid, id, bson.M{"_id": oid, "status": from}, bson.M{"$set": set})
}

func (r *mongoRideRepository) apply(ctx context.Context, oid primitive.ObjectID, id string, filter, update bson.M) (*model.Ride, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated model.Ride
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update ride: %w", err)
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find ride: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotFound, id)
	}
	return nil, fmt.Errorf("%w: %s", rideserrors.ErrNotApplied, id)
}

// BuildFilter translates a ride search into a Mongo filter. Date selects
// departures on that UTC day.
func BuildFilter(f model.RideFilter) bson.M {
	filter := bson.M{}

	if !f.AnyStatus {
		filter["status"] = model.RideStatusScheduled
	}
	if f.Source != "" {
		filter["source"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Source), Options: "i"}
	}
	if f.Destination != "" {
		filter["destination"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Destination), Options: "i"}
	}
	if f.DriverID != "" {
		filter["driver_id"] = f.DriverID
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		filter["departure_time"] = bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)}
	}
	return filter
}

// seatFree holds while at least one seat is unclaimed.
var seatFree = bson.M{"$lt": bson.A{"$seats_claimed", "$seats"}}

// JoinFilter matches a scheduled ride with a free seat that userID neither
// drives nor already asked to join.
func JoinFilter(oid primitive.ObjectID, userID string) bson.M {
	return bson.M{
		"_id":                oid,
		"status":             model.RideStatusScheduled,
		"driver_id":          bson.M{"$ne": userID},
		"passengers.user_id": bson.M{"$ne": userID},
		"$expr":              seatFree,
	}
}

func JoinUpdate(p model.Passenger) bson.M {
	return bson.M{
		"$push": bson.M{"passengers": p},
		"$inc":  bson.M{"seats_claimed": 1},
		"$set":  bson.M{"updated_at": p.RequestedAt},
	}
}

// SeatDelta is the change to seats_claimed when a passenger moves from one
// status to another. Pending and accepted passengers hold a seat.
func SeatDelta(from, to string) int {
	holds := func(s string) bool { return s != model.PassengerStatusRejected }
	switch {
	case holds(from) && !holds(to):
		return -1
	case !holds(from) && holds(to):
		return 1
	default:
		return 0
	}
}

// PassengerStatusFilter compares and sets on the passenger's current status.
// A transition that claims a seat also requires one to be free.
func PassengerStatusFilter(oid primitive.ObjectID, passengerID, from string, delta int) bson.M {
	filter := bson.M{
		"_id": oid,
		"passengers": bson.M{"$elemMatch": bson.M{
			"_id":    passengerID,
			"status": from,
		}},
	}
	if delta > 0 {
		filter["status"] = model.RideStatusScheduled
		filter["$expr"] = seatFree
	}
	return filter
}

func PassengerStatusUpdate(to string, delta int, at time.Time) bson.M {
	update := bson.M{"$set": bson.M{
		"passengers.$.status":     to,
		"passengers.$.updated_at": at,
		"updated_at":              at,
	}}
	if delta != 0 {
		update["$inc"] = bson.M{"seats_claimed": delta}
	}
	return update
}
