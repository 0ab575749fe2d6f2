package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	carserrors "wheelaway/internal/cars/errors"
	"wheelaway/pkg/config"
	mongotx "wheelaway/pkg/db/mongo"
	"wheelaway/pkg/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Cars"

	// BookingSeqField is bumped by every reservation and delete of a car so
	// that concurrent transactions on the same car write the same document.
	BookingSeqField = "booking_seq"
)

type mongoCarRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type CarRepository interface {
	Create(ctx context.Context, car *model.Car) error
	FindByID(ctx context.Context, id string) (*model.Car, error)
	Search(ctx context.Context, filter model.CarFilter) ([]*model.Car, error)
	Count(ctx context.Context, filter model.CarFilter) (int64, error)
	Update(ctx context.Context, car *model.Car) error
	UpdateWindow(ctx context.Context, id string, from, to time.Time) error
	SetVerified(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	BumpBookingSeq(ctx context.Context, id string) (*model.Car, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoCarRepository(cfg *config.Config) CarRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCarRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves a SessionContext untouched so transactional calls keep
// their session; other contexts get the shorter of timeout and any deadline.
func (r *mongoCarRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", carserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoCarRepository) Create(ctx context.Context, car *model.Car) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	car.CreatedAt = now
	car.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, car)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		car.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCarRepository) FindByID(ctx context.Context, id string) (*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var car model.Car
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find car: %w", err)
	}
	return &car, nil
}

func (r *mongoCarRepository) Search(ctx context.Context, f model.CarFilter) ([]*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, err := BuildFilter(f)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetLimit(int64(f.Limit)).
		SetSkip(f.Offset).
		SetSort(SortOrder(f.Sort))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search cars: %w", err)
	}
	defer cursor.Close(ctx)

	cars := []*model.Car{}
	if err := cursor.All(ctx, &cars); err != nil {
		return nil, fmt.Errorf("failed to decode cars: %w", err)
	}
	return cars, nil
}

func (r *mongoCarRepository) Count(ctx context.Context, f model.CarFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter, err := BuildFilter(f)
	if err != nil {
		return 0, err
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count cars: %w", err)
	}
	return count, nil
}

func (r *mongoCarRepository) Update(ctx context.Context, car *model.Car) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(car.ID)
	if err != nil {
		return err
	}

	car.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"price_per_day": car.PricePerDay,
			"location":      car.Location,
			"description":   car.Description,
			"features":      car.Features,
			"images":        car.Images,
			"updated_at":    car.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", carserrors.ErrNotFound, car.ID)
	}
	return nil
}

func (r *mongoCarRepository) UpdateWindow(ctx context.Context, id string, from, to time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"available_from": from,
			"available_to":   to,
			"updated_at":     time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update availability window: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoCarRepository) SetVerified(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"is_verified":            true,
			"verified_at":            at,
			"documents.$[].verified": true,
			"updated_at":             at,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to verify car: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoCarRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
	}
	return nil
}

// BumpBookingSeq increments the car's booking sequence and returns the car.
// Called inside a transaction it turns two reservations (or a reservation and a
// delete) of the same car into a write conflict, whatever the advisory lock did.
func (r *mongoCarRepository) BumpBookingSeq(ctx context.Context, id string) (*model.Car, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var car model.Car
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{BookingSeqField: 1}},
		opts,
	).Decode(&car)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", carserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to bump booking sequence: %w", err)
	}
	return &car, nil
}

func (r *mongoCarRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func decimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

// BuildFilter translates a search into a Mongo filter. A From/To pair selects
// cars whose inclusive window contains the half-open rental [From, To).
func BuildFilter(f model.CarFilter) (bson.M, error) {
	filter := bson.M{}

	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Location != "" {
		filter["location"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Location), Options: "i"}
	}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Verified != nil {
		filter["is_verified"] = *f.Verified
	}

	price := bson.M{}
	if f.MinPrice != nil {
		d, err := decimal128(*f.MinPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid min price: %w", err)
		}
		price["$gte"] = d
	}
	if f.MaxPrice != nil {
		d, err := decimal128(*f.MaxPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid max price: %w", err)
		}
		price["$lte"] = d
	}
	if len(price) > 0 {
		filter["price_per_day"] = price
	}

	if f.From != nil {
		filter["available_from"] = bson.M{"$lte": *f.From}
	}
	if f.To != nil {
		filter["available_to"] = bson.M{"$gte": f.To.AddDate(0, 0, -1)}
	}

	return filter, nil
}

func SortOrder(sort string) bson.D {
	switch sort {
	case model.SortPriceAsc:
		return bson.D{{Key: "price_per_day", Value: 1}, {Key: "_id", Value: 1}}
	case model.SortPriceDesc:
		return bson.D{{Key: "price_per_day", Value: -1}, {Key: "_id", Value: 1}}
	case model.SortRating:
		return bson.D{{Key: "ratings.average", Value: -1}, {Key: "ratings.count", Value: -1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}}
	}
}
