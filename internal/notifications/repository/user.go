package repository

import (
	"context"
	"errors"
	"fmt"

	notificationserrors "wheelaway/internal/notifications/errors"
	"wheelaway/pkg/config"
	"wheelaway/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Users"
)

// UserRepository reads the user directory maintained by the identity service.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var raw struct {
		ID    any    `bson:"_id"`
		Name  string `bson:"name"`
		Email string `bson:"email"`
		Role  string `bson:"role"`
	}
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "email": 1, "role": 1})
	err := r.collection.FindOne(ctx, IDFilter(id), opts).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", notificationserrors.ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &model.User{ID: id, Name: raw.Name, Email: raw.Email, Role: raw.Role}, nil
}

// IDFilter matches users stored under either an ObjectID or a plain string id.
func IDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}
