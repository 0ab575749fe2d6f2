package mongo

import (
	"testing"

	"wheelaway/internal/bookings/repository"
	carsrepository "wheelaway/internal/cars/repository"
	paymentsrepository "wheelaway/internal/payments/repository"
	ridesrepository "wheelaway/internal/rides/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestCollections_MatchRepositories(t *testing.T) {
	defs := Collections()

	for _, name := range []string{
		carsrepository.CollectionName,
		repository.CollectionName,
		repository.LockCollectionName,
		paymentsrepository.CollectionName,
		ridesrepository.CollectionName,
	} {
		def, ok := defs[name]
		require.True(t, ok, "missing collection %s", name)
		assert.NotEmpty(t, def.Indexes, name)
		assert.Contains(t, def.Validator, "$jsonSchema", name)
	}
}

func TestBookingLocks_TTLIndex(t *testing.T) {
	require.Len(t, BookingLocksIndexes, 1)
	idx := BookingLocksIndexes[0]
	assert.Equal(t, bson.D{{Key: "expires_at", Value: 1}}, idx.Keys)
	require.NotNil(t, idx.Options.ExpireAfterSeconds)
	assert.Equal(t, int32(0), *idx.Options.ExpireAfterSeconds)
}

func TestPayments_UniqueProviderPayment(t *testing.T) {
	idx := PaymentsIndexes[0]
	assert.Equal(t, bson.D{{Key: "provider", Value: 1}, {Key: "payment_id", Value: 1}}, idx.Keys)
	require.NotNil(t, idx.Options.Unique)
	assert.True(t, *idx.Options.Unique)
}

func TestBookings_OverlapIndexLeadsWithCar(t *testing.T) {
	keys := BookingsIndexes[0].Keys.(bson.D)
	require.Len(t, keys, 3)
	assert.Equal(t, "car_id", keys[0].Key)
	assert.Equal(t, "start_date", keys[1].Key)
	assert.Equal(t, "end_date", keys[2].Key)
}

func TestCars_ValidatorAcceptsBookingSeq(t *testing.T) {
	def := Collections()[carsrepository.CollectionName]
	schema := def.Validator["$jsonSchema"].(bson.M)
	props := schema["properties"].(bson.M)

	seq, ok := props[carsrepository.BookingSeqField].(bson.M)
	require.True(t, ok, "cars schema must describe %s", carsrepository.BookingSeqField)
	assert.Equal(t, []string{"int", "long"}, seq["bsonType"])
}

func TestRides_SchemaBoundsSeats(t *testing.T) {
	schema := Collections()[ridesrepository.CollectionName].Validator["$jsonSchema"].(bson.M)
	props := schema["properties"].(bson.M)

	seats := props["seats"].(bson.M)
	assert.Equal(t, 1, seats["minimum"])
	assert.Equal(t, 8, seats["maximum"])
	assert.Contains(t, schema["required"], "seats_claimed")
}
