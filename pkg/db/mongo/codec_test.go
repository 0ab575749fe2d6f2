package mongo

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
)

type priced struct {
	Price decimal.Decimal `bson:"price"`
}

func TestDecimalCodec_StoresDecimal128(t *testing.T) {
	reg := NewRegistry()

	raw, err := bson.MarshalWithRegistry(reg, priced{Price: decimal.RequireFromString("1234.56")})
	require.NoError(t, err)

	val := bson.Raw(raw).Lookup("price")
	assert.Equal(t, bsontype.Decimal128, val.Type)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, out.Price.Equal(decimal.RequireFromString("1234.56")), "got %s", out.Price)
}

func TestDecimalCodec_ReadsLegacyNumbers(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		doc  bson.M
		want string
	}{
		{"double", bson.M{"price": 999.5}, "999.5"},
		{"int32", bson.M{"price": int32(1000)}, "1000"},
		{"int64", bson.M{"price": int64(2500)}, "2500"},
		{"string", bson.M{"price": "12.75"}, "12.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := bson.Marshal(tt.doc)
			require.NoError(t, err)

			var out priced
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			assert.True(t, out.Price.Equal(decimal.RequireFromString(tt.want)), "got %s", out.Price)
		})
	}
}

func TestDecimalCodec_RejectsOtherTypes(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": true})
	require.NoError(t, err)

	var out priced
	assert.Error(t, bson.UnmarshalWithRegistry(NewRegistry(), raw, &out))
}

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", assert.AnError, false},
		{"write conflict", mongo.CommandError{Code: 112, Name: "WriteConflict"}, true},
		{"transient label", mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}}, true},
		{"wrapped write conflict", fmt.Errorf("commit: %w", mongo.CommandError{Code: 112}), true},
		{
			name: "duplicate key",
			err:  mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}},
			want: false,
		},
		{"duplicate key command", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWriteConflict(tt.err))
		})
	}
}
