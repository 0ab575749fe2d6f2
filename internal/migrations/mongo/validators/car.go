package validators

import "go.mongodb.org/mongo-driver/bson"

var CarValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner_id",
			"make",
			"model",
			"year",
			"category",
			"price_per_day",
			"currency",
			"location",
			"available_from",
			"available_to",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"make": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 50,
			},

			"model": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},

			"year": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1990,
				"maximum":  2100,
			},

			"booking_seq": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"category": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Economy",
					"Compact",
					"Midsize",
					"SUV",
					"Van",
					"Luxury",
				},
			},

			"price_per_day": bson.M{
				"bsonType":         "decimal",
				"exclusiveMinimum": true,
				"minimum":          0,
			},

			"currency": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z]{3}$",
			},

			"location": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"images": bson.M{
				"bsonType": "array",
				"maxItems": 10,
				"items":    bson.M{"bsonType": "string"},
			},

			"features": bson.M{
				"bsonType": "array",
				"maxItems": 30,
				"items":    bson.M{"bsonType": "string"},
			},

			"available_from": bson.M{
				"bsonType": "date",
			},

			"available_to": bson.M{
				"bsonType": "date",
			},

			"is_verified": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
