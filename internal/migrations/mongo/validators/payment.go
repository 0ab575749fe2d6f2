package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"provider",
			"payment_id",
			"amount",
			"currency",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"provider": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 30,
			},
			"payment_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"amount": bson.M{
				"bsonType": "decimal",
			},
			"currency": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z]{3}$",
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"captured"},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
