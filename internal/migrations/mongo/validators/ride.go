package validators

import "go.mongodb.org/mongo-driver/bson"

var RideValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"driver_id",
			"source",
			"destination",
			"departure_time",
			"seats",
			"seats_claimed",
			"currency",
			"status",
			"passengers",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"driver_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"car_id": bson.M{
				"bsonType": "string",
				"pattern":  "^[a-f0-9]{24}$",
			},
			"source": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},
			"destination": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},
			"departure_time": bson.M{
				"bsonType": "date",
			},
			"seats": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  8,
			},
			"seats_claimed": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  8,
			},
			"price": bson.M{
				"bsonType": "decimal",
			},
			"currency": bson.M{
				"bsonType": "string",
				"pattern":  "^[A-Z]{3}$",
			},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"scheduled", "in_progress", "completed", "cancelled"},
			},
			"passengers": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"_id", "user_id", "status", "requested_at"},
					"properties": bson.M{
						"user_id": bson.M{"bsonType": "string", "minLength": 1},
						"status": bson.M{
							"bsonType": "string",
							"enum":     []string{"pending", "accepted", "rejected"},
						},
						"requested_at": bson.M{"bsonType": "date"},
					},
				},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
