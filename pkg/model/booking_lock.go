package model

import "time"

// BookingLock is an advisory lock document. Its _id is unique per car, so a
// second insert while the first is held fails with a duplicate key.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
