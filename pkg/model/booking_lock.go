package model

import "time"

// BookingLock is an advisory lock serializing concurrent creates and updates
// on one professional's calendar. The _id encodes the professional, so a
// duplicate-key insert means another request is writing to that calendar
// right now.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
