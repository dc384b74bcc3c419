package model

import (
	"time"
)

// Booking is one committed [start, start+duration) slot for a professional.
// EndTime is derived from StartTime and DurationMin but stored alongside them
// so the overlap query can run entirely in the store.
type Booking struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID        string    `json:"owner_id" bson:"owner_id" validate:"required,mongodb"`
	ProfessionalID string    `json:"professional_id" bson:"professional_id" validate:"required,mongodb"`
	ServiceType    string    `json:"service_type" bson:"service_type" validate:"required,min=2,max=100"`
	StartTime      time.Time `json:"start_time" bson:"start_time" validate:"required"`
	DurationMin    int       `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=1440"`
	EndTime        time.Time `json:"end_time" bson:"end_time"`
	ClientName     string    `json:"client_name" bson:"client_name" validate:"required,min=2,max=100"`
	ClientEmail    string    `json:"client_email" bson:"client_email" validate:"required,email"`
	ClientWhatsapp string    `json:"client_whatsapp,omitempty" bson:"client_whatsapp,omitempty" validate:"omitempty,e164"`
	Note           string    `json:"note,omitempty" bson:"note,omitempty" validate:"omitempty,max=500"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// End computes the half-open interval end from start and duration.
func (b *Booking) End() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMin) * time.Minute)
}

// BookingPatch carries a partial update. Nil pointers mean "not supplied":
// the merge keeps the current value, so an absent field is never confused
// with an explicitly cleared one.
type BookingPatch struct {
	ServiceType    *string    `json:"service_type,omitempty" validate:"omitempty,min=2,max=100"`
	StartTime      *time.Time `json:"start_time,omitempty" validate:"omitempty"`
	DurationMin    *int       `json:"duration_min,omitempty" validate:"omitempty,min=1,max=1440"`
	ClientName     *string    `json:"client_name,omitempty" validate:"omitempty,min=2,max=100"`
	ClientEmail    *string    `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientWhatsapp *string    `json:"client_whatsapp,omitempty" validate:"omitempty"`
	Note           *string    `json:"note,omitempty" validate:"omitempty,max=500"`
	Holidays       []string   `json:"holidays,omitempty" validate:"omitempty,dive,datetime=2006-01-02"`
}

// ChangesInterval reports whether the patch moves or resizes the slot, which
// is what decides if the policy and overlap checks must re-run.
func (p *BookingPatch) ChangesInterval() bool {
	return p.StartTime != nil || p.DurationMin != nil
}

// OccupiedSlot is the read-model entry for a professional's busy intervals.
type OccupiedSlot struct {
	StartTime   time.Time `json:"start_time"`
	DurationMin int       `json:"duration_min"`
}
