package domain

import "time"

type Sale struct {
	ID             string    `bson:"_id" json:"_id"`
	Title          string    `bson:"title" json:"title"`
	Description    string    `bson:"description,omitempty" json:"description,omitempty"`
	DiscountAmount float64   `bson:"discountAmount" json:"discountAmount"`
	CouponCode     string    `bson:"couponCode" json:"couponCode"`
	ValidFrom      time.Time `bson:"validFrom" json:"validFrom"`
	ValidUntil     time.Time `bson:"validUntil" json:"validUntil"`
	IsActive       bool      `bson:"isActive" json:"isActive"`
}

// ActiveAt reports whether the sale applies at t. A zero ValidUntil means the
// sale has no end date.
func (s *Sale) ActiveAt(t time.Time) bool {
	if !s.IsActive {
		return false
	}
	if !s.ValidFrom.IsZero() && t.Before(s.ValidFrom) {
		return false
	}
	if !s.ValidUntil.IsZero() && t.After(s.ValidUntil) {
		return false
	}
	return true
}
