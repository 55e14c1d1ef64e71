// Package catalog provides read-only lookup of vendor store services:
// price range, duration, active flag and the instant-booking policy.
package catalog

import (
	"github.com/google/uuid"
)

// VendorService is an immutable snapshot of a bookable offering. The
// scheduling engine captures price and duration at booking time; later
// catalog edits never rewrite existing appointments.
type VendorService struct {
	StoreID         uuid.UUID `json:"store_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	Name            string    `json:"name"`
	PriceMinCents   int64     `json:"price_min_cents"`
	PriceMaxCents   int64     `json:"price_max_cents"`
	Currency        string    `json:"currency"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	InstantBooking  bool      `json:"instant_booking"`
}

// FixedPrice reports whether the service has a single price rather than a range.
func (v *VendorService) FixedPrice() bool {
	return v.PriceMinCents == v.PriceMaxCents
}
