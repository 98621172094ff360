package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a rentable property owned by a host.
type Listing struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"userId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Image       *string          `json:"imageSrc,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	OfferPrice  *decimal.Decimal `json:"offerPrice,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// ListingWithReservations is a listing together with its current reservations.
type ListingWithReservations struct {
	Listing
	Reservations []Reservation `json:"reservations"`
}
