package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is a booking of a listing for an inclusive date range.
type Reservation struct {
	ID         string          `json:"id"`
	ListingID  string          `json:"listingId"`
	UserID     string          `json:"userId"`
	StartDate  Date            `json:"startDate"`
	EndDate    Date            `json:"endDate"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	OrderID    string          `json:"orderId"`
	PaymentID  *string         `json:"paymentId,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Reservation status constants. Only failed reservations are ignored by
// the availability check.
const (
	ReservationStatusPending = "pending"
	ReservationStatusSuccess = "success"
	ReservationStatusFailed  = "failed"
)

// ReservationDetail joins a reservation with the identities needed to
// authorize and notify on cancellation.
type ReservationDetail struct {
	Reservation
	ListingTitle string `json:"listingTitle"`
	HostID       string `json:"hostId"`
	GuestEmail   string `json:"guestEmail"`
	GuestName    string `json:"guestName"`
}

// CancelledReservation is the append-only audit record of a cancellation.
type CancelledReservation struct {
	ID            string          `json:"id"`
	ReservationID string          `json:"reservationId"`
	UserID        string          `json:"userId"`
	ListingID     string          `json:"listingId"`
	StartDate     Date            `json:"startDate"`
	EndDate       Date            `json:"endDate"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	CancelledBy   string          `json:"cancelledBy"`
	Reason        string          `json:"reason"`
	CancelledAt   time.Time       `json:"cancelledAt"`
}
