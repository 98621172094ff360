package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/booking"
)

// CreateReservation books a listing for the caller.
func CreateReservation(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in booking.CreateInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		listing, err := svc.Create(r.Context(), middleware.CurrentUser(r.Context()).ID, in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, listing)
	}
}

// CancelReservation cancels a reservation and refunds the guest. The body
// is the bare result object, not the envelope.
func CancelReservation(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		result, err := svc.Cancel(r.Context(), id, middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		middleware.WriteRaw(w, http.StatusOK, result)
	}
}

// UpdateReservationPayment records the payment outcome of a pending reservation.
func UpdateReservationPayment(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var in booking.PaymentInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		res, err := svc.UpdatePaymentStatus(r.Context(), id, middleware.CurrentUser(r.Context()).ID, in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		middleware.WriteJSON(w, http.StatusOK, res)
	}
}

// ListTrips returns the caller's reservations as a guest.
func ListTrips(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.GuestReservations(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// ListHostReservations returns reservations on the caller's listings.
func ListHostReservations(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.HostReservations(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}
