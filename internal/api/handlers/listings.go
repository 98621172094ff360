package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/booking"
	"github.com/rental-marketplace/backend/internal/calendar"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// AvailabilityResponse answers an availability query.
type AvailabilityResponse struct {
	Available bool               `json:"available"`
	Conflicts []booking.Conflict `json:"conflicts"`
}

// CreateListing publishes a new listing owned by the caller.
func CreateListing(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in booking.ListingInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		listing, err := svc.CreateListing(r.Context(), middleware.CurrentUser(r.Context()).ID, in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, listing)
	}
}

// ListListings returns listings, optionally filtered by ?category=.
func ListListings(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Listings(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// GetListing returns a listing with its reservations.
func GetListing(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := svc.Listing(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, listing)
	}
}

// GetListingAvailability reports the reservations that clash with
// ?startDate=&endDate= on a listing.
func GetListingAvailability(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := models.ParseDate(q.Get("startDate"))
		if err != nil {
			middleware.WriteError(w, r, apperror.InvalidInput("startDate must be YYYY-MM-DD"))
			return
		}
		end, err := models.ParseDate(q.Get("endDate"))
		if err != nil {
			middleware.WriteError(w, r, apperror.InvalidInput("endDate must be YYYY-MM-DD"))
			return
		}

		conflicts, err := svc.Availability(r.Context(), mux.Vars(r)["id"], start, end)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		if conflicts == nil {
			conflicts = []booking.Conflict{}
		}

		middleware.WriteJSON(w, http.StatusOK, AvailabilityResponse{
			Available: len(conflicts) == 0,
			Conflicts: conflicts,
		})
	}
}

// DeleteListing removes a listing owned by the caller and cancels its
// reservations.
func DeleteListing(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.DeleteListing(r.Context(), mux.Vars(r)["id"], middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}

// ListingCalendar serves the owner an iCal feed of the listing's reserved
// dates. Calendar clients authenticate with the token query parameter.
func ListingCalendar(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := svc.Listing(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		if listing.OwnerID != middleware.CurrentUser(r.Context()).ID {
			middleware.WriteError(w, r, apperror.Forbidden("only the owner can export this calendar"))
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+listing.ID+`.ics"`)
		events := calendar.ReservationEvents(&listing.Listing, listing.Reservations)
		if err := calendar.Write(w, listing.Title, events, time.Now()); err != nil {
			slog.Default().Warn("failed to write calendar feed", "listing_id", listing.ID, "error", err)
		}
	}
}
