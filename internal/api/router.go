// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-marketplace/backend/internal/api/handlers"
	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/auth"
	"github.com/rental-marketplace/backend/internal/booking"
	"github.com/rental-marketplace/backend/internal/inbox"
	"github.com/rental-marketplace/backend/internal/messaging"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/validation"
	"github.com/rental-marketplace/backend/internal/wallet"
)

// Deps are the services the router dispatches to.
type Deps struct {
	DB        *storage.DB
	Repos     *storage.Repositories
	Hub       *realtime.Hub
	Tokens    *auth.Tokens
	Booking   *booking.Service
	Ledger    *wallet.Ledger
	Inbox     *inbox.Service
	Messaging *messaging.Service
	Validator *validation.Validator
	Log       *slog.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	if d.Validator == nil {
		d.Validator = validation.New()
	}

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(d.Log))
	r.Use(middleware.ErrorRecovery(d.Log))

	api := r.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", handlers.HealthCheck(d.DB, hubStats(d.Hub))).Methods("GET")
	api.HandleFunc("/users", handlers.CreateUser(d.Repos.Users, d.Validator)).Methods("POST")
	api.HandleFunc("/listings", handlers.ListListings(d.Booking)).Methods("GET")
	api.HandleFunc("/listings/{id}", handlers.GetListing(d.Booking)).Methods("GET")
	api.HandleFunc("/listings/{id}/availability", handlers.GetListingAvailability(d.Booking)).Methods("GET")

	// Authenticated endpoints
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(d.Tokens, d.Repos.Users, d.Log))

	authed.HandleFunc("/ws", handlers.WebSocketUpgrade(d.Hub, d.Messaging, d.Log)).Methods("GET")

	authed.HandleFunc("/reservations", handlers.CreateReservation(d.Booking)).Methods("POST")
	authed.HandleFunc("/reservations", handlers.ListTrips(d.Booking)).Methods("GET")
	authed.HandleFunc("/reservations/host", handlers.ListHostReservations(d.Booking)).Methods("GET")
	authed.HandleFunc("/reservations/{id}", handlers.CancelReservation(d.Booking)).Methods("DELETE")
	authed.HandleFunc("/reservations/{id}/payment", handlers.UpdateReservationPayment(d.Booking)).Methods("PATCH")

	authed.HandleFunc("/listings", handlers.CreateListing(d.Booking)).Methods("POST")
	authed.HandleFunc("/listings/{id}", handlers.DeleteListing(d.Booking)).Methods("DELETE")
	authed.HandleFunc("/listings/{id}/calendar.ics", handlers.ListingCalendar(d.Booking)).Methods("GET")

	authed.HandleFunc("/wallet", handlers.GetWallet(d.Ledger)).Methods("GET")

	authed.HandleFunc("/notifications", handlers.ListNotifications(d.Inbox)).Methods("GET")
	authed.HandleFunc("/notifications/unseen", handlers.CountUnseenNotifications(d.Inbox)).Methods("GET")
	authed.HandleFunc("/notifications/seen", handlers.MarkNotificationsSeen(d.Inbox)).Methods("POST")
	authed.HandleFunc("/notifications/{id}", handlers.DeleteNotification(d.Inbox)).Methods("DELETE")

	authed.HandleFunc("/conversations", handlers.StartConversation(d.Messaging)).Methods("POST")
	authed.HandleFunc("/conversations", handlers.ListConversations(d.Messaging)).Methods("GET")
	authed.HandleFunc("/conversations/{id}/messages", handlers.ListMessages(d.Messaging)).Methods("GET")
	authed.HandleFunc("/conversations/{id}/messages", handlers.SendMessage(d.Messaging)).Methods("POST")

	// Admin endpoints
	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/notifications", handlers.SendNotification(d.Inbox)).Methods("POST")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteRaw(w, http.StatusNotFound, middleware.ErrorResponse{
			Error: "route not found",
			Code:  apperror.CodeNotFound,
		})
	})

	return r
}

// hubStats avoids handing the health handler a typed nil.
func hubStats(hub *realtime.Hub) handlers.HubStats {
	if hub == nil {
		return nil
	}
	return hub
}
