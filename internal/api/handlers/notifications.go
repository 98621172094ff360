package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/inbox"
)

// ListNotifications returns the caller's notifications, newest first.
func ListNotifications(svc *inbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// CountUnseenNotifications returns {"count": n}.
func CountUnseenNotifications(svc *inbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.UnseenCount(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

// MarkNotificationsSeen marks every notification of the caller as read.
func MarkNotificationsSeen(svc *inbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updated, err := svc.MarkSeen(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]int64{"updated": updated})
	}
}

// DeleteNotification removes one of the caller's notifications.
func DeleteNotification(svc *inbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := svc.Delete(r.Context(), id, middleware.CurrentUser(r.Context()).ID); err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
	}
}

// SendNotification lets an admin notify any user.
func SendNotification(svc *inbox.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in inbox.SendInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		n, err := svc.Send(r.Context(), in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, n)
	}
}
