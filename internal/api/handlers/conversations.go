package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/messaging"
)

// StartConversation returns the 1:1 conversation between the caller and
// another user, creating it if needed.
func StartConversation(svc *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in messaging.StartInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		conv, err := svc.GetOrCreate(r.Context(), middleware.CurrentUser(r.Context()).ID, in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, conv)
	}
}

// ListConversations returns the caller's conversations.
func ListConversations(svc *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, list)
	}
}

// ListMessages returns the messages of a conversation the caller is part of.
func ListMessages(svc *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := svc.Messages(r.Context(), mux.Vars(r)["id"], middleware.CurrentUser(r.Context()).ID)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, msgs)
	}
}

// SendMessage posts a message to a conversation.
func SendMessage(svc *messaging.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in messaging.SendInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		msg, err := svc.Send(r.Context(), mux.Vars(r)["id"], middleware.CurrentUser(r.Context()).ID, in)
		if err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusCreated, msg)
	}
}
