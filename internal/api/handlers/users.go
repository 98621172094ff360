package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rental-marketplace/backend/internal/api/middleware"
	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
	"github.com/rental-marketplace/backend/internal/validation"
)

// UserCreator persists user records.
type UserCreator interface {
	Create(ctx context.Context, u *models.User) error
}

// UserInput is the body of a user bootstrap request.
type UserInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email string  `json:"email" validate:"required,email"`
	Image *string `json:"image" validate:"omitempty,url"`
}

// CreateUser registers a user record. Accounts always start with the user
// role; admins are promoted out of band.
func CreateUser(users UserCreator, v *validation.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in UserInput
		if err := middleware.DecodeJSON(r, &in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}
		in.Email = strings.ToLower(strings.TrimSpace(in.Email))
		if err := v.Struct(&in); err != nil {
			middleware.WriteError(w, r, err)
			return
		}

		user := &models.User{Name: in.Name, Email: in.Email, Image: in.Image, Role: models.RoleUser}
		if err := users.Create(r.Context(), user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				middleware.WriteError(w, r, apperror.Conflict("email already registered"))
				return
			}
			middleware.WriteError(w, r, err)
			return
		}

		middleware.WriteJSON(w, http.StatusCreated, user)
	}
}
