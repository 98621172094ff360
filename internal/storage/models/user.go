package models

import "time"

// User is a marketplace account. Authentication happens elsewhere; this
// record only carries the identity referenced by listings and reservations.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     *string   `json:"image,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
