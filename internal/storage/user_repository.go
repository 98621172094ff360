package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository provides data access for users.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB, clk clock.Clock) *UserRepository {
	return &UserRepository{BaseRepository: NewBaseRepository(db, clk)}
}

// Create inserts a new user. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.ID = GenerateID()
	u.CreatedAt = r.Now()
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, image, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Image, u.Role, u.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID, or nil if none exists.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by email, or nil if none exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", email)
}

func (r *UserRepository) getOne(ctx context.Context, column, value string) (*models.User, error) {
	u := &models.User{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, image, role, created_at
		FROM users WHERE `+column+` = ?
	`, value).Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}
