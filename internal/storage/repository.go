package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rental-marketplace/backend/internal/clock"
)

// Queryable represents a database connection that can execute queries.
// Both *sql.DB and *sql.Tx implement this interface.
type Queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	db    *DB
	clock clock.Clock
}

// NewBaseRepository creates a new base repository with the given database connection.
func NewBaseRepository(db *DB, clk clock.Clock) BaseRepository {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return BaseRepository{db: db, clock: clk}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Conn returns the transaction in ctx if there is one, otherwise the pool.
func (r *BaseRepository) Conn(ctx context.Context) Queryable {
	return r.db.conn(ctx)
}

// Now returns the current time in UTC for database timestamps.
func (r *BaseRepository) Now() time.Time {
	return r.clock.Now().UTC()
}

// GenerateID creates a new random UUID for use as a primary key.
func GenerateID() string {
	return uuid.NewString()
}

// Repositories bundles every repository over one database.
type Repositories struct {
	Users                 *UserRepository
	Listings              *ListingRepository
	Reservations          *ReservationRepository
	CancelledReservations *CancelledReservationRepository
	Wallets               *WalletRepository
	Notifications         *NotificationRepository
	Conversations         *ConversationRepository
}

// NewRepositories wires all repositories to db.
func NewRepositories(db *DB, clk clock.Clock) *Repositories {
	return &Repositories{
		Users:                 NewUserRepository(db, clk),
		Listings:              NewListingRepository(db, clk),
		Reservations:          NewReservationRepository(db, clk),
		CancelledReservations: NewCancelledReservationRepository(db, clk),
		Wallets:               NewWalletRepository(db, clk),
		Notifications:         NewNotificationRepository(db, clk),
		Conversations:         NewConversationRepository(db, clk),
	}
}
