// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/logger"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// NewTestDB opens a migrated SQLite database in a per-test temp directory.
func NewTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := storage.RunMigrations(context.Background(), db, logger.Discard()); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	return db
}

// NewTestRepos returns a migrated database and repositories over it.
func NewTestRepos(t *testing.T, clk clock.Clock) (*storage.DB, *storage.Repositories) {
	t.Helper()
	db := NewTestDB(t)
	return db, storage.NewRepositories(db, clk)
}

// MustExec runs raw SQL, typically to install failure-injection triggers.
func MustExec(t *testing.T, db *storage.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// InsertUser creates a user with the given name; email is derived from it.
func InsertUser(t *testing.T, repos *storage.Repositories, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com"}
	if err := repos.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return u
}

// InsertAdmin creates a user with the admin role.
func InsertAdmin(t *testing.T, repos *storage.Repositories, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: models.RoleAdmin}
	if err := repos.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	return u
}

// InsertListing creates a listing owned by ownerID at the given nightly price.
func InsertListing(t *testing.T, repos *storage.Repositories, ownerID string, price int64) *models.Listing {
	t.Helper()
	l := &models.Listing{
		OwnerID:  ownerID,
		Title:    "Seaside cabin",
		Category: "Beach",
		Price:    decimal.NewFromInt(price),
	}
	if err := repos.Listings.Create(context.Background(), l); err != nil {
		t.Fatalf("insert listing: %v", err)
	}
	return l
}

// InsertReservation books [start, end] on a listing for a guest.
func InsertReservation(t *testing.T, repos *storage.Repositories, listingID, guestID, start, end string, total int64, status string) *models.Reservation {
	t.Helper()
	res := &models.Reservation{
		ListingID:  listingID,
		UserID:     guestID,
		StartDate:  Date(t, start),
		EndDate:    Date(t, end),
		TotalPrice: decimal.NewFromInt(total),
		OrderID:    "order-" + start,
		Status:     status,
	}
	if err := repos.Reservations.Create(context.Background(), res); err != nil {
		t.Fatalf("insert reservation: %v", err)
	}
	return res
}

// Date parses YYYY-MM-DD or fails the test.
func Date(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}
