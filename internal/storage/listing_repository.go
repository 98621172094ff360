package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// ListingRepository provides data access for listings.
type ListingRepository struct {
	BaseRepository
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *DB, clk clock.Clock) *ListingRepository {
	return &ListingRepository{BaseRepository: NewBaseRepository(db, clk)}
}

const listingColumns = `id, owner_id, title, description, category, image, price, offer_price, created_at`

// Create inserts a new listing.
func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	l.ID = GenerateID()
	l.CreatedAt = r.Now()

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.OwnerID, l.Title, l.Description, l.Category, l.Image,
		l.Price, nullableDecimal(l.OfferPrice), l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting listing: %w", err)
	}

	return nil
}

// GetByID retrieves a listing by ID, or nil if none exists.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	row := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE id = ?
	`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing: %w", err)
	}

	return l, nil
}

// List retrieves listings newest first, optionally filtered by category.
func (r *ListingRepository) List(ctx context.Context, category string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1=1`
	var args []any
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, *l)
	}

	return listings, rows.Err()
}

// Delete removes a listing. Its reservations go with it via ON DELETE CASCADE.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.Conn(ctx).ExecContext(ctx, "DELETE FROM listings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*models.Listing, error) {
	l := &models.Listing{}
	var offer decimal.NullDecimal
	if err := s.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category, &l.Image,
		&l.Price, &offer, &l.CreatedAt,
	); err != nil {
		return nil, err
	}
	if offer.Valid {
		l.OfferPrice = &offer.Decimal
	}
	return l, nil
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
