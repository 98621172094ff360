package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// CancelledReservationRepository provides append-only access to the
// cancellation audit trail. Rows are never updated or deleted.
type CancelledReservationRepository struct {
	BaseRepository
}

// NewCancelledReservationRepository creates a new audit repository.
func NewCancelledReservationRepository(db *DB, clk clock.Clock) *CancelledReservationRepository {
	return &CancelledReservationRepository{BaseRepository: NewBaseRepository(db, clk)}
}

// Record copies the reservation's immutable fields into a new audit row.
// A second row for the same reservation yields ErrDuplicate.
func (r *CancelledReservationRepository) Record(ctx context.Context, res *models.Reservation, cancelledBy, reason string) (*models.CancelledReservation, error) {
	c := &models.CancelledReservation{
		ID:            GenerateID(),
		ReservationID: res.ID,
		UserID:        res.UserID,
		ListingID:     res.ListingID,
		StartDate:     res.StartDate,
		EndDate:       res.EndDate,
		TotalPrice:    res.TotalPrice,
		CancelledBy:   cancelledBy,
		Reason:        reason,
		CancelledAt:   r.Now(),
	}

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO cancelled_reservations (
			id, reservation_id, user_id, listing_id, start_date, end_date,
			total_price, cancelled_by, reason, cancelled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.ReservationID, c.UserID, c.ListingID, c.StartDate, c.EndDate,
		c.TotalPrice, c.CancelledBy, c.Reason, c.CancelledAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting cancelled reservation: %w", err)
	}

	return c, nil
}

// GetByReservationID returns the audit row for a reservation, or nil.
func (r *CancelledReservationRepository) GetByReservationID(ctx context.Context, reservationID string) (*models.CancelledReservation, error) {
	c := &models.CancelledReservation{}
	err := scanCancelled(r.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, reservation_id, user_id, listing_id, start_date, end_date,
		       total_price, cancelled_by, reason, cancelled_at
		FROM cancelled_reservations WHERE reservation_id = ?
	`, reservationID), c)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cancelled reservation: %w", err)
	}

	return c, nil
}

// ListByUser returns the cancellations of a guest's reservations, newest first.
func (r *CancelledReservationRepository) ListByUser(ctx context.Context, userID string) ([]models.CancelledReservation, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT id, reservation_id, user_id, listing_id, start_date, end_date,
		       total_price, cancelled_by, reason, cancelled_at
		FROM cancelled_reservations WHERE user_id = ?
		ORDER BY cancelled_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cancelled reservations: %w", err)
	}
	defer rows.Close()

	var out []models.CancelledReservation
	for rows.Next() {
		var c models.CancelledReservation
		if err := scanCancelled(rows, &c); err != nil {
			return nil, fmt.Errorf("scanning cancelled reservation: %w", err)
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

func scanCancelled(s rowScanner, c *models.CancelledReservation) error {
	return s.Scan(
		&c.ID, &c.ReservationID, &c.UserID, &c.ListingID, &c.StartDate, &c.EndDate,
		&c.TotalPrice, &c.CancelledBy, &c.Reason, &c.CancelledAt,
	)
}
