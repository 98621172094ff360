package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// ReservationRepository provides data access for reservations.
type ReservationRepository struct {
	BaseRepository
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *DB, clk clock.Clock) *ReservationRepository {
	return &ReservationRepository{BaseRepository: NewBaseRepository(db, clk)}
}

const reservationColumns = `r.id, r.listing_id, r.user_id, r.start_date, r.end_date, r.total_price,
	r.order_id, r.payment_id, r.status, r.created_at`

// Create inserts a new reservation. An empty status defaults to success.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	res.ID = GenerateID()
	res.CreatedAt = r.Now()
	if res.Status == "" {
		res.Status = models.ReservationStatusSuccess
	}

	_, err := r.Conn(ctx).ExecContext(ctx, `
		INSERT INTO reservations (
			id, listing_id, user_id, start_date, end_date, total_price,
			order_id, payment_id, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.ID, res.ListingID, res.UserID, res.StartDate, res.EndDate, res.TotalPrice,
		res.OrderID, res.PaymentID, res.Status, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by ID, or nil if none exists.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	res := &models.Reservation{}
	err := scanReservation(r.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations r WHERE r.id = ?
	`, id), res)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying reservation: %w", err)
	}

	return res, nil
}

// GetDetail loads a reservation together with its listing owner and guest.
func (r *ReservationRepository) GetDetail(ctx context.Context, id string) (*models.ReservationDetail, error) {
	d := &models.ReservationDetail{}
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT `+reservationColumns+`, l.title, l.owner_id, u.email, u.name
		FROM reservations r
		JOIN listings l ON l.id = r.listing_id
		JOIN users u ON u.id = r.user_id
		WHERE r.id = ?
	`, id).Scan(
		&d.ID, &d.ListingID, &d.UserID, &d.StartDate, &d.EndDate, &d.TotalPrice,
		&d.OrderID, &d.PaymentID, &d.Status, &d.CreatedAt,
		&d.ListingTitle, &d.HostID, &d.GuestEmail, &d.GuestName,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying reservation detail: %w", err)
	}

	return d, nil
}

// FindOverlapping returns the non-failed reservations on a listing whose
// inclusive [start, end] range intersects the given one.
func (r *ReservationRepository) FindOverlapping(ctx context.Context, listingID string, start, end models.Date) ([]models.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		WHERE r.listing_id = ?
		  AND r.status <> ?
		  AND r.start_date <= ?
		  AND r.end_date >= ?
		ORDER BY r.start_date
	`, listingID, models.ReservationStatusFailed, end, start)
}

// ListByListing returns every reservation on a listing ordered by start date.
func (r *ReservationRepository) ListByListing(ctx context.Context, listingID string) ([]models.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		WHERE r.listing_id = ?
		ORDER BY r.start_date
	`, listingID)
}

// ListDetailsByListing returns every reservation on a listing with guest identity.
func (r *ReservationRepository) ListDetailsByListing(ctx context.Context, listingID string) ([]models.ReservationDetail, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT `+reservationColumns+`, l.title, l.owner_id, u.email, u.name
		FROM reservations r
		JOIN listings l ON l.id = r.listing_id
		JOIN users u ON u.id = r.user_id
		WHERE r.listing_id = ?
		ORDER BY r.start_date
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("querying reservation details: %w", err)
	}
	defer rows.Close()

	var details []models.ReservationDetail
	for rows.Next() {
		var d models.ReservationDetail
		if err := rows.Scan(
			&d.ID, &d.ListingID, &d.UserID, &d.StartDate, &d.EndDate, &d.TotalPrice,
			&d.OrderID, &d.PaymentID, &d.Status, &d.CreatedAt,
			&d.ListingTitle, &d.HostID, &d.GuestEmail, &d.GuestName,
		); err != nil {
			return nil, fmt.Errorf("scanning reservation detail: %w", err)
		}
		details = append(details, d)
	}

	return details, rows.Err()
}

// ListByUser returns the reservations a guest has made, newest first.
func (r *ReservationRepository) ListByUser(ctx context.Context, userID string) ([]models.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC
	`, userID)
}

// ListByHost returns reservations on listings owned by hostID, newest first.
func (r *ReservationRepository) ListByHost(ctx context.Context, hostID string) ([]models.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		JOIN listings l ON l.id = r.listing_id
		WHERE l.owner_id = ?
		ORDER BY r.created_at DESC
	`, hostID)
}

// ListPendingBefore returns pending reservations created before cutoff.
func (r *ReservationRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	return r.list(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		WHERE r.status = ? AND r.created_at < ?
		ORDER BY r.created_at
	`, models.ReservationStatusPending, cutoff)
}

// UpdatePayment moves a pending reservation to a terminal payment status.
// It returns false when the reservation is missing or no longer pending.
func (r *ReservationRepository) UpdatePayment(ctx context.Context, id string, paymentID *string, status string) (bool, error) {
	result, err := r.Conn(ctx).ExecContext(ctx, `
		UPDATE reservations
		SET status = ?, payment_id = COALESCE(?, payment_id)
		WHERE id = ? AND status = ?
	`, status, paymentID, id, models.ReservationStatusPending)
	if err != nil {
		return false, fmt.Errorf("updating reservation payment: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Delete removes a reservation. It returns sql.ErrNoRows when nothing was
// deleted, which callers treat as already cancelled.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.Conn(ctx).ExecContext(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		var res models.Reservation
		if err := scanReservation(rows, &res); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	return reservations, rows.Err()
}

func scanReservation(s rowScanner, res *models.Reservation) error {
	return s.Scan(
		&res.ID, &res.ListingID, &res.UserID, &res.StartDate, &res.EndDate, &res.TotalPrice,
		&res.OrderID, &res.PaymentID, &res.Status, &res.CreatedAt,
	)
}
