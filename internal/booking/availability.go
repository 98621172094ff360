// Package booking implements the reservation lifecycle: overlap-checked
// creation, transactional cancellation with refund, payment confirmation,
// listing removal and expiry of abandoned checkouts.
package booking

import (
	"context"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// overlapFinder returns the non-failed reservations on a listing whose
// inclusive range intersects [start, end].
type overlapFinder interface {
	FindOverlapping(ctx context.Context, listingID string, start, end models.Date) ([]models.Reservation, error)
}

// AvailabilityChecker detects reservations that clash with a date range.
// Run with a ctx carrying a storage transaction, it reads through that
// transaction.
type AvailabilityChecker struct {
	reservations overlapFinder
}

// NewAvailabilityChecker creates a new availability checker.
func NewAvailabilityChecker(reservations overlapFinder) *AvailabilityChecker {
	return &AvailabilityChecker{reservations: reservations}
}

// Conflict describes an existing reservation that overlaps a requested range.
type Conflict struct {
	ReservationID string      `json:"reservationId"`
	StartDate     models.Date `json:"startDate"`
	EndDate       models.Date `json:"endDate"`
	OverlapStart  models.Date `json:"overlapStart"`
	OverlapEnd    models.Date `json:"overlapEnd"`
}

// Conflicts returns every overlapping reservation with the shared days.
// Boundaries are inclusive: a reservation ending on start clashes.
func (c *AvailabilityChecker) Conflicts(ctx context.Context, listingID string, start, end models.Date) ([]Conflict, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	existing, err := c.reservations.FindOverlapping(ctx, listingID, start, end)
	if err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, 0, len(existing))
	for _, res := range existing {
		overlapStart := start
		if res.StartDate.After(overlapStart) {
			overlapStart = res.StartDate
		}
		overlapEnd := end
		if end.After(res.EndDate) {
			overlapEnd = res.EndDate
		}

		conflicts = append(conflicts, Conflict{
			ReservationID: res.ID,
			StartDate:     res.StartDate,
			EndDate:       res.EndDate,
			OverlapStart:  overlapStart,
			OverlapEnd:    overlapEnd,
		})
	}

	return conflicts, nil
}

// HasOverlap reports whether any non-failed reservation intersects the range.
func (c *AvailabilityChecker) HasOverlap(ctx context.Context, listingID string, start, end models.Date) (bool, error) {
	conflicts, err := c.Conflicts(ctx, listingID, start, end)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

func validateRange(start, end models.Date) error {
	if start.IsZero() || end.IsZero() {
		return apperror.Validation("start and end dates are required", nil)
	}
	if start.After(end) {
		return apperror.Validation("start date must not be after end date", map[string]any{
			"startDate": start.String(),
			"endDate":   end.String(),
		})
	}
	return nil
}
