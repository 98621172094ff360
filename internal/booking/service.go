package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/clock"
	"github.com/rental-marketplace/backend/internal/events"
	"github.com/rental-marketplace/backend/internal/realtime"
	"github.com/rental-marketplace/backend/internal/storage"
	"github.com/rental-marketplace/backend/internal/storage/models"
	"github.com/rental-marketplace/backend/internal/validation"
	"github.com/rental-marketplace/backend/internal/wallet"
)

// DatesUnavailableMessage is returned verbatim when a booking overlaps an
// existing reservation. Clients match on it.
const DatesUnavailableMessage = "This property is already reserved for these dates."

// Cancellation reasons written to the audit trail.
const (
	ReasonGuestCancelled = "Cancelled by guest"
	ReasonHostCancelled  = "Cancelled by host: refund issued to guest"
	ReasonListingRemoved = "Listing removed by host"
)

// Deps are the collaborators of a Service.
type Deps struct {
	DB        *storage.DB
	Repos     *storage.Repositories
	Ledger    *wallet.Ledger
	Notifier  *realtime.Notifier
	Events    *events.Emitter
	Validator *validation.Validator
	Clock     clock.Clock
	Log       *slog.Logger
}

// Options selects policy choices.
type Options struct {
	// RefundOnListingDelete credits every affected guest when a host
	// deletes a listing. When false guests are only notified.
	RefundOnListingDelete bool
}

// Service owns every state change of a reservation. Each operation commits
// in one transaction; realtime pushes and domain events follow the commit
// and never undo it.
type Service struct {
	db           *storage.DB
	repos        *storage.Repositories
	availability *AvailabilityChecker
	ledger       *wallet.Ledger
	notifier     *realtime.Notifier
	events       *events.Emitter
	validate     *validation.Validator
	clock        clock.Clock
	log          *slog.Logger
	opts         Options
}

// NewService creates a new reservation service.
func NewService(d Deps, opts Options) *Service {
	if d.Validator == nil {
		d.Validator = validation.New()
	}
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	return &Service{
		db:           d.DB,
		repos:        d.Repos,
		availability: NewAvailabilityChecker(d.Repos.Reservations),
		ledger:       d.Ledger,
		notifier:     d.Notifier,
		events:       d.Events,
		validate:     d.Validator,
		clock:        d.Clock,
		log:          d.Log,
		opts:         opts,
	}
}

// CreateInput is the body of a booking request.
type CreateInput struct {
	ListingID  string           `json:"listingId" validate:"required"`
	StartDate  *models.Date     `json:"startDate" validate:"required"`
	EndDate    *models.Date     `json:"endDate" validate:"required"`
	TotalPrice *decimal.Decimal `json:"totalPrice" validate:"required,gte=0"`
	OrderID    string           `json:"orderId" validate:"required"`
	PaymentID  *string          `json:"paymentId"`
	Status     string           `json:"status" validate:"omitempty,oneof=pending success failed"`
}

// Create books a listing for guestID. The overlap check and the insert run
// in one write transaction, so of two concurrent requests for clashing
// dates exactly one succeeds.
func (s *Service) Create(ctx context.Context, guestID string, in CreateInput) (*models.ListingWithReservations, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}
	if err := validateRange(*in.StartDate, *in.EndDate); err != nil {
		return nil, err
	}

	res := &models.Reservation{
		ListingID:  in.ListingID,
		UserID:     guestID,
		StartDate:  *in.StartDate,
		EndDate:    *in.EndDate,
		TotalPrice: *in.TotalPrice,
		OrderID:    in.OrderID,
		PaymentID:  in.PaymentID,
		Status:     in.Status,
	}

	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		listing, err := s.repos.Listings.GetByID(ctx, in.ListingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return apperror.NotFound("listing")
		}

		overlap, err := s.availability.HasOverlap(ctx, res.ListingID, res.StartDate, res.EndDate)
		if err != nil {
			return err
		}
		if overlap {
			return apperror.Conflict(DatesUnavailableMessage)
		}

		return s.repos.Reservations.Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation created",
		"reservation_id", res.ID,
		"listing_id", res.ListingID,
		"start", res.StartDate.String(),
		"end", res.EndDate.String(),
		"status", res.Status,
	)
	s.events.Emit(ctx, events.ReservationCreated, res.ListingID, res)

	return s.Listing(ctx, res.ListingID)
}

// CancelResult reports the refund made by a cancellation.
type CancelResult struct {
	Success        bool            `json:"success"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	NewBalance     decimal.Decimal `json:"newBalance"`
}

// Cancel refunds a paid reservation in full, records the audit row and
// deletes the reservation. Pending and failed reservations were never paid
// and cancel with a zero refund. Only the guest or the listing's host may cancel. When the
// host cancels, the guest also gets an inbox notification. Cancelling a
// reservation that is already gone is a not-found error and refunds nothing.
func (s *Service) Cancel(ctx context.Context, reservationID, actingUserID string) (*CancelResult, error) {
	var (
		detail *models.ReservationDetail
		note   *models.Notification
		result *CancelResult
	)

	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		d, err := s.repos.Reservations.GetDetail(ctx, reservationID)
		if err != nil {
			return err
		}
		if d == nil {
			return apperror.NotFound("reservation")
		}

		byGuest := actingUserID == d.UserID
		if !byGuest && actingUserID != d.HostID {
			return apperror.Forbidden("only the guest or the host can cancel this reservation")
		}
		reason := ReasonGuestCancelled
		if !byGuest {
			reason = ReasonHostCancelled
		}

		w, refunded, err := s.refund(ctx, &d.Reservation, "Refund for cancelled reservation "+d.ID)
		if err != nil {
			return err
		}

		if _, err := s.repos.CancelledReservations.Record(ctx, &d.Reservation, actingUserID, reason); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperror.NotFound("reservation")
			}
			return err
		}

		if err := s.repos.Reservations.Delete(ctx, d.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("reservation")
			}
			return err
		}

		if !byGuest {
			msg := fmt.Sprintf("Your reservation at %s from %s to %s was cancelled by the host.",
				d.ListingTitle, d.StartDate, d.EndDate)
			if refunded.IsPositive() {
				msg += fmt.Sprintf(" %s has been refunded to your wallet.", refunded.StringFixed(2))
			}
			note = &models.Notification{UserID: d.UserID, Message: msg, Type: models.NotificationInfo}
			if err := s.repos.Notifications.Create(ctx, note); err != nil {
				return err
			}
		}

		detail = d
		result = &CancelResult{
			Success:        true,
			RefundedAmount: refunded,
			NewBalance:     w.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation cancelled",
		"reservation_id", detail.ID,
		"listing_id", detail.ListingID,
		"cancelled_by", actingUserID,
		"status", detail.Status,
		"refunded", result.RefundedAmount.String(),
	)

	if note != nil {
		s.notifier.NotificationCreated(ctx, detail.GuestEmail, note)
	}
	s.events.Emit(ctx, events.ReservationCancelled, detail.ListingID, map[string]any{
		"reservationId":  detail.ID,
		"listingId":      detail.ListingID,
		"guestId":        detail.UserID,
		"cancelledBy":    actingUserID,
		"refundedAmount": result.RefundedAmount,
	})

	return result, nil
}

// refund credits the refundable amount of res to its guest and returns the
// wallet with the amount credited. Free or unpaid bookings credit nothing
// but still materialise the wallet.
func (s *Service) refund(ctx context.Context, res *models.Reservation, description string) (*models.Wallet, decimal.Decimal, error) {
	amount := refundable(res)
	if !amount.IsPositive() {
		w, err := s.ledger.GetOrCreate(ctx, res.UserID)
		return w, decimal.Zero, err
	}
	w, err := s.ledger.Credit(ctx, res.UserID, amount, description)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return w, amount, nil
}

// refundable is the total price of a paid reservation. Only a successful
// payment moved money, so pending and failed reservations refund nothing.
func refundable(res *models.Reservation) decimal.Decimal {
	if res.Status != models.ReservationStatusSuccess {
		return decimal.Zero
	}
	return res.TotalPrice
}

// PaymentInput is the payment gateway's verdict relayed by the guest.
type PaymentInput struct {
	PaymentID *string `json:"paymentId"`
	Status    string  `json:"status" validate:"required,oneof=success failed"`
}

// UpdatePaymentStatus settles a pending reservation. A failed payment
// releases the dates for other guests.
func (s *Service) UpdatePaymentStatus(ctx context.Context, reservationID, actingUserID string, in PaymentInput) (*models.Reservation, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}

	var res *models.Reservation
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		current, err := s.repos.Reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperror.NotFound("reservation")
		}
		if current.UserID != actingUserID {
			return apperror.Forbidden("only the guest can update the payment of this reservation")
		}
		if current.Status != models.ReservationStatusPending {
			return apperror.Conflict(fmt.Sprintf("reservation payment is already %s", current.Status))
		}

		updated, err := s.repos.Reservations.UpdatePayment(ctx, reservationID, in.PaymentID, in.Status)
		if err != nil {
			return err
		}
		if !updated {
			return apperror.Conflict("reservation is no longer pending")
		}

		res, err = s.repos.Reservations.GetByID(ctx, reservationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation payment updated", "reservation_id", res.ID, "status", res.Status)
	s.events.Emit(ctx, events.ReservationPaid, res.ListingID, res)

	return res, nil
}

// DeleteListingResult summarises the reservations removed with a listing.
type DeleteListingResult struct {
	CancelledReservations int             `json:"cancelledReservations"`
	NotifiedGuests        int             `json:"notifiedGuests"`
	Refunded              decimal.Decimal `json:"refunded"`
}

type guestNotice struct {
	email string
	note  *models.Notification
}

// DeleteListing removes a listing and, through the foreign key cascade, its
// reservations. Every guest with a live reservation is notified once. With
// RefundOnListingDelete each live reservation is also audited and each paid
// one refunded.
func (s *Service) DeleteListing(ctx context.Context, listingID, actingUserID string) (*DeleteListingResult, error) {
	result := &DeleteListingResult{Refunded: decimal.Zero}
	var notices []guestNotice

	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		listing, err := s.repos.Listings.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if listing == nil {
			return apperror.NotFound("listing")
		}
		if listing.OwnerID != actingUserID {
			return apperror.Forbidden("only the owner can delete this listing")
		}

		details, err := s.repos.Reservations.ListDetailsByListing(ctx, listingID)
		if err != nil {
			return err
		}

		refunds := make(map[string]decimal.Decimal)
		var guests []models.ReservationDetail
		for _, d := range details {
			if d.Status == models.ReservationStatusFailed {
				continue
			}
			result.CancelledReservations++

			if _, seen := refunds[d.UserID]; !seen {
				refunds[d.UserID] = decimal.Zero
				guests = append(guests, d)
			}

			if !s.opts.RefundOnListingDelete {
				continue
			}
			_, amount, err := s.refund(ctx, &d.Reservation, "Refund for removed listing "+listing.Title)
			if err != nil {
				return err
			}
			if _, err := s.repos.CancelledReservations.Record(ctx, &d.Reservation, actingUserID, ReasonListingRemoved); err != nil {
				return err
			}
			refunds[d.UserID] = refunds[d.UserID].Add(amount)
			result.Refunded = result.Refunded.Add(amount)
		}

		for _, g := range guests {
			msg := fmt.Sprintf("The listing %s was removed by its host and your reservation was cancelled.", listing.Title)
			if amount := refunds[g.UserID]; amount.IsPositive() {
				msg += fmt.Sprintf(" %s has been refunded to your wallet.", amount.StringFixed(2))
			}
			note := &models.Notification{UserID: g.UserID, Message: msg, Type: models.NotificationInfo}
			if err := s.repos.Notifications.Create(ctx, note); err != nil {
				return err
			}
			notices = append(notices, guestNotice{email: g.GuestEmail, note: note})
		}

		if err := s.repos.Listings.Delete(ctx, listingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("listing")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.NotifiedGuests = len(notices)

	s.log.Info("listing deleted",
		"listing_id", listingID,
		"cancelled_reservations", result.CancelledReservations,
		"refunded", result.Refunded.String(),
	)

	for _, n := range notices {
		s.notifier.NotificationCreated(ctx, n.email, n.note)
	}
	s.events.Emit(ctx, events.ListingDeleted, listingID, map[string]any{
		"listingId":             listingID,
		"cancelledReservations": result.CancelledReservations,
		"refunded":              result.Refunded,
	})

	return result, nil
}

// ExpirePending marks pending reservations older than olderThan as failed,
// releasing their dates. It returns the number expired.
func (s *Service) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan)

	pending, err := s.repos.Reservations.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing pending reservations: %w", err)
	}

	expired := 0
	for _, res := range pending {
		ok, err := s.repos.Reservations.UpdatePayment(ctx, res.ID, nil, models.ReservationStatusFailed)
		if err != nil {
			s.log.Error("failed to expire reservation", "reservation_id", res.ID, "error", err)
			continue
		}
		if !ok {
			// Settled between the list and the update.
			continue
		}
		expired++
		s.events.Emit(ctx, events.ReservationExpired, res.ListingID, map[string]any{
			"reservationId": res.ID,
			"listingId":     res.ListingID,
			"createdAt":     res.CreatedAt,
		})
	}

	return expired, nil
}

// Listing returns a listing with its reservations.
func (s *Service) Listing(ctx context.Context, listingID string) (*models.ListingWithReservations, error) {
	listing, err := s.repos.Listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperror.NotFound("listing")
	}

	reservations, err := s.repos.Reservations.ListByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}

	return &models.ListingWithReservations{Listing: *listing, Reservations: reservations}, nil
}

// Availability reports whether [start, end] is free on a listing.
func (s *Service) Availability(ctx context.Context, listingID string, start, end models.Date) ([]Conflict, error) {
	listing, err := s.repos.Listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, apperror.NotFound("listing")
	}
	return s.availability.Conflicts(ctx, listingID, start, end)
}

// GuestReservations returns the trips booked by userID.
func (s *Service) GuestReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	return nonNil(s.repos.Reservations.ListByUser(ctx, userID))
}

// HostReservations returns reservations on listings owned by userID.
func (s *Service) HostReservations(ctx context.Context, userID string) ([]models.Reservation, error) {
	return nonNil(s.repos.Reservations.ListByHost(ctx, userID))
}

func nonNil(list []models.Reservation, err error) ([]models.Reservation, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Reservation{}
	}
	return list, nil
}
