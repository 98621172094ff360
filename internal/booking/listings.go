package booking

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rental-marketplace/backend/internal/apperror"
	"github.com/rental-marketplace/backend/internal/storage/models"
)

// ListingInput is the body of a create-listing request.
type ListingInput struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=5000"`
	Category    string           `json:"category" validate:"required"`
	Image       *string          `json:"imageSrc" validate:"omitempty,url"`
	Price       *decimal.Decimal `json:"price" validate:"required,gt=0"`
	OfferPrice  *decimal.Decimal `json:"offerPrice" validate:"omitempty,gt=0"`
}

// CreateListing publishes a new listing owned by ownerID. An offer price
// must undercut the regular price.
func (s *Service) CreateListing(ctx context.Context, ownerID string, in ListingInput) (*models.Listing, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}
	if in.OfferPrice != nil && !in.OfferPrice.LessThan(*in.Price) {
		return nil, apperror.Validation("offerPrice must be lower than price", map[string]any{
			"offerPrice": in.OfferPrice.String(),
			"price":      in.Price.String(),
		})
	}

	owner, err := s.repos.Users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperror.NotFound("user")
	}

	listing := &models.Listing{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Image:       in.Image,
		Price:       *in.Price,
		OfferPrice:  in.OfferPrice,
	}
	if err := s.repos.Listings.Create(ctx, listing); err != nil {
		return nil, err
	}

	s.log.Info("listing created", "listing_id", listing.ID, "owner_id", ownerID)
	return listing, nil
}

// Listings returns listings newest first, optionally filtered by category.
func (s *Service) Listings(ctx context.Context, category string) ([]models.Listing, error) {
	list, err := s.repos.Listings.List(ctx, category)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Listing{}
	}
	return list, nil
}
