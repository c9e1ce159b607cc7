package packs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/packrescue/packrescue-backend/pkg/enums"
	"github.com/packrescue/packrescue-backend/pkg/pagination"
)

// CreatePackInput is the merchant-facing payload for publishing a pack.
type CreatePackInput struct {
	Title         string          `json:"title" validate:"required,min=3,max=140"`
	Description   *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Label         enums.PackLabel `json:"label" validate:"required"`
	PriceOriginal decimal.Decimal `json:"price_original" validate:"required"`
	PriceOffer    decimal.Decimal `json:"price_offer" validate:"required"`
	Stock         int             `json:"stock"`
	PickupStart   time.Time       `json:"pickup_start" validate:"required"`
	PickupEnd     time.Time       `json:"pickup_end" validate:"required"`
}

// Sort selects the public listing order.
type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
)

// ListFilters narrow the public pack listing.
type ListFilters struct {
	Label      *enums.PackLabel `json:"label,omitempty"`
	MerchantID *uuid.UUID       `json:"merchant_id,omitempty"`
	ActiveNow  bool             `json:"active_now,omitempty"`
}

// ListInput captures the public listing request. The cursor only applies to
// the newest sort; price-ordered pages fall back to plain limits.
type ListInput struct {
	Filters    ListFilters
	Sort       Sort
	Pagination pagination.Params
}

// ListResult is one page of packs plus the cursor for the next page, when
// one exists.
type ListResult struct {
	Packs      []PackView `json:"packs"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// PackView is the public shape of a pack.
type PackView struct {
	ID            uuid.UUID       `json:"id"`
	MerchantID    uuid.UUID       `json:"merchant_id"`
	Title         string          `json:"title"`
	Description   *string         `json:"description,omitempty"`
	Label         enums.PackLabel `json:"label"`
	PriceOriginal decimal.Decimal `json:"price_original"`
	PriceOffer    decimal.Decimal `json:"price_offer"`
	Stock         int             `json:"stock"`
	PickupStart   time.Time       `json:"pickup_start"`
	PickupEnd     time.Time       `json:"pickup_end"`
	IsActive      bool            `json:"is_active"`
}
