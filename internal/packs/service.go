package packs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/pagination"
)

// Service covers the merchant-facing pack lifecycle and the public listing.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, input CreatePackInput) (*models.Pack, error)
	ListForMerchant(ctx context.Context, ownerID uuid.UUID) ([]models.Pack, error)
	ListPublic(ctx context.Context, input ListInput) (*ListResult, error)
	Delete(ctx context.Context, ownerID, packID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the pack service.
func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pack repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, input CreatePackInput) (*models.Pack, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	merchant, err := s.repo.FindMerchantByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no merchant profile for this user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}

	pack := &models.Pack{
		ID:            uuid.New(),
		MerchantID:    merchant.ID,
		Title:         input.Title,
		Description:   input.Description,
		Label:         input.Label,
		PriceOriginal: input.PriceOriginal,
		PriceOffer:    input.PriceOffer,
		Stock:         input.Stock,
		PickupStart:   input.PickupStart.UTC(),
		PickupEnd:     input.PickupEnd.UTC(),
		IsActive:      true,
	}
	if err := s.repo.CreatePack(ctx, pack); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pack")
	}
	return pack, nil
}

func (s *service) ListForMerchant(ctx context.Context, ownerID uuid.UUID) ([]models.Pack, error) {
	merchant, err := s.repo.FindMerchantByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no merchant profile for this user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	packs, err := s.repo.ListByMerchant(ctx, merchant.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packs")
	}
	return packs, nil
}

func (s *service) ListPublic(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.Sort == "" {
		input.Sort = SortNewest
	}
	if input.Pagination.Cursor != "" {
		if _, err := pagination.ParseCursor(input.Pagination.Cursor); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid pagination cursor")
		}
	}

	packs, err := s.repo.ListPublic(ctx, input, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packs")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	result := &ListResult{}
	for i, pack := range packs {
		if i == limit {
			if input.Sort == SortNewest {
				last := packs[limit-1]
				result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			}
			break
		}
		result.Packs = append(result.Packs, toView(pack))
	}
	return result, nil
}

func (s *service) Delete(ctx context.Context, ownerID, packID uuid.UUID) error {
	merchant, err := s.repo.FindMerchantByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "no merchant profile for this user")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}

	pack, err := s.repo.FindPack(ctx, packID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
	}
	if pack.MerchantID != merchant.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "pack belongs to another merchant")
	}

	// Orders keep their pack row for history; a referenced pack can only be
	// deactivated.
	references, err := s.repo.CountOrdersForPack(ctx, packID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pack orders")
	}
	if references > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "pack has orders; deactivate it instead").
			WithDetails(map[string]any{"order_count": references})
	}

	if err := s.repo.DeletePack(ctx, packID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete pack")
	}
	return nil
}

func validateCreateInput(input CreatePackInput) error {
	if !input.Label.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown pack label")
	}
	if input.PriceOriginal.IsNegative() || input.PriceOffer.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}
	if input.PriceOffer.GreaterThan(input.PriceOriginal) {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer price must not exceed the original price")
	}
	if input.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if !input.PickupEnd.After(input.PickupStart) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup window must end after it starts")
	}
	return nil
}

func toView(pack models.Pack) PackView {
	return PackView{
		ID:            pack.ID,
		MerchantID:    pack.MerchantID,
		Title:         pack.Title,
		Description:   pack.Description,
		Label:         pack.Label,
		PriceOriginal: pack.PriceOriginal,
		PriceOffer:    pack.PriceOffer,
		Stock:         pack.Stock,
		PickupStart:   pack.PickupStart,
		PickupEnd:     pack.PickupEnd,
		IsActive:      pack.IsActive,
	}
}
