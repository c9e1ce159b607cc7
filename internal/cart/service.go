package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a buyer's cart ahead of checkout.
type Service interface {
	Add(ctx context.Context, userID, packID uuid.UUID) (*Snapshot, error)
	Remove(ctx context.Context, userID, packID uuid.UUID) (*Snapshot, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
}

// ItemDetail is one cart line joined with its pack.
type ItemDetail struct {
	PackID      uuid.UUID       `json:"pack_id"`
	Title       string          `json:"title"`
	PriceOffer  decimal.Decimal `json:"price_offer"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"is_active"`
	PickupStart time.Time       `json:"pickup_start"`
	PickupEnd   time.Time       `json:"pickup_end"`
}

// Snapshot is the cart as the buyer sees it. The pickup window is the
// intersection of every item's window; both bounds are nil when the cart
// is empty.
type Snapshot struct {
	CartID      uuid.UUID       `json:"cart_id"`
	MerchantID  *uuid.UUID      `json:"merchant_id,omitempty"`
	Items       []ItemDetail    `json:"items"`
	ItemCount   int             `json:"item_count"`
	Total       decimal.Decimal `json:"total"`
	WindowStart *time.Time      `json:"window_start,omitempty"`
	WindowEnd   *time.Time      `json:"window_end,omitempty"`
}

type service struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

// NewService wires the cart service.
func NewService(repo Repository, tx txRunner, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, now: now}, nil
}

func (s *service) Add(ctx context.Context, userID, packID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		pack, err := repo.FindPack(ctx, packID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
		}
		if err := s.checkAvailable(pack); err != nil {
			return err
		}

		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		items, err := repo.FindItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
		}
		if len(items) > 0 {
			// Adding a pack that is already in the cart is a no-op; the
			// current snapshot is returned as-is.
			for _, item := range items {
				if item.PackID == packID {
					snap, err = s.buildSnapshot(ctx, repo, cart)
					return err
				}
			}
			packs, err := repo.FindPacks(ctx, packIDsOf(items))
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart packs")
			}
			for _, existing := range packs {
				if existing.MerchantID != pack.MerchantID {
					return pkgerrors.New(pkgerrors.CodeValidation, "cart items must belong to a single merchant").
						WithDetails(map[string]any{"reason": "MERCHANT_MISMATCH"})
				}
			}
			if !windowsIntersect(append(packs, *pack)) {
				return pkgerrors.New(pkgerrors.CodeValidation, "pack pickup window does not overlap the cart")
			}
		}

		if err := repo.CreateItem(ctx, &models.CartItem{
			ID:       uuid.New(),
			CartID:   cart.ID,
			PackID:   packID,
			Quantity: 1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}

		snap, err = s.buildSnapshot(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) Remove(ctx context.Context, userID, packID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		// Removing a pack that is not in the cart is a no-op.
		if _, err := repo.DeleteItem(ctx, cart.ID, packID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		snap, err = s.buildSnapshot(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := repo.FindCartByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
		}
		return nil
	})
}

func (s *service) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	var snap *Snapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.ensureCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		snap, err = s.buildSnapshot(ctx, repo, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) ensureCart(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created := &models.Cart{ID: uuid.New(), UserID: userID}
	if err := repo.CreateCart(ctx, created); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) checkAvailable(pack *models.Pack) error {
	if !pack.IsActive {
		return pkgerrors.New(pkgerrors.CodeItemUnavailable, "pack is no longer offered")
	}
	if pack.Stock <= 0 {
		return pkgerrors.New(pkgerrors.CodeItemUnavailable, "pack is out of stock")
	}
	now := s.now()
	if now.Before(pack.PickupStart) {
		return pkgerrors.New(pkgerrors.CodeItemUnavailable, "pack pickup window has not opened yet")
	}
	if now.After(pack.PickupEnd) {
		return pkgerrors.New(pkgerrors.CodeItemUnavailable, "pack pickup window has passed")
	}
	return nil
}

func (s *service) buildSnapshot(ctx context.Context, repo Repository, cart *models.Cart) (*Snapshot, error) {
	items, err := repo.FindItems(ctx, cart.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	snap := &Snapshot{
		CartID: cart.ID,
		Items:  make([]ItemDetail, 0, len(items)),
		Total:  decimal.Zero,
	}
	if len(items) == 0 {
		return snap, nil
	}

	packs, err := repo.FindPacks(ctx, packIDsOf(items))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart packs")
	}
	byID := make(map[uuid.UUID]models.Pack, len(packs))
	for _, p := range packs {
		byID[p.ID] = p
	}

	var windowStart, windowEnd time.Time
	for _, item := range items {
		pack, ok := byID[item.PackID]
		if !ok {
			continue
		}
		snap.Items = append(snap.Items, ItemDetail{
			PackID:      pack.ID,
			Title:       pack.Title,
			PriceOffer:  pack.PriceOffer,
			Quantity:    item.Quantity,
			Stock:       pack.Stock,
			IsActive:    pack.IsActive,
			PickupStart: pack.PickupStart,
			PickupEnd:   pack.PickupEnd,
		})
		snap.Total = snap.Total.Add(pack.PriceOffer.Mul(decimal.NewFromInt(int64(item.Quantity))))
		if snap.MerchantID == nil {
			merchantID := pack.MerchantID
			snap.MerchantID = &merchantID
		}
		if windowStart.IsZero() || pack.PickupStart.After(windowStart) {
			windowStart = pack.PickupStart
		}
		if windowEnd.IsZero() || pack.PickupEnd.Before(windowEnd) {
			windowEnd = pack.PickupEnd
		}
	}
	snap.ItemCount = len(snap.Items)
	if !windowStart.IsZero() && !windowStart.After(windowEnd) {
		snap.WindowStart = &windowStart
		snap.WindowEnd = &windowEnd
	}
	return snap, nil
}

func packIDsOf(items []models.CartItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.PackID)
	}
	return ids
}

func windowsIntersect(packs []models.Pack) bool {
	var start, end time.Time
	for i, p := range packs {
		if i == 0 {
			start, end = p.PickupStart, p.PickupEnd
			continue
		}
		if p.PickupStart.After(start) {
			start = p.PickupStart
		}
		if p.PickupEnd.Before(end) {
			end = p.PickupEnd
		}
	}
	// Windows that touch at a single instant still intersect.
	return !start.After(end)
}
