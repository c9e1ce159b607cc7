package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the reservation lifecycle: reserve, checkout, cancel, redeem,
// and the payment-driven paid transition.
type Service interface {
	ReserveSingle(ctx context.Context, userID, packID uuid.UUID) (*ReserveResult, error)
	CheckoutCart(ctx context.Context, userID uuid.UUID) (*CheckoutResult, error)
	Cancel(ctx context.Context, actorUserID, orderID uuid.UUID) error
	Redeem(ctx context.Context, actorUserID, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}

// ReserveResult reports the order created by a single-pack reservation and
// the stock remaining after the decrement.
type ReserveResult struct {
	OrderID  uuid.UUID
	NewStock int
}

// CheckoutResult reports the orders created (or matched) by a cart checkout.
type CheckoutResult struct {
	OrderID  uuid.UUID
	OrderIDs []uuid.UUID
	Created  bool
}

type service struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

// NewService builds a reservation service. A nil now falls back to time.Now.
func NewService(repo Repository, tx txRunner, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservation repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, now: now}, nil
}

func (s *service) ReserveSingle(ctx context.Context, userID, packID uuid.UUID) (*ReserveResult, error) {
	var result ReserveResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		pack, err := repo.FindPackForUpdate(ctx, packID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "pack not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
		}

		if !pack.IsActive || pack.Stock <= 0 {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "pack has no stock left").
				WithDetails(map[string]any{"pack_id": pack.ID})
		}
		if now.After(pack.PickupEnd) {
			return pkgerrors.New(pkgerrors.CodeWindowExpired, "pickup window already ended").
				WithDetails(map[string]any{"pickup_end": pack.PickupEnd})
		}

		active, err := repo.HasActiveOrder(ctx, userID, packID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing reservation")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeDuplicateOrder, "pack already reserved by this user")
		}

		decremented, err := repo.DecrementStock(ctx, packID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !decremented {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "pack has no stock left")
		}

		order := &models.Order{
			ID:               uuid.New(),
			UserID:           userID,
			PackID:           packID,
			PricePaid:        pack.PriceOffer,
			Status:           enums.OrderStatusPending,
			PaymentMethod:    enums.PaymentMethodMercadoPago,
			StockDecremented: true,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		result = ReserveResult{OrderID: order.ID, NewStock: pack.Stock - 1}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) CheckoutCart(ctx context.Context, userID uuid.UUID) (*CheckoutResult, error) {
	var result CheckoutResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		_, items, err := repo.FindCartWithItems(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		packIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			packIDs = append(packIDs, item.PackID)
		}

		packs, err := repo.FindPacksForUpdate(ctx, packIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock packs")
		}
		if len(packs) != len(packIDs) {
			return pkgerrors.New(pkgerrors.CodeItemUnavailable, "a cart item no longer exists")
		}

		if err := validateCheckoutPacks(packs, now); err != nil {
			return err
		}

		// A retry of the same checkout must not duplicate orders: when the
		// user's pending orders for these packs cover exactly the cart's
		// pack set, hand back the existing ids. Pending orders for other
		// packs, such as an earlier single reservation, stay out of the
		// comparison.
		pending, err := repo.FindPendingOrdersForPacks(ctx, userID, packIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending orders")
		}
		if ids, ok := matchExistingOrders(pending, packIDs); ok {
			result = CheckoutResult{OrderID: ids[0], OrderIDs: ids, Created: false}
			return nil
		}

		orderIDs := make([]uuid.UUID, 0, len(packs))
		for _, pack := range packs {
			order := &models.Order{
				ID:            uuid.New(),
				UserID:        userID,
				PackID:        pack.ID,
				PricePaid:     pack.PriceOffer,
				Status:        enums.OrderStatusPending,
				PaymentMethod: enums.PaymentMethodMercadoPago,
				// Deferred decrement: stock is taken when the payment lands.
				StockDecremented: false,
			}
			if _, err := repo.CreateOrder(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
			}
			orderIDs = append(orderIDs, order.ID)
		}

		// Cart items stay in place after checkout; a repeat attempt resolves
		// through the pending-order match above.
		result = CheckoutResult{OrderID: orderIDs[0], OrderIDs: orderIDs, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func validateCheckoutPacks(packs []models.Pack, now time.Time) error {
	merchantID := packs[0].MerchantID
	windowStart := packs[0].PickupStart
	windowEnd := packs[0].PickupEnd

	for _, pack := range packs {
		if pack.MerchantID != merchantID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart spans multiple merchants").
				WithDetails(map[string]any{"reason": "MERCHANT_MISMATCH"})
		}
		if !pack.IsActive || pack.Stock <= 0 || now.Before(pack.PickupStart) || now.After(pack.PickupEnd) {
			return pkgerrors.New(pkgerrors.CodeItemUnavailable, "cart item no longer available").
				WithDetails(map[string]any{"pack_id": pack.ID, "title": pack.Title})
		}
		if pack.PickupStart.After(windowStart) {
			windowStart = pack.PickupStart
		}
		if pack.PickupEnd.Before(windowEnd) {
			windowEnd = pack.PickupEnd
		}
	}

	// A shared instant still counts as overlap.
	if windowStart.After(windowEnd) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart pickup windows do not overlap")
	}
	return nil
}

// matchExistingOrders reports whether pending orders cover exactly the
// requested pack set.
func matchExistingOrders(pending []models.Order, packIDs []uuid.UUID) ([]uuid.UUID, bool) {
	if len(pending) != len(packIDs) {
		return nil, false
	}
	want := make(map[uuid.UUID]bool, len(packIDs))
	for _, id := range packIDs {
		want[id] = true
	}
	ids := make([]uuid.UUID, 0, len(pending))
	for _, order := range pending {
		if !want[order.PackID] {
			return nil, false
		}
		delete(want, order.PackID)
		ids = append(ids, order.ID)
	}
	return ids, len(want) == 0
}

func (s *service) Cancel(ctx context.Context, actorUserID, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != actorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if !order.Status.IsActive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		pack, err := repo.FindPack(ctx, order.PackID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
		}
		if now.After(pack.PickupEnd) {
			return pkgerrors.New(pkgerrors.CodeWindowClosed, "pickup window already closed")
		}

		order.Status = enums.OrderStatusCancelled
		if order.StockDecremented {
			if err := repo.RestoreStock(ctx, order.PackID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
			order.StockDecremented = false
		}
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return nil
	})
}

func (s *service) Redeem(ctx context.Context, actorUserID, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		pack, err := repo.FindPack(ctx, order.PackID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
		}

		merchant, err := repo.FindMerchantByOwner(ctx, actorUserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "actor does not operate a merchant")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
		}
		if merchant.ID != pack.MerchantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another merchant")
		}

		if order.Status == enums.OrderStatusRedeemed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already redeemed")
		}
		if !order.Status.IsActive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be redeemed").
				WithDetails(map[string]any{"status": order.Status})
		}

		// Redemption is allowed on both window boundaries.
		if now.Before(pack.PickupStart) || now.After(pack.PickupEnd) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "outside pickup window")
		}

		order.Status = enums.OrderStatusRedeemed
		if err := repo.SaveOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		return nil
	})
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.MarkPaidTx(ctx, tx, orderID)
	})
}

// MarkPaidTx runs the paid transition inside the caller's transaction so the
// webhook flow can hold a single order lock across payment and order updates.
func (s *service) MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to mark an order paid")
	}
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	order, err := repo.FindOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == enums.OrderStatusPaid && order.StockDecremented {
		return nil
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state").
			WithDetails(map[string]any{"status": order.Status})
	}

	order.Status = enums.OrderStatusPaid
	if order.PaidAt == nil {
		order.PaidAt = &now
	}
	if !order.StockDecremented {
		// Deferred checkout decrement lands here. The flag records only a
		// decrement that actually happened: when the guarded update finds no
		// stock the order is still paid, but it holds no unit, so a later
		// cancel or sweep must not restore one.
		decremented, err := repo.DecrementStock(ctx, order.PackID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		order.StockDecremented = decremented
	}

	if err := repo.SaveOrder(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return nil
}

func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// Non-owners get the same answer as a missing order.
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}
