package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Merchant{},
		&models.Pack{},
		&models.Order{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, now time.Time) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), testTxRunner{db: db}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedPack(t *testing.T, db *gorm.DB, stock int, start, end time.Time) *models.Pack {
	t.Helper()
	merchant := seedMerchant(t, db, uuid.New())
	return seedPackForMerchant(t, db, merchant.ID, stock, start, end)
}

func seedMerchant(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    "Corner Bakery",
		Address: "12 Baker St",
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return merchant
}

func seedPackForMerchant(t *testing.T, db *gorm.DB, merchantID uuid.UUID, stock int, start, end time.Time) *models.Pack {
	t.Helper()
	pack := &models.Pack{
		ID:            uuid.New(),
		MerchantID:    merchantID,
		Title:         "Evening surprise",
		Label:         enums.PackLabelSurprise,
		PriceOriginal: decimal.NewFromInt(12),
		PriceOffer:    decimal.NewFromInt(4),
		Stock:         stock,
		PickupStart:   start,
		PickupEnd:     end,
		IsActive:      true,
	}
	if err := db.Create(pack).Error; err != nil {
		t.Fatalf("seed pack: %v", err)
	}
	return pack
}

func seedCart(t *testing.T, db *gorm.DB, userID uuid.UUID, packIDs ...uuid.UUID) *models.Cart {
	t.Helper()
	cart := &models.Cart{ID: uuid.New(), UserID: userID}
	if err := db.Create(cart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	for _, packID := range packIDs {
		item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, PackID: packID, Quantity: 1}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
	return cart
}

func packStock(t *testing.T, db *gorm.DB, packID uuid.UUID) int {
	t.Helper()
	var pack models.Pack
	if err := db.First(&pack, "id = ?", packID).Error; err != nil {
		t.Fatalf("reload pack: %v", err)
	}
	return pack.Stock
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestReserveSingle(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 3, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	result, err := svc.ReserveSingle(ctx, userID, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if result.NewStock != 2 {
		t.Fatalf("expected stock 2, got %d", result.NewStock)
	}
	if got := packStock(t, db, pack.ID); got != 2 {
		t.Fatalf("expected persisted stock 2, got %d", got)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if !order.StockDecremented {
		t.Fatal("single reservation should decrement immediately")
	}
	if !order.PricePaid.Equal(pack.PriceOffer) {
		t.Fatalf("expected price %s, got %s", pack.PriceOffer, order.PricePaid)
	}
}

func TestReserveSingleOutOfStock(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	pack := seedPack(t, db, 0, now.Add(-time.Hour), now.Add(time.Hour))

	_, err := svc.ReserveSingle(context.Background(), uuid.New(), pack.ID)
	expectCode(t, err, pkgerrors.CodeOutOfStock)
}

func TestReserveSingleWindowExpired(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	pack := seedPack(t, db, 3, now.Add(-3*time.Hour), now.Add(-time.Hour))

	_, err := svc.ReserveSingle(context.Background(), uuid.New(), pack.ID)
	expectCode(t, err, pkgerrors.CodeWindowExpired)

	if got := packStock(t, db, pack.ID); got != 3 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestReserveSingleWindowEndInclusive(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	// now == pickup_end still reserves; only now > pickup_end blocks.
	pack := seedPack(t, db, 1, now.Add(-time.Hour), now)

	if _, err := svc.ReserveSingle(context.Background(), uuid.New(), pack.ID); err != nil {
		t.Fatalf("boundary reserve: %v", err)
	}
}

func TestReserveSingleDuplicate(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 3, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	if _, err := svc.ReserveSingle(ctx, userID, pack.ID); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	_, err := svc.ReserveSingle(ctx, userID, pack.ID)
	expectCode(t, err, pkgerrors.CodeDuplicateOrder)

	if got := packStock(t, db, pack.ID); got != 2 {
		t.Fatalf("duplicate must not decrement again, got stock %d", got)
	}

	// A different user can still reserve.
	if _, err := svc.ReserveSingle(ctx, uuid.New(), pack.ID); err != nil {
		t.Fatalf("second user reserve: %v", err)
	}
}

func TestReserveSingleAfterCancelAllowsRebooking(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 1, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	first, err := svc.ReserveSingle(ctx, userID, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Cancel(ctx, userID, first.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := packStock(t, db, pack.ID); got != 1 {
		t.Fatalf("cancel must restore stock, got %d", got)
	}

	if _, err := svc.ReserveSingle(ctx, userID, pack.ID); err != nil {
		t.Fatalf("rebooking after cancel: %v", err)
	}
}

func TestCheckoutCart(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	packA := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(2*time.Hour))
	packB := seedPackForMerchant(t, db, merchant.ID, 1, now.Add(-30*time.Minute), now.Add(time.Hour))
	userID := uuid.New()
	cart := seedCart(t, db, userID, packA.ID, packB.ID)

	result, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !result.Created {
		t.Fatal("expected new orders")
	}
	if len(result.OrderIDs) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(result.OrderIDs))
	}

	// Checkout defers the decrement to payment.
	if got := packStock(t, db, packA.ID); got != 2 {
		t.Fatalf("checkout must not decrement stock, got %d", got)
	}

	var orders []models.Order
	if err := db.Find(&orders, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load orders: %v", err)
	}
	for _, order := range orders {
		if order.StockDecremented {
			t.Fatal("checkout orders must defer the stock decrement")
		}
		if order.Status != enums.OrderStatusPending {
			t.Fatalf("expected pending, got %s", order.Status)
		}
	}

	// Cart items survive checkout; repeat attempts resolve through the
	// pending-order match instead.
	var itemCount int64
	if err := db.Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&itemCount).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if itemCount != 2 {
		t.Fatalf("checkout must leave cart items in place, got %d", itemCount)
	}
}

func TestCheckoutCartIdempotentRetry(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	packA := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, packA.ID)

	first, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}

	// Client retry: the cart still holds the same items.
	second, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("retry checkout: %v", err)
	}
	if second.Created {
		t.Fatal("retry must not create new orders")
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("retry must return the existing order, got %s want %s", second.OrderID, first.OrderID)
	}

	var count int64
	if err := db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single order, got %d", count)
	}
}

func TestCheckoutCartIgnoresUnrelatedPendingOrders(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	reserved := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	carted := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	// A pending order from an earlier single reservation must not defeat
	// the checkout retry match for a different pack.
	if _, err := svc.ReserveSingle(ctx, userID, reserved.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	seedCart(t, db, userID, carted.ID)

	first, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	second, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("retry checkout: %v", err)
	}
	if second.Created {
		t.Fatal("retry must reuse the existing order")
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("retry returned order %s, want %s", second.OrderID, first.OrderID)
	}

	var count int64
	if err := db.Model(&models.Order{}).Where("user_id = ? AND pack_id = ?", userID, carted.ID).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one order for the carted pack, got %d", count)
	}
}

func TestCheckoutCartTouchingWindows(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	// One window ends exactly where the other begins; the shared instant
	// still counts as an intersection.
	merchant := seedMerchant(t, db, uuid.New())
	early := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-2*time.Hour), now)
	late := seedPackForMerchant(t, db, merchant.ID, 2, now, now.Add(2*time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, early.ID, late.ID)

	result, err := svc.CheckoutCart(context.Background(), userID)
	if err != nil {
		t.Fatalf("checkout with touching windows: %v", err)
	}
	if len(result.OrderIDs) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(result.OrderIDs))
	}
}

func TestCheckoutCartEmpty(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	userID := uuid.New()
	seedCart(t, db, userID)

	_, err := svc.CheckoutCart(context.Background(), userID)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCheckoutCartMerchantMismatch(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	packA := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	packB := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, packA.ID, packB.ID)

	_, err := svc.CheckoutCart(context.Background(), userID)
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCheckoutCartItemUnavailable(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	merchant := seedMerchant(t, db, uuid.New())
	okPack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	soldOut := seedPackForMerchant(t, db, merchant.ID, 0, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, okPack.ID, soldOut.ID)

	_, err := svc.CheckoutCart(context.Background(), userID)
	expectCode(t, err, pkgerrors.CodeItemUnavailable)

	// All-or-nothing: no orders at all.
	var count int64
	if err := db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no orders, got %d", count)
	}
}

func TestCheckoutCartWindowNotOpenYet(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)

	pack := seedPack(t, db, 2, now.Add(time.Hour), now.Add(3*time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, pack.ID)

	_, err := svc.CheckoutCart(context.Background(), userID)
	expectCode(t, err, pkgerrors.CodeItemUnavailable)
}

func TestCancel(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	result, err := svc.ReserveSingle(ctx, userID, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Cancel(ctx, userID, result.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if got := packStock(t, db, pack.ID); got != 2 {
		t.Fatalf("expected restored stock 2, got %d", got)
	}

	// Second cancel hits a terminal state.
	expectCode(t, svc.Cancel(ctx, userID, result.OrderID), pkgerrors.CodeStateConflict)
	if got := packStock(t, db, pack.ID); got != 2 {
		t.Fatalf("double cancel must not restore twice, got %d", got)
	}
}

func TestCancelForbiddenForNonOwner(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	owner := uuid.New()

	result, err := svc.ReserveSingle(ctx, owner, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	expectCode(t, svc.Cancel(ctx, uuid.New(), result.OrderID), pkgerrors.CodeForbidden)
}

func TestCancelWindowClosed(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	pack := seedPack(t, db, 2, start.Add(-time.Hour), start.Add(time.Hour))
	userID := uuid.New()

	svc := newTestService(t, db, start)
	result, err := svc.ReserveSingle(context.Background(), userID, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// Window has closed by the time the user cancels.
	late := newTestService(t, db, start.Add(2*time.Hour))
	expectCode(t, late.Cancel(context.Background(), userID, result.OrderID), pkgerrors.CodeWindowClosed)
}

func TestCancelDeferredOrderDoesNotRestoreStock(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	pack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, pack.ID)

	result, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if err := svc.Cancel(ctx, userID, result.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := packStock(t, db, pack.ID); got != 2 {
		t.Fatalf("undecremented order must not over-credit stock, got %d", got)
	}
}

func TestRedeem(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	ownerID := uuid.New()
	merchant := seedMerchant(t, db, ownerID)
	pack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	buyer := uuid.New()

	result, err := svc.ReserveSingle(ctx, buyer, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := svc.Redeem(ctx, ownerID, result.OrderID); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusRedeemed {
		t.Fatalf("expected redeemed, got %s", order.Status)
	}

	// Replayed redeem is distinguishable from other conflicts.
	err = svc.Redeem(ctx, ownerID, result.OrderID)
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestRedeemForbiddenForOtherMerchant(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	pack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	otherOwner := uuid.New()
	seedMerchant(t, db, otherOwner)

	result, err := svc.ReserveSingle(ctx, uuid.New(), pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	expectCode(t, svc.Redeem(ctx, otherOwner, result.OrderID), pkgerrors.CodeForbidden)
}

func TestRedeemOutsideWindow(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	ctx := context.Background()

	ownerID := uuid.New()
	merchant := seedMerchant(t, db, ownerID)
	pack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))

	svc := newTestService(t, db, now)
	result, err := svc.ReserveSingle(ctx, uuid.New(), pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	late := newTestService(t, db, now.Add(2*time.Hour))
	expectCode(t, late.Redeem(ctx, ownerID, result.OrderID), pkgerrors.CodeStateConflict)

	// Both window boundaries are redeemable.
	atEnd := newTestService(t, db, pack.PickupEnd)
	if err := atEnd.Redeem(ctx, ownerID, result.OrderID); err != nil {
		t.Fatalf("redeem at window end: %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	pack := seedPackForMerchant(t, db, merchant.ID, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()
	seedCart(t, db, userID, pack.ID)

	result, err := svc.CheckoutCart(ctx, userID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if err := svc.MarkPaid(ctx, result.OrderID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", order.Status)
	}
	if order.PaidAt == nil {
		t.Fatal("paid_at must be set")
	}
	if !order.StockDecremented {
		t.Fatal("deferred decrement must land on payment")
	}
	if got := packStock(t, db, pack.ID); got != 1 {
		t.Fatalf("expected stock 1 after payment, got %d", got)
	}

	firstPaidAt := *order.PaidAt

	// At-least-once delivery: replay is a no-op.
	if err := svc.MarkPaid(ctx, result.OrderID); err != nil {
		t.Fatalf("replayed mark paid: %v", err)
	}
	if got := packStock(t, db, pack.ID); got != 1 {
		t.Fatalf("replay must not decrement again, got %d", got)
	}
	if err := db.First(&order, "id = ?", result.OrderID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !order.PaidAt.Equal(firstPaidAt) {
		t.Fatal("paid_at must keep the first payment time")
	}
}

func TestMarkPaidSoldOutDeferredOrderLeavesNoPhantomStock(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	merchant := seedMerchant(t, db, uuid.New())
	pack := seedPackForMerchant(t, db, merchant.ID, 1, now.Add(-time.Hour), now.Add(time.Hour))
	userA := uuid.New()
	userB := uuid.New()
	seedCart(t, db, userA, pack.ID)
	seedCart(t, db, userB, pack.ID)

	resA, err := svc.CheckoutCart(ctx, userA)
	if err != nil {
		t.Fatalf("checkout A: %v", err)
	}
	resB, err := svc.CheckoutCart(ctx, userB)
	if err != nil {
		t.Fatalf("checkout B: %v", err)
	}

	// A's payment takes the only unit.
	if err := svc.MarkPaid(ctx, resA.OrderID); err != nil {
		t.Fatalf("mark paid A: %v", err)
	}
	if got := packStock(t, db, pack.ID); got != 0 {
		t.Fatalf("expected stock 0 after A pays, got %d", got)
	}

	// B's payment lands at stock 0: the order is paid but holds no unit.
	if err := svc.MarkPaid(ctx, resB.OrderID); err != nil {
		t.Fatalf("mark paid B: %v", err)
	}
	var orderB models.Order
	if err := db.First(&orderB, "id = ?", resB.OrderID).Error; err != nil {
		t.Fatalf("load order B: %v", err)
	}
	if orderB.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", orderB.Status)
	}
	if orderB.StockDecremented {
		t.Fatal("sold-out payment must not claim a decrement that never happened")
	}

	// Cancelling B must not mint a unit nobody released.
	if err := svc.Cancel(ctx, userB, resB.OrderID); err != nil {
		t.Fatalf("cancel B: %v", err)
	}
	if got := packStock(t, db, pack.ID); got != 0 {
		t.Fatalf("cancel of an undecremented order restored phantom stock, got %d", got)
	}
}

func TestMarkPaidTerminalState(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	userID := uuid.New()

	result, err := svc.ReserveSingle(ctx, userID, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Cancel(ctx, userID, result.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	expectCode(t, svc.MarkPaid(ctx, result.OrderID), pkgerrors.CodeStateConflict)
}

func TestExpireOverdue(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 5, now.Add(-2*time.Hour), now.Add(time.Hour))
	userA := uuid.New()
	userB := uuid.New()

	resA, err := svc.ReserveSingle(ctx, userA, pack.ID)
	if err != nil {
		t.Fatalf("reserve A: %v", err)
	}
	resB, err := svc.ReserveSingle(ctx, userB, pack.ID)
	if err != nil {
		t.Fatalf("reserve B: %v", err)
	}
	if err := svc.MarkPaid(ctx, resB.OrderID); err != nil {
		t.Fatalf("mark paid B: %v", err)
	}

	repo := NewRepository(db)
	cutoff := pack.PickupEnd.Add(time.Minute)

	count, err := repo.CountOverdue(ctx, cutoff)
	if err != nil {
		t.Fatalf("count overdue: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 overdue, got %d", count)
	}

	affected, err := repo.ExpireOverdue(ctx, cutoff, 0)
	if err != nil {
		t.Fatalf("expire overdue: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 expired, got %d", affected)
	}

	for _, id := range []uuid.UUID{resA.OrderID, resB.OrderID} {
		var order models.Order
		if err := db.First(&order, "id = ?", id).Error; err != nil {
			t.Fatalf("load order: %v", err)
		}
		if order.Status != enums.OrderStatusExpired {
			t.Fatalf("expected expired, got %s", order.Status)
		}
	}

	// The sweep never touches stock.
	if got := packStock(t, db, pack.ID); got != 3 {
		t.Fatalf("sweep must leave stock alone, got %d", got)
	}

	// Re-running finds nothing.
	affected, err = repo.ExpireOverdue(ctx, cutoff, 0)
	if err != nil {
		t.Fatalf("second expire: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected idempotent sweep, got %d", affected)
	}
}

func TestFindPendingExpiringBetween(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	soon := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(20*time.Minute))
	later := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(3*time.Hour))

	if _, err := svc.ReserveSingle(ctx, uuid.New(), soon.ID); err != nil {
		t.Fatalf("reserve soon: %v", err)
	}
	if _, err := svc.ReserveSingle(ctx, uuid.New(), later.ID); err != nil {
		t.Fatalf("reserve later: %v", err)
	}

	repo := NewRepository(db)
	orders, err := repo.FindPendingExpiringBetween(ctx, now, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("find expiring: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 expiring order, got %d", len(orders))
	}
	if orders[0].PackID != soon.ID {
		t.Fatalf("wrong order surfaced: %+v", orders[0])
	}
}

func TestGetForUserScoping(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, now)
	ctx := context.Background()

	pack := seedPack(t, db, 2, now.Add(-time.Hour), now.Add(time.Hour))
	owner := uuid.New()

	result, err := svc.ReserveSingle(ctx, owner, pack.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := svc.GetForUser(ctx, owner, result.OrderID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	_, err = svc.GetForUser(ctx, uuid.New(), result.OrderID)
	expectCode(t, err, pkgerrors.CodeNotFound)
}
