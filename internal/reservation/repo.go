package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reservation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// lockForUpdate requests a row lock on Postgres. sqlite has no FOR UPDATE;
// its single-writer transactions cover the tests.
func lockForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) FindPack(ctx context.Context, packID uuid.UUID) (*models.Pack, error) {
	var pack models.Pack
	err := r.db.WithContext(ctx).
		Where("id = ?", packID).
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

func (r *repository) FindPackForUpdate(ctx context.Context, packID uuid.UUID) (*models.Pack, error) {
	var pack models.Pack
	err := lockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", packID).
		First(&pack).Error
	if err != nil {
		return nil, err
	}
	return &pack, nil
}

// FindPacksForUpdate locks the rows in ascending id order so concurrent
// checkouts acquire pack locks in the same sequence.
func (r *repository) FindPacksForUpdate(ctx context.Context, packIDs []uuid.UUID) ([]models.Pack, error) {
	if len(packIDs) == 0 {
		return nil, nil
	}
	var packs []models.Pack
	err := lockForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", packIDs).
		Order("id ASC").
		Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}

// DecrementStock applies a guarded decrement; false means no stock was left.
func (r *repository) DecrementStock(ctx context.Context, packID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE packs
		SET stock = stock - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock > 0
	`, packID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RestoreStock(ctx context.Context, packID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE packs
		SET stock = stock + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, packID).Error
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := lockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) HasActiveOrder(ctx context.Context, userID, packID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND pack_id = ? AND status IN ?", userID, packID,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindPendingOrdersForPacks(ctx context.Context, userID uuid.UUID, packIDs []uuid.UUID) ([]models.Order, error) {
	if len(packIDs) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND pack_id IN ?", userID, enums.OrderStatusPending, packIDs).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FindMerchantByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&merchant).Error
	if err != nil {
		return nil, err
	}
	return &merchant, nil
}

func (r *repository) FindCartWithItems(ctx context.Context, userID uuid.UUID) (*models.Cart, []models.CartItem, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, nil, err
	}

	var items []models.CartItem
	err = r.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, nil, err
	}
	return &cart, items, nil
}

// ExpireOverdue bulk-transitions active orders whose pack window already
// closed. Stock is deliberately left untouched.
func (r *repository) ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	query := `
		UPDATE orders
		SET status = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT o.id
			FROM orders o
			JOIN packs p ON p.id = o.pack_id
			WHERE o.status IN (?, ?) AND p.pickup_end < ?
	`
	args := []any{enums.OrderStatusExpired, enums.OrderStatusPending, enums.OrderStatusPaid, now}
	if batchSize > 0 {
		query += " LIMIT ?"
		args = append(args, batchSize)
	}
	query += ")"

	res := r.db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) CountOverdue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Joins("JOIN packs ON packs.id = orders.pack_id").
		Where("orders.status IN ? AND packs.pickup_end < ?",
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusPaid}, now).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) FindPendingExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Joins("JOIN packs ON packs.id = orders.pack_id").
		Where("orders.status = ? AND packs.pickup_end >= ? AND packs.pickup_end < ?",
			enums.OrderStatusPending, from, to).
		Order("packs.pickup_end ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
