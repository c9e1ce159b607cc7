package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
)

// Repository defines persistence operations for packs, orders, and the
// checkout-facing cart reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPack(ctx context.Context, packID uuid.UUID) (*models.Pack, error)
	FindPackForUpdate(ctx context.Context, packID uuid.UUID) (*models.Pack, error)
	FindPacksForUpdate(ctx context.Context, packIDs []uuid.UUID) ([]models.Pack, error)
	DecrementStock(ctx context.Context, packID uuid.UUID) (bool, error)
	RestoreStock(ctx context.Context, packID uuid.UUID) error

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	HasActiveOrder(ctx context.Context, userID, packID uuid.UUID) (bool, error)
	FindPendingOrdersForPacks(ctx context.Context, userID uuid.UUID, packIDs []uuid.UUID) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)

	FindMerchantByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Merchant, error)
	FindCartWithItems(ctx context.Context, userID uuid.UUID) (*models.Cart, []models.CartItem, error)

	ExpireOverdue(ctx context.Context, now time.Time, batchSize int) (int64, error)
	CountOverdue(ctx context.Context, now time.Time) (int64, error)
	FindPendingExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}
