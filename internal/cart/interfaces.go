package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
)

// Repository owns cart and cart item persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	FindItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, packID uuid.UUID) (int64, error)
	DeleteItems(ctx context.Context, cartID uuid.UUID) error

	FindPack(ctx context.Context, packID uuid.UUID) (*models.Pack, error)
	FindPacks(ctx context.Context, packIDs []uuid.UUID) ([]models.Pack, error)
}
