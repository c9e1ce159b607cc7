package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) FindItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) DeleteItem(ctx context.Context, cartID, packID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND pack_id = ?", cartID, packID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
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

func (r *repository) FindPacks(ctx context.Context, packIDs []uuid.UUID) ([]models.Pack, error) {
	if len(packIDs) == 0 {
		return nil, nil
	}
	var packs []models.Pack
	err := r.db.WithContext(ctx).
		Where("id IN ?", packIDs).
		Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}
