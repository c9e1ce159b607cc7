package packs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/pagination"
)

// Repository owns pack persistence plus the merchant lookup the service
// needs for ownership checks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePack(ctx context.Context, pack *models.Pack) error
	SavePack(ctx context.Context, pack *models.Pack) error
	FindPack(ctx context.Context, packID uuid.UUID) (*models.Pack, error)
	DeletePack(ctx context.Context, packID uuid.UUID) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Pack, error)
	ListPublic(ctx context.Context, input ListInput, now time.Time) ([]models.Pack, error)
	CountOrdersForPack(ctx context.Context, packID uuid.UUID) (int64, error)
	FindMerchantByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Merchant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a pack repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePack(ctx context.Context, pack *models.Pack) error {
	return r.db.WithContext(ctx).Create(pack).Error
}

func (r *repository) SavePack(ctx context.Context, pack *models.Pack) error {
	return r.db.WithContext(ctx).Save(pack).Error
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

func (r *repository) DeletePack(ctx context.Context, packID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", packID).
		Delete(&models.Pack{}).Error
}

func (r *repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]models.Pack, error) {
	var packs []models.Pack
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}

func (r *repository) ListPublic(ctx context.Context, input ListInput, now time.Time) ([]models.Pack, error) {
	q := r.db.WithContext(ctx).Model(&models.Pack{}).Where("is_active = ?", true)

	if input.Filters.Label != nil {
		q = q.Where("label = ?", *input.Filters.Label)
	}
	if input.Filters.MerchantID != nil {
		q = q.Where("merchant_id = ?", *input.Filters.MerchantID)
	}
	if input.Filters.ActiveNow {
		q = q.Where("stock > 0 AND pickup_start <= ? AND pickup_end >= ?", now, now)
	}

	switch input.Sort {
	case SortPriceAsc:
		q = q.Order("price_offer ASC, created_at DESC")
	case SortPriceDesc:
		q = q.Order("price_offer DESC, created_at DESC")
	default:
		q = q.Order("created_at DESC, id DESC")
		if cursor, err := pagination.ParseCursor(input.Pagination.Cursor); err == nil && cursor != nil {
			q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
	}

	var packs []models.Pack
	err := q.Limit(pagination.LimitWithBuffer(input.Pagination.Limit)).Find(&packs).Error
	if err != nil {
		return nil, err
	}
	return packs, nil
}

func (r *repository) CountOrdersForPack(ctx context.Context, packID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("pack_id = ?", packID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
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
