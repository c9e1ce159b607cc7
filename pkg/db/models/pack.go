package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/packrescue/packrescue-backend/pkg/enums"
)

// Pack is a discounted surplus bundle with a pickup window and a stock count.
type Pack struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MerchantID    uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null;index"`
	Title         string          `gorm:"column:title;not null"`
	Description   *string         `gorm:"column:description"`
	Label         enums.PackLabel `gorm:"column:label;type:text;not null;default:'surprise'"`
	PriceOriginal decimal.Decimal `gorm:"column:price_original;type:numeric(10,2);not null"`
	PriceOffer    decimal.Decimal `gorm:"column:price_offer;type:numeric(10,2);not null"`
	Stock         int             `gorm:"column:stock;not null;default:0"`
	PickupStart   time.Time       `gorm:"column:pickup_start;not null"`
	PickupEnd     time.Time       `gorm:"column:pickup_end;not null"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
