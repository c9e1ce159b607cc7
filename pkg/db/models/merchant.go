package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/enums"
)

// Merchant represents a food business listing surplus packs.
type Merchant struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   uuid.UUID              `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`
	Name      string                 `gorm:"column:name;not null"`
	Category  enums.MerchantCategory `gorm:"column:category;type:text;not null;default:'other'"`
	Address   string                 `gorm:"column:address;not null"`
	Phone     *string                `gorm:"column:phone"`
	Email     *string                `gorm:"column:email"`
	IsActive  bool                   `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
