package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem links a pack into a cart. One row per (cart, pack).
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_pack"`
	PackID    uuid.UUID `gorm:"column:pack_id;type:uuid;not null;uniqueIndex:ux_cart_items_cart_pack"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
