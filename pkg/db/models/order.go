package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/packrescue/packrescue-backend/pkg/enums"
)

// Order is a reservation of one pack by one buyer. Orders are never deleted;
// terminal states keep the history for reconciliation.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	PackID           uuid.UUID           `gorm:"column:pack_id;type:uuid;not null;index"`
	PricePaid        decimal.Decimal     `gorm:"column:price_paid;type:numeric(10,2);not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'mp'"`
	StockDecremented bool                `gorm:"column:stock_decremented;not null;default:false"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
