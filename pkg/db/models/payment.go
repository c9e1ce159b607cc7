package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/enums"
	"github.com/packrescue/packrescue-backend/pkg/types"
)

// Payment tracks provider-side progress for an order. At most one row per
// (order, provider); webhook updates mutate the same row.
type Payment struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider     string              `gorm:"column:provider;not null;default:'mp'"`
	PreferenceID *string             `gorm:"column:preference_id"`
	PaymentID    *string             `gorm:"column:payment_id;index"`
	RequestID    *string             `gorm:"column:request_id;uniqueIndex"`
	Status       enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RawEvent     types.JSONMap       `gorm:"column:raw_event;type:jsonb"`
	PaidAt       *time.Time          `gorm:"column:paid_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
