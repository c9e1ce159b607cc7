package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/types"
)

// WebhookLog is the durable dedupe record for provider deliveries. The unique
// request id makes redelivered notifications idempotent.
type WebhookLog struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	RequestID string        `gorm:"column:request_id;not null;uniqueIndex"`
	Provider  string        `gorm:"column:provider;not null;default:'mp'"`
	Headers   types.JSONMap `gorm:"column:headers;type:jsonb"`
	Body      types.JSONMap `gorm:"column:body;type:jsonb"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime"`
}
