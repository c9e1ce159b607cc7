package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/enums"
)

// User is the boundary identity record. Credential handling lives outside
// this service; rows exist so foreign keys and role checks resolve.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email     string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;default:'buyer'"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
