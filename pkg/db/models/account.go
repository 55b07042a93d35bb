package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the billing aggregation root, one per user. It owns its
// subscriptions (cascade) and carries no mutable state of its own.
type Account struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
