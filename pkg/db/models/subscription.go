package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is one (account, product) association. The row itself is
// immutable after creation; all state lives in the append-only approval
// history. Seq is a monotonic insertion counter used to break creation-time
// ties deterministically.
type Subscription struct {
	Seq           int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	ID            uuid.UUID `gorm:"column:id;type:uuid;not null;uniqueIndex"`
	AccountID     uuid.UUID `gorm:"column:account_id;type:uuid;not null;index"`
	ProductTypeID int64     `gorm:"column:product_type_id;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`

	ProductType *ProductType `gorm:"foreignKey:ProductTypeID"`
}
