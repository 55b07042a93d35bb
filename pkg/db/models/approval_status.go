package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/recurware/billing-backend/pkg/enums"
)

// SubscriptionApprovalStatus is one immutable event in a subscription's
// approval history. Events are never updated or deleted. The current status
// of a subscription is the event with the greatest created_at, ties broken
// by seq, which only ever increases.
type SubscriptionApprovalStatus struct {
	Seq            int64                `gorm:"column:seq;primaryKey;autoIncrement"`
	SubscriptionID uuid.UUID            `gorm:"column:subscription_id;type:uuid;not null;index"`
	Status         enums.ApprovalStatus `gorm:"column:status;not null;default:'pending'"`
	Note           string               `gorm:"column:note;not null;default:''"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides gorm's pluralization for the history table.
func (SubscriptionApprovalStatus) TableName() string {
	return "subscription_approval_statuses"
}
