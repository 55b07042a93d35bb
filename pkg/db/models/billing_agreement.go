package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingAgreement backs the bundled "simple" payment processor: each row
// records whether the account agreed to pay at that point in time. The most
// recent row wins. Rows are append-only, matching the approval history model.
type BillingAgreement struct {
	Seq            int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	AccountID      uuid.UUID `gorm:"column:account_id;type:uuid;not null;index"`
	HasAgreedToPay bool      `gorm:"column:has_agreed_to_pay;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
