package txlog

import (
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
)

// Record is one journal row for a checkout submission and its payment outcome.
type Record struct {
	ID            uint               `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID string             `gorm:"column:transaction_id;size:64;uniqueIndex;not null"`
	OrderID       string             `gorm:"column:order_id;size:64;index"`
	UserID        string             `gorm:"column:user_id;size:64;index;not null"`
	PaymentMethod string             `gorm:"column:payment_method;size:32;not null"`
	Amount        float64            `gorm:"column:amount;not null"`
	Status        enums.PaymentState `gorm:"column:status;size:16;not null"`
	FailureReason *string            `gorm:"column:failure_reason"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the journal table name.
func (Record) TableName() string {
	return "payment_journal"
}
