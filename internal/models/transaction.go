package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
)

// TransactionStatus is the internal lifecycle state of a payment attempt.
// Transitions only move forward: pending is the sole non-terminal state,
// success and every failed_* value are terminal.
type TransactionStatus string

const (
	TransactionStatusPending         TransactionStatus = "pending"
	TransactionStatusSuccess         TransactionStatus = "success"
	TransactionStatusFailedCancelled TransactionStatus = "failed_cancelled"
	TransactionStatusFailedDenied    TransactionStatus = "failed_denied"
	TransactionStatusFailedExpired   TransactionStatus = "failed_expired"
)

// IsTerminal reports whether no further status transition is permitted.
func (s TransactionStatus) IsTerminal() bool {
	return s != TransactionStatusPending
}

// PaymentTransaction records one payment attempt against the gateway.
// Exactly one row exists per order ID; OrderID, UserID, Amount and Metadata
// are immutable after creation.
type PaymentTransaction struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OrderID        string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_id"`
	UserID         uint              `gorm:"index;not null" json:"user_id"`
	Amount         int64             `gorm:"not null" json:"amount"`
	Status         TransactionStatus `gorm:"type:varchar(30);default:'pending';index" json:"status"`
	PaymentGateway PaymentGateway    `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	PaymentMethod  string            `gorm:"type:varchar(100)" json:"payment_method"`
	Metadata       json.RawMessage   `gorm:"type:jsonb" json:"metadata"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
