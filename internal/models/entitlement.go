package models

import (
	"time"

	"gorm.io/gorm"
)

// Entitlement holds the per-user premium flag. It is flipped to true only by
// the payment reconciler when a transaction first reaches success; revocation
// is an administrative action outside this subsystem.
type Entitlement struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID    uint `gorm:"uniqueIndex;not null" json:"user_id"`
	IsPremium bool `gorm:"default:false" json:"is_premium"`
}
