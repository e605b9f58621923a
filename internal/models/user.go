package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered user of the app
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirebaseUID string `gorm:"type:varchar(128);uniqueIndex" json:"firebase_uid"`
	Name        string `gorm:"type:varchar(255)" json:"name"`
	Email       string `gorm:"type:varchar(255);uniqueIndex" json:"email"`

	// Relationships
	Entitlement  *Entitlement         `gorm:"foreignKey:UserID" json:"entitlement,omitempty"`
	Transactions []PaymentTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}
