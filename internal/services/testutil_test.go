package services

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nutritrack_app_echo/internal/models"
)

// newTestDB opens an in-memory database with the full schema. A single
// connection keeps concurrent test goroutines on one SQLite handle.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Entitlement{},
		&models.PaymentTransaction{},
		&models.PaymentCallbackHistory{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := models.User{
		FirebaseUID: "test-uid",
		Name:        "Test User",
		Email:       "test@example.com",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return &user
}

func seedTransaction(t *testing.T, db *gorm.DB, userID uint, orderID string, status models.TransactionStatus) *models.PaymentTransaction {
	t.Helper()

	txn := models.PaymentTransaction{
		OrderID:        orderID,
		UserID:         userID,
		Amount:         16000,
		Status:         status,
		PaymentGateway: models.PaymentGatewayMidtrans,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return &txn
}

func transactionStatus(t *testing.T, db *gorm.DB, orderID string) models.TransactionStatus {
	t.Helper()

	var txn models.PaymentTransaction
	if err := db.Where("order_id = ?", orderID).First(&txn).Error; err != nil {
		t.Fatalf("failed to load transaction %s: %v", orderID, err)
	}
	return txn.Status
}

func premiumFlag(t *testing.T, db *gorm.DB, userID uint) bool {
	t.Helper()

	var ent models.Entitlement
	err := db.Where("user_id = ?", userID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if err != nil {
		t.Fatalf("failed to load entitlement for user %d: %v", userID, err)
	}
	return ent.IsPremium
}
